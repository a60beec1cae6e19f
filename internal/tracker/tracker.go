// Package tracker folds a session's event stream into per-task state for the
// status API and the end-of-run report.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/concrawl/internal/events"
)

// Status is the lifecycle state of a task as seen from the event stream.
type Status string

// Task statuses.
const (
	// StatusPending tasks were named as a dependency or spawn child but have
	// not started yet.
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	// StatusSkipped tasks succeeded without doing their work.
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// TaskState is the derived state of one task.
type TaskState struct {
	Name   string `json:"name"`
	Status Status `json:"status"`

	// Parent is the task that spawned this one, if any
	Parent string `json:"parent,omitempty"`

	// Working is set between work.start and work.end
	Working     bool   `json:"working"`
	Description string `json:"description,omitempty"`
	Progress    any    `json:"progress,omitempty"`

	// Dependencies are the tasks this one awaited, in order
	Dependencies []string `json:"dependencies,omitempty"`

	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Finished reports whether the task reached a terminal status.
func (s TaskState) Finished() bool {
	return s.Status == StatusDone || s.Status == StatusSkipped || s.Status == StatusError
}

// Tracker implements events.Handler. It is safe for concurrent use.
type Tracker struct {
	mu    sync.RWMutex
	tasks map[string]*TaskState
	order []string
	last  uint64
}

var _ events.Handler = (*Tracker)(nil)

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{tasks: make(map[string]*TaskState)}
}

// Watch feeds the subscription into the tracker until it is drained or ctx is
// done.
func (t *Tracker) Watch(ctx context.Context, sub *events.Subscription) {
	sub.Dispatch(ctx, t)
}

// HandleEvent folds one event into the state.
func (t *Tracker) HandleEvent(_ context.Context, ev events.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = ev.Seq
	switch ev.Type {
	case events.TaskStart:
		s := t.ensure(ev.Task)
		s.Status = StatusRunning
		s.StartedAt = ev.Time
	case events.TaskEnd:
		s := t.ensure(ev.Task)
		s.Working = false
		s.FinishedAt = ev.Time
		switch r := ev.Result; {
		case r == nil || r.OK && !r.Skipped:
			s.Status = StatusDone
		case r.OK:
			s.Status = StatusSkipped
		default:
			s.Status = StatusError
			if r.Err != nil {
				s.Error = r.Err.Error()
			}
		}
	case events.TaskDependency:
		s := t.ensure(ev.Task)
		t.ensure(ev.Dependency)
		s.Dependencies = append(s.Dependencies, ev.Dependency)
	case events.SpawnStart:
		t.ensure(ev.Task)
		for _, child := range ev.Children {
			c := t.ensure(child)
			if c.Parent == "" {
				c.Parent = ev.Task
			}
		}
	case events.WorkStart:
		s := t.ensure(ev.Task)
		s.Working = true
		s.Progress = nil
		if ev.Description != "" {
			s.Description = ev.Description
		}
	case events.WorkProgress:
		s := t.ensure(ev.Task)
		if ev.Description != "" {
			s.Description = ev.Description
		}
		if ev.Value != nil {
			s.Progress = ev.Value
		}
	case events.WorkEnd:
		t.ensure(ev.Task).Working = false
	}
}

// ensure returns the state for name, registering it as pending on first sight.
func (t *Tracker) ensure(name string) *TaskState {
	s, ok := t.tasks[name]
	if !ok {
		s = &TaskState{Name: name, Status: StatusPending}
		t.tasks[name] = s
		t.order = append(t.order, name)
	}
	return s
}

// Snapshot returns a copy of every task's state in first-seen order.
func (t *Tracker) Snapshot() []TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]TaskState, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.copyOf(name))
	}
	return out
}

// Get returns a copy of one task's state.
func (t *Tracker) Get(name string) (TaskState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.tasks[name]; !ok {
		return TaskState{}, false
	}
	return t.copyOf(name), true
}

// Counts returns how many tasks are in each status.
func (t *Tracker) Counts() map[Status]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	counts := make(map[Status]int)
	for _, s := range t.tasks {
		counts[s.Status]++
	}
	return counts
}

// LastSeq is the sequence number of the last event handled.
func (t *Tracker) LastSeq() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

func (t *Tracker) copyOf(name string) TaskState {
	s := *t.tasks[name]
	s.Dependencies = append([]string(nil), s.Dependencies...)
	return s
}
