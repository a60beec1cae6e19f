package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of lifecycle event.
type Type string

// Lifecycle event types emitted by the runner.
const (
	TaskStart      Type = "task.start"
	TaskEnd        Type = "task.end"
	TaskDependency Type = "task.dependency"
	SpawnStart     Type = "spawn.start"
	SpawnEnd       Type = "spawn.end"
	WorkStart      Type = "work.start"
	WorkProgress   Type = "work.progress"
	WorkEnd        Type = "work.end"
)

// Outcome is the terminal state carried by a task.end event.
type Outcome struct {
	// OK reports whether the task succeeded
	OK bool `json:"ok"`

	// Skipped is set when the task succeeded without doing its work
	Skipped bool `json:"skipped,omitempty"`

	// Data is the task's success value, nil on failure
	Data any `json:"data,omitempty"`

	// Err is the task's failure, nil on success
	Err error `json:"-"`
}

// Event is a single lifecycle event published on a session's bus.
// Only the fields relevant to Type are populated.
type Event struct {
	// SessionID identifies the run that produced the event
	SessionID uuid.UUID `json:"session_id"`

	// Seq is the bus-wide publication sequence number, starting at 1
	Seq uint64 `json:"seq"`

	// Type indicates which lifecycle transition occurred
	Type Type `json:"type"`

	// Task is the name of the task the event belongs to. For task.dependency
	// it is the dependent task, for spawn.start/spawn.end the parent.
	Task string `json:"task"`

	// Time is when the event was published
	Time time.Time `json:"time"`

	// Result is set on task.end
	Result *Outcome `json:"result,omitempty"`

	// Dependency is the target of a task.dependency event
	Dependency string `json:"dependency,omitempty"`

	// Children are the child task names of a spawn.start event
	Children []string `json:"children,omitempty"`

	// Description is the work description of work.start, or an updated
	// description carried by work.progress
	Description string `json:"description,omitempty"`

	// Value is the progress value of a work.progress event
	Value any `json:"value,omitempty"`
}

// Handler defines an interface for components that consume events.
type Handler interface {
	// HandleEvent processes a single event. Handlers must not block for long;
	// the subscription queue keeps growing while they do.
	HandleEvent(ctx context.Context, event Event)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event)

// HandleEvent calls f(ctx, event).
func (f HandlerFunc) HandleEvent(ctx context.Context, event Event) {
	f(ctx, event)
}

// Handlers fans each event out to every handler in order.
type Handlers []Handler

// HandleEvent calls HandleEvent on each handler.
func (hs Handlers) HandleEvent(ctx context.Context, event Event) {
	for _, h := range hs {
		h.HandleEvent(ctx, event)
	}
}
