package task

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phrazzld/concrawl/internal/events"
	"github.com/phrazzld/concrawl/internal/platform/logger"
)

// Execution is a running top-level task.
type Execution[T any] struct {
	name   string
	events *events.Subscription
	done   chan struct{}
	result Result[T]
}

// Run starts t in sess and returns immediately. The execution's event
// subscription is opened before the task starts and closed once it
// completes, so it observes the whole run and then ends.
func Run[T any](ctx context.Context, sess *Session, t Task[T]) *Execution[T] {
	ex := &Execution[T]{
		name:   t.Name(),
		events: sess.Subscribe(),
		done:   make(chan struct{}),
	}
	go func() {
		ex.result = narrow[T](sess.execute(ctx, t, false, nil).wait())
		close(ex.done)
		ex.events.Close()
	}()
	return ex
}

// RunSync runs t in sess and waits for its result.
func RunSync[T any](ctx context.Context, sess *Session, t Task[T]) Result[T] {
	return narrow[T](sess.execute(ctx, t, false, nil).wait())
}

// Name returns the top-level task's name.
func (e *Execution[T]) Name() string { return e.name }

// Events returns the execution's event subscription.
func (e *Execution[T]) Events() *events.Subscription { return e.events }

// Done is closed when the top-level task has completed.
func (e *Execution[T]) Done() <-chan struct{} { return e.done }

// Wait blocks until the top-level task completes and returns its result.
func (e *Execution[T]) Wait() Result[T] {
	<-e.done
	return e.result
}

// execute returns the cached promise for t's name, or runs t on the calling
// goroutine and resolves a new one. path holds the names of the tasks
// waiting on this call.
func (s *Session) execute(ctx context.Context, t Runnable, spawned bool, path []string) *promise {
	name := t.Name()
	if slices.Contains(path, name) {
		chain := strings.Join(append(slices.Clip(path), name), " -> ")
		return resolved(Err[any](fmt.Errorf("%w: %s", ErrDependencyCycle, chain)))
	}

	s.mu.Lock()
	if p, ok := s.cache[name]; ok {
		conflict := s.strict && s.bodies[name] != t.bodyID()
		s.mu.Unlock()
		if conflict {
			return resolved(Err[any](fmt.Errorf("%w: %q", ErrNameConflict, name)))
		}
		return p
	}
	p := newPromise()
	s.cache[name] = p
	s.bodies[name] = t.bodyID()
	s.mu.Unlock()

	p.resolve(s.drive(ctx, t, spawned, append(slices.Clip(path), name)))
	return p
}

// invocation is the runner state of one task execution.
type invocation struct {
	sess *Session
	name string
	path []string
	log  *slog.Logger

	// base is the caller's context, handed to children and dependencies;
	// ctx adds the task-scoped logger.
	base context.Context
	ctx  context.Context

	held map[string]func()
}

func (s *Session) drive(ctx context.Context, t Runnable, spawned bool, path []string) Result[any] {
	name := t.Name()
	log := s.logger.With("task", name)
	inv := &invocation{
		sess: s,
		name: name,
		path: path,
		log:  log,
		base: ctx,
		ctx:  logger.WithLogger(ctx, log),
		held: make(map[string]func()),
	}

	s.publish(events.Event{Type: events.TaskStart, Task: name})
	log.Debug("task started", "spawned", spawned)
	start := time.Now()

	result := inv.run(t)
	inv.releaseAll()

	if spec := t.persistSpec(); spec != nil && !spawned && result.OK() && !result.Skipped() && s.persister != nil {
		if err := s.persister.Persist(inv.ctx, *spec, result.data); err != nil {
			log.Error("failed to persist task result",
				"collection", spec.Collection,
				"key", spec.Key,
				"error", err)
			result = Err[any](fmt.Errorf("%w: %s: %w", ErrPersistFailed, name, err))
		}
	}

	s.publish(events.Event{Type: events.TaskEnd, Task: name, Result: outcome(result)})
	if result.OK() {
		log.Debug("task completed", "skipped", result.Skipped(), "duration_ms", time.Since(start).Milliseconds())
	} else {
		log.Warn("task failed", "error", result.Err(), "duration_ms", time.Since(start).Milliseconds())
	}
	return result
}

// run drives the body as a pull coroutine: each instruction it yields is
// interpreted and the outcome handed back before the body resumes.
func (inv *invocation) run(t Runnable) Result[any] {
	y := &Yielder{name: inv.name}
	var final Result[any]

	body := func(yield func(Instruction) bool) {
		y.yield = yield
		defer func() {
			y.yield = nil
			if r := recover(); r != nil {
				inv.log.Error("task body panicked", "panic", r)
				final = Err[any](fmt.Errorf("%w: %s: %v", ErrTaskPanicked, inv.name, r))
			}
		}()
		final = t.run(y)
	}

	next, stop := iter.Pull(body)
	defer stop()

	for {
		instr, ok := next()
		if !ok {
			return final
		}
		value, err := inv.dispatch(instr)
		y.resume = resumption{value: value, err: err}
	}
}

func (inv *invocation) dispatch(instr Instruction) (any, error) {
	switch in := instr.(type) {
	case YieldTask:
		return inv.await(in.Task)
	case Spawn:
		return inv.spawn(in.Tasks), nil
	case PoolRun:
		return inv.runPool(in.Tasks, in.Concurrency)
	case Work:
		return inv.work(in.Fn)
	case ContextRequest:
		return inv.sess.ambient, nil
	case LockAcquire:
		return nil, inv.lock(in.Key)
	case LockRelease:
		return nil, inv.unlock(in.Key)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownInstruction, instr)
	}
}

func (inv *invocation) await(dep Runnable) (any, error) {
	if dep == nil {
		return nil, fmt.Errorf("%w: nil task", ErrUnknownInstruction)
	}
	inv.sess.publish(events.Event{
		Type:       events.TaskDependency,
		Task:       inv.name,
		Dependency: dep.Name(),
	})
	r := inv.sess.execute(inv.base, dep, false, inv.path).wait()
	return r.data, r.err
}

func (inv *invocation) lock(key Key) error {
	k := key.String()
	if _, ok := inv.held[k]; ok {
		return fmt.Errorf("%w: %s", ErrLockHeld, k)
	}
	release, err := inv.sess.locks.Acquire(inv.ctx, key)
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", k, err)
	}
	inv.held[k] = release
	return nil
}

func (inv *invocation) unlock(key Key) error {
	k := key.String()
	release, ok := inv.held[k]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLockNotHeld, k)
	}
	delete(inv.held, k)
	release()
	return nil
}

func (inv *invocation) releaseAll() {
	for k, release := range inv.held {
		inv.log.Debug("releasing lock held at task exit", "key", k)
		release()
	}
	clear(inv.held)
}

func (inv *invocation) work(fn WorkFunc) (value any, err error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil work function", ErrUnknownInstruction)
	}

	wc := &workContext{inv: inv}
	if inv.sess.fallback < 0 {
		wc.start("")
	} else {
		timer := time.AfterFunc(inv.sess.fallback, func() { wc.start("") })
		defer timer.Stop()
	}

	defer func() {
		if r := recover(); r != nil {
			inv.log.Error("work panicked", "panic", r)
			value, err = nil, fmt.Errorf("%w: %s: %v", ErrWorkPanicked, inv.name, r)
		}
		wc.start("")
		wc.ended.Store(true)
		inv.sess.publish(events.Event{Type: events.WorkEnd, Task: inv.name})
	}()

	return fn(inv.ctx, wc)
}

// workContext guarantees a single work.start before any work.progress and
// before work.end. Calls after the work returned are dropped.
type workContext struct {
	inv     *invocation
	started sync.Once
	ended   atomic.Bool
}

// start emits work.start unless it already happened and reports whether
// this call emitted it.
func (w *workContext) start(description string) bool {
	emitted := false
	w.started.Do(func() {
		emitted = true
		w.inv.sess.publish(events.Event{
			Type:        events.WorkStart,
			Task:        w.inv.name,
			Description: description,
		})
	})
	return emitted
}

func (w *workContext) Description(text string) {
	if w.ended.Load() || w.start(text) {
		return
	}
	w.inv.sess.publish(events.Event{
		Type:        events.WorkProgress,
		Task:        w.inv.name,
		Description: text,
	})
}

func (w *workContext) Progress(value any) {
	if w.ended.Load() {
		return
	}
	w.start("")
	w.inv.sess.publish(events.Event{
		Type:  events.WorkProgress,
		Task:  w.inv.name,
		Value: value,
	})
}

func outcome(r Result[any]) *events.Outcome {
	return &events.Outcome{
		OK:      r.OK(),
		Skipped: r.Skipped(),
		Data:    r.data,
		Err:     r.err,
	}
}
