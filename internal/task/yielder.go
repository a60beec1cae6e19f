package task

import "context"

// Yielder is a task body's handle to the runner. It is only valid inside the
// body it was passed to.
type Yielder struct {
	name   string
	yield  func(Instruction) bool
	resume resumption
}

type resumption struct {
	value any
	err   error
}

// Name returns the name of the running task.
func (y *Yielder) Name() string { return y.name }

// Perform emits instr and blocks until the runner resumes the body. A
// returned error is the failure the runner threw back into the body.
func (y *Yielder) Perform(instr Instruction) (any, error) {
	if y.yield == nil || !y.yield(instr) {
		return nil, ErrDetached
	}
	r := y.resume
	y.resume = resumption{}
	return r.value, r.err
}

// Await runs t as a dependency and returns its data. A failed dependency
// returns its error verbatim.
func Await[T any](y *Yielder, t Task[T]) (T, error) {
	v, err := y.Perform(YieldTask{Task: t})
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](v)
}

// Gather runs tasks concurrently and returns their results in input order.
// Child failures are reported in the results, never as an error.
func Gather[T any](y *Yielder, tasks ...Task[T]) []Result[T] {
	return narrowAll[T](GatherAny(y, Erase(tasks...)...))
}

// GatherAny is Gather for tasks of mixed result types.
func GatherAny(y *Yielder, tasks ...Runnable) []Result[any] {
	v, err := y.Perform(Spawn{Tasks: tasks})
	if err != nil {
		out := make([]Result[any], len(tasks))
		for i := range out {
			out[i] = Err[any](err)
		}
		return out
	}
	return v.([]Result[any])
}

// Bounded runs tasks with at most concurrency of them in flight and returns
// their results in input order. It fails only on a concurrency below one.
func Bounded[T any](y *Yielder, concurrency int, tasks ...Task[T]) ([]Result[T], error) {
	results, err := BoundedAny(y, concurrency, Erase(tasks...)...)
	if err != nil {
		return nil, err
	}
	return narrowAll[T](results), nil
}

// BoundedAny is Bounded for tasks of mixed result types.
func BoundedAny(y *Yielder, concurrency int, tasks ...Runnable) ([]Result[any], error) {
	v, err := y.Perform(PoolRun{Tasks: tasks, Concurrency: concurrency})
	if err != nil {
		return nil, err
	}
	return v.([]Result[any]), nil
}

// Do performs fn as a tracked unit of work. A panic in fn is returned as an
// error wrapping ErrWorkPanicked.
func Do[T any](y *Yielder, fn func(ctx context.Context, w WorkContext) (T, error)) (T, error) {
	v, err := y.Perform(Work{Fn: func(ctx context.Context, w WorkContext) (any, error) {
		return fn(ctx, w)
	}})
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](v)
}

// Ambient returns the session's context value as C.
func Ambient[C any](y *Yielder) (C, error) {
	var zero C
	v, err := y.Perform(ContextRequest{})
	if err != nil {
		return zero, err
	}
	c, ok := v.(C)
	if !ok {
		return zero, ErrContextType
	}
	return c, nil
}

// Lock blocks until the task holds key.
func (y *Yielder) Lock(key Key) error {
	_, err := y.Perform(LockAcquire{Key: key})
	return err
}

// Unlock releases key.
func (y *Yielder) Unlock(key Key) error {
	_, err := y.Perform(LockRelease{Key: key})
	return err
}

// WithLock runs body while holding key. The key is released when body
// returns; if body panics the runner releases it when the task finishes.
func WithLock[T any](y *Yielder, key Key, body func() (T, error)) (T, error) {
	if err := y.Lock(key); err != nil {
		var zero T
		return zero, err
	}
	v, err := body()
	if uerr := y.Unlock(key); uerr != nil && err == nil {
		err = uerr
	}
	return v, err
}
