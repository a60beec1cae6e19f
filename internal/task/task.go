package task

import (
	"context"
	"reflect"
)

// Body is a task's generator function. It emits instructions through y and
// returns the task's terminal result.
type Body[T any] func(y *Yielder) Result[T]

// Task is an immutable, named template for a unit of work producing T.
// Within a session the name is the task's identity: two tasks with the same
// name are the same task.
type Task[T any] struct {
	name    string
	body    Body[T]
	persist *PersistSpec
}

// New creates a task template. It panics on an empty name or a nil body,
// both of which are programming errors.
func New[T any](name string, body Body[T]) Task[T] {
	if name == "" {
		panic("task: empty task name")
	}
	if body == nil {
		panic("task: nil body for " + name)
	}
	return Task[T]{name: name, body: body}
}

// Name returns the task's identity.
func (t Task[T]) Name() string { return t.name }

// WithPersist returns a copy of t whose successful result is handed to the
// session's Persister, unless the task runs as a spawned child.
func (t Task[T]) WithPersist(spec PersistSpec) Task[T] {
	t.persist = &spec
	return t
}

// Persist returns the persistence spec, if any.
func (t Task[T]) Persist() (PersistSpec, bool) {
	if t.persist == nil {
		return PersistSpec{}, false
	}
	return *t.persist, true
}

func (t Task[T]) run(y *Yielder) Result[any] { return t.body(y).erase() }

func (t Task[T]) persistSpec() *PersistSpec { return t.persist }

// bodyID identifies the body's code, not its captured variables.
func (t Task[T]) bodyID() uintptr { return reflect.ValueOf(t.body).Pointer() }

// Runnable is a task with its result type erased. Only Task values
// implement it.
type Runnable interface {
	Name() string
	run(y *Yielder) Result[any]
	persistSpec() *PersistSpec
	bodyID() uintptr
}

var _ Runnable = Task[int]{}

// PersistSpec names where a task's result is stored.
type PersistSpec struct {
	Collection string `json:"collection"`
	Key        string `json:"key"`
}

// Persister receives successful results of persisted, non-spawned tasks.
type Persister interface {
	Persist(ctx context.Context, spec PersistSpec, data any) error
}

// PersisterFunc adapts a function to the Persister interface.
type PersisterFunc func(ctx context.Context, spec PersistSpec, data any) error

// Persist calls f(ctx, spec, data).
func (f PersisterFunc) Persist(ctx context.Context, spec PersistSpec, data any) error {
	return f(ctx, spec, data)
}

// Erase converts typed tasks to Runnables for GatherAny and BoundedAny.
func Erase[T any](tasks ...Task[T]) []Runnable {
	out := make([]Runnable, len(tasks))
	for i, t := range tasks {
		out[i] = t
	}
	return out
}
