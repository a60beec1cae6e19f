package task

import "errors"

// Common errors returned by the engine
var (
	// ErrTaskPanicked wraps a panic recovered from a task body.
	ErrTaskPanicked = errors.New("task panicked")

	// ErrWorkPanicked wraps a panic recovered from a work function.
	ErrWorkPanicked = errors.New("work panicked")

	// ErrNilFailure replaces a nil error passed to Err.
	ErrNilFailure = errors.New("task failed without an error")

	// ErrNameConflict is returned under StrictNames when two different task
	// bodies are registered under the same name in one session.
	ErrNameConflict = errors.New("task name already bound to a different body")

	// ErrDependencyCycle is returned when a task transitively waits on itself.
	ErrDependencyCycle = errors.New("dependency cycle")

	// ErrResultType is returned when a result cannot be converted to the
	// type the caller expects.
	ErrResultType = errors.New("unexpected result type")

	// ErrContextType is returned by Ambient when the session context has a
	// different type than requested.
	ErrContextType = errors.New("unexpected session context type")

	// ErrLockHeld is returned when a task acquires a key it already holds.
	ErrLockHeld = errors.New("lock already held by this task")

	// ErrLockNotHeld is returned when a task releases a key it does not hold.
	ErrLockNotHeld = errors.New("lock not held by this task")

	// ErrInvalidConcurrency is returned by Bounded for a limit below one.
	ErrInvalidConcurrency = errors.New("concurrency must be at least 1")

	// ErrInvalidRetryOptions is returned when retry options fail validation.
	ErrInvalidRetryOptions = errors.New("invalid retry options")

	// ErrPersistFailed wraps a persistence hook failure.
	ErrPersistFailed = errors.New("failed to persist task result")

	// ErrUnknownInstruction is returned for an instruction the runner does
	// not interpret.
	ErrUnknownInstruction = errors.New("unknown instruction")

	// ErrDetached is returned when a Yielder is used outside the body it
	// was handed to.
	ErrDetached = errors.New("yielder used outside its task body")
)
