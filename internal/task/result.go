package task

import "fmt"

// Result is the terminal value of a task: success with data, or failure with
// an error. A task is never partially successful.
type Result[T any] struct {
	data    T
	err     error
	skipped bool
}

// Ok returns a successful result carrying data.
func Ok[T any](data T) Result[T] {
	return Result[T]{data: data}
}

// Err returns a failed result. A nil err is replaced with ErrNilFailure.
func Err[T any](err error) Result[T] {
	if err == nil {
		err = ErrNilFailure
	}
	return Result[T]{err: err}
}

// Skip returns a successful result for a task that had nothing to do.
// Skipped results carry the zero value and are never persisted.
func Skip[T any]() Result[T] {
	return Result[T]{skipped: true}
}

// From builds a result from a conventional (value, error) pair.
func From[T any](data T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(data)
}

// OK reports whether the result is a success.
func (r Result[T]) OK() bool { return r.err == nil }

// Skipped reports whether the result was produced by Skip.
func (r Result[T]) Skipped() bool { return r.skipped }

// Data returns the success value, or the zero value on failure.
func (r Result[T]) Data() T { return r.data }

// Err returns the failure, or nil on success.
func (r Result[T]) Err() error { return r.err }

// Unwrap returns the result as a conventional (value, error) pair.
func (r Result[T]) Unwrap() (T, error) { return r.data, r.err }

func (r Result[T]) String() string {
	switch {
	case r.err != nil:
		return fmt.Sprintf("Err(%v)", r.err)
	case r.skipped:
		return "Skipped"
	default:
		return fmt.Sprintf("Ok(%v)", r.data)
	}
}

func (r Result[T]) erase() Result[any] {
	return Result[any]{data: r.data, err: r.err, skipped: r.skipped}
}

// narrow converts an erased result back to T. A failed conversion becomes
// an Err wrapping ErrResultType.
func narrow[T any](r Result[any]) Result[T] {
	if r.err != nil {
		return Result[T]{err: r.err, skipped: r.skipped}
	}
	data, err := cast[T](r.data)
	if err != nil {
		return Err[T](err)
	}
	return Result[T]{data: data, skipped: r.skipped}
}

func narrowAll[T any](rs []Result[any]) []Result[T] {
	out := make([]Result[T], len(rs))
	for i, r := range rs {
		out[i] = narrow[T](r)
	}
	return out
}

func cast[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %T", ErrResultType, v, zero)
	}
	return out, nil
}
