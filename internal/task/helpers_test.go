package task

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/phrazzld/concrawl/internal/events"
)

func newTestSession(t *testing.T, opts Options) *Session {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sess := NewSession(opts)
	t.Cleanup(sess.Close)
	return sess
}

// collect drains an execution's events. It returns once the execution has
// completed and its subscription is closed.
func collect[T any](ex *Execution[T]) []events.Event {
	var out []events.Event
	for ev := range ex.Events().All(context.Background()) {
		out = append(out, ev)
	}
	return out
}

// indexOf returns the position of the first event of typ for task, or -1.
func indexOf(evs []events.Event, typ events.Type, task string) int {
	for i, ev := range evs {
		if ev.Type == typ && ev.Task == task {
			return i
		}
	}
	return -1
}

func countOf(evs []events.Event, typ events.Type, task string) int {
	n := 0
	for _, ev := range evs {
		if ev.Type == typ && ev.Task == task {
			n++
		}
	}
	return n
}

func constant[T any](name string, v T) Task[T] {
	return New(name, func(*Yielder) Result[T] { return Ok(v) })
}

func failing[T any](name string, err error) Task[T] {
	return New(name, func(*Yielder) Result[T] { return Err[T](err) })
}
