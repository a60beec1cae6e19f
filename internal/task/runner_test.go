package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/concrawl/internal/events"
	"github.com/phrazzld/concrawl/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSync(t *testing.T) {
	t.Parallel()

	t.Run("returns the body's result", func(t *testing.T) {
		t.Parallel()
		sess := newTestSession(t, Options{})
		r := RunSync(context.Background(), sess, constant("answer", 42))
		require.True(t, r.OK())
		assert.Equal(t, 42, r.Data())
	})

	t.Run("failure stays a value", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		sess := newTestSession(t, Options{})
		r := RunSync(context.Background(), sess, failing[int]("broken", boom))
		assert.Same(t, boom, r.Err())
	})

	t.Run("panic becomes an error", func(t *testing.T) {
		t.Parallel()
		sess := newTestSession(t, Options{})
		r := RunSync(context.Background(), sess, New("panics", func(*Yielder) Result[int] {
			panic("kaboom")
		}))
		assert.ErrorIs(t, r.Err(), ErrTaskPanicked)
		assert.Contains(t, r.Err().Error(), "kaboom")
	})
}

func TestMemoization(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	shared := New("shared", func(y *Yielder) Result[int] {
		runs.Add(1)
		time.Sleep(10 * time.Millisecond)
		return Ok(7)
	})

	sess := newTestSession(t, Options{})
	root := New("root", func(y *Yielder) Result[[]int] {
		first, err := Await(y, shared)
		if err != nil {
			return Err[[]int](err)
		}
		out := []int{first}
		for _, r := range Gather(y, shared, shared, shared) {
			out = append(out, r.Data())
		}
		return Ok(out)
	})

	r := RunSync(context.Background(), sess, root)
	require.True(t, r.OK())
	assert.Equal(t, []int{7, 7, 7, 7}, r.Data())
	assert.Equal(t, int32(1), runs.Load())

	// A second top-level run in the same session is served from the cache.
	again := RunSync(context.Background(), sess, shared)
	assert.Equal(t, 7, again.Data())
	assert.Equal(t, int32(1), runs.Load())

	cached, ok := sess.Lookup("shared")
	require.True(t, ok)
	assert.Equal(t, 7, cached.Data())
	assert.ElementsMatch(t, []string{"root", "shared"}, sess.Names())
}

func TestConcurrentRequestersShareOneExecution(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	slow := New("slow", func(y *Yielder) Result[string] {
		runs.Add(1)
		time.Sleep(30 * time.Millisecond)
		return Ok("done")
	})

	sess := newTestSession(t, Options{})
	var wg sync.WaitGroup
	results := make([]Result[string], 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = RunSync(context.Background(), sess, slow)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), runs.Load())
	for _, r := range results {
		assert.Equal(t, "done", r.Data())
	}
}

func TestDependencyFailurePropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("upstream down")
	dep := failing[string]("dep", boom)

	t.Run("thrown into the dependent verbatim", func(t *testing.T) {
		t.Parallel()
		sess := newTestSession(t, Options{})
		r := RunSync(context.Background(), sess, New("parent", func(y *Yielder) Result[string] {
			v, err := Await(y, dep)
			if err != nil {
				return Err[string](err)
			}
			return Ok(v)
		}))
		assert.Same(t, boom, r.Err())
	})

	t.Run("dependent may recover", func(t *testing.T) {
		t.Parallel()
		sess := newTestSession(t, Options{})
		r := RunSync(context.Background(), sess, New("parent", func(y *Yielder) Result[string] {
			if _, err := Await(y, dep); errors.Is(err, boom) {
				return Ok("fallback")
			}
			return Ok("unexpected")
		}))
		assert.Equal(t, "fallback", r.Data())
	})
}

func TestSpawnNeverFails(t *testing.T) {
	t.Parallel()

	boom := errors.New("child failed")
	sess := newTestSession(t, Options{})
	r := RunSync(context.Background(), sess, New("parent", func(y *Yielder) Result[[]Result[int]] {
		return Ok(Gather(y,
			constant("one", 1),
			failing[int]("two", boom),
			New("three", func(*Yielder) Result[int] { panic("three") }),
			constant("four", 4),
		))
	}))

	require.True(t, r.OK())
	children := r.Data()
	require.Len(t, children, 4)
	assert.Equal(t, 1, children[0].Data())
	assert.Same(t, boom, children[1].Err())
	assert.ErrorIs(t, children[2].Err(), ErrTaskPanicked)
	assert.Equal(t, 4, children[3].Data())
}

func TestGatherAnyMixedTypes(t *testing.T) {
	t.Parallel()

	sess := newTestSession(t, Options{})
	r := RunSync(context.Background(), sess, New("parent", func(y *Yielder) Result[[]any] {
		var out []any
		for _, res := range GatherAny(y, constant("n", 1), constant("s", "two")) {
			out = append(out, res.Data())
		}
		return Ok(out)
	}))
	assert.Equal(t, []any{1, "two"}, r.Data())
}

func TestEndToEndEventOrder(t *testing.T) {
	t.Parallel()

	fetch := func(name, value string) Task[string] {
		return New(name, func(y *Yielder) Result[string] {
			return From[string](Do(y, func(ctx context.Context, w WorkContext) (string, error) {
				w.Description("fetching " + value)
				time.Sleep(5 * time.Millisecond)
				return value, nil
			}))
		})
	}
	root := New("root", func(y *Yielder) Result[[]string] {
		var out []string
		for _, r := range Gather(y, fetch("fetchA", "A"), fetch("fetchB", "B")) {
			out = append(out, r.Data())
		}
		return Ok(out)
	})

	sess := newTestSession(t, Options{})
	ex := Run(context.Background(), sess, root)
	evs := collect(ex)
	result := ex.Wait()

	require.True(t, result.OK())
	assert.Equal(t, []string{"A", "B"}, result.Data())

	require.NotEmpty(t, evs)
	assert.Equal(t, events.TaskStart, evs[0].Type)
	assert.Equal(t, "root", evs[0].Task)
	last := evs[len(evs)-1]
	assert.Equal(t, events.TaskEnd, last.Type)
	assert.Equal(t, "root", last.Task)
	require.NotNil(t, last.Result)
	assert.True(t, last.Result.OK)

	spawnStart := indexOf(evs, events.SpawnStart, "root")
	spawnEnd := indexOf(evs, events.SpawnEnd, "root")
	require.NotEqual(t, -1, spawnStart)
	assert.Equal(t, []string{"fetchA", "fetchB"}, evs[spawnStart].Children)

	for _, child := range []string{"fetchA", "fetchB"} {
		start := indexOf(evs, events.TaskStart, child)
		workStart := indexOf(evs, events.WorkStart, child)
		workEnd := indexOf(evs, events.WorkEnd, child)
		end := indexOf(evs, events.TaskEnd, child)

		assert.Less(t, spawnStart, start, child)
		assert.Less(t, start, workStart, child)
		assert.Less(t, workStart, workEnd, child)
		assert.Less(t, workEnd, end, child)
		assert.Less(t, end, spawnEnd, child)
		assert.Equal(t, 1, countOf(evs, events.WorkStart, child))
		assert.Contains(t, evs[workStart].Description, "fetching")
	}

	for i := 1; i < len(evs); i++ {
		assert.Equal(t, evs[i-1].Seq+1, evs[i].Seq)
		assert.Equal(t, sess.ID(), evs[i].SessionID)
	}
}

func TestEndToEndFailedChild(t *testing.T) {
	t.Parallel()

	fetch := func(name string, err error) Task[string] {
		return New(name, func(y *Yielder) Result[string] {
			return From[string](Do(y, func(ctx context.Context, w WorkContext) (string, error) {
				w.Description("fetching " + name)
				time.Sleep(5 * time.Millisecond)
				if err != nil {
					return "", err
				}
				return name, nil
			}))
		})
	}
	timeout := errors.New("timeout")
	root := New("root", func(y *Yielder) Result[[2]int] {
		var tally [2]int
		for _, r := range Gather(y, fetch("fetchA", nil), fetch("fetchB", timeout)) {
			if r.OK() {
				tally[0]++
			} else {
				tally[1]++
			}
		}
		return Ok(tally)
	})

	sess := newTestSession(t, Options{})
	ex := Run(context.Background(), sess, root)
	evs := collect(ex)
	result := ex.Wait()

	require.True(t, result.OK())
	assert.Equal(t, [2]int{1, 1}, result.Data(), "one succeeded, one failed")

	end := indexOf(evs, events.TaskEnd, "fetchB")
	require.NotEqual(t, -1, end)
	require.NotNil(t, evs[end].Result)
	assert.False(t, evs[end].Result.OK)
	assert.ErrorIs(t, evs[end].Result.Err, timeout)
	assert.Equal(t, 1, countOf(evs, events.WorkStart, "fetchB"))
	assert.Less(t, indexOf(evs, events.WorkEnd, "fetchB"), end)

	b, ok := sess.Lookup("fetchB")
	require.True(t, ok)
	assert.ErrorIs(t, b.Err(), timeout)

	last := evs[len(evs)-1]
	assert.Equal(t, events.TaskEnd, last.Type)
	assert.Equal(t, "root", last.Task)
	assert.True(t, last.Result.OK)
}

func TestWorkStartEvents(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, opts Options, fn func(ctx context.Context, w WorkContext) (int, error)) []events.Event {
		t.Helper()
		sess := newTestSession(t, opts)
		ex := Run(context.Background(), sess, New("worker", func(y *Yielder) Result[int] {
			return From[int](Do(y, fn))
		}))
		evs := collect(ex)
		ex.Wait()
		return evs
	}

	t.Run("first description opens the work", func(t *testing.T) {
		t.Parallel()
		evs := run(t, Options{}, func(_ context.Context, w WorkContext) (int, error) {
			w.Description("first")
			w.Description("second")
			w.Progress(50)
			return 1, nil
		})

		require.Equal(t, 1, countOf(evs, events.WorkStart, "worker"))
		start := indexOf(evs, events.WorkStart, "worker")
		assert.Equal(t, "first", evs[start].Description)

		var progress []events.Event
		for _, ev := range evs {
			if ev.Type == events.WorkProgress {
				progress = append(progress, ev)
			}
		}
		require.Len(t, progress, 2)
		assert.Equal(t, "second", progress[0].Description)
		assert.Equal(t, 50, progress[1].Value)
		assert.Less(t, start, indexOf(evs, events.WorkProgress, "worker"))
	})

	t.Run("fallback fires for silent work", func(t *testing.T) {
		t.Parallel()
		evs := run(t, Options{WorkStartFallback: 5 * time.Millisecond}, func(_ context.Context, w WorkContext) (int, error) {
			time.Sleep(40 * time.Millisecond)
			w.Description("late")
			return 1, nil
		})

		require.Equal(t, 1, countOf(evs, events.WorkStart, "worker"))
		start := indexOf(evs, events.WorkStart, "worker")
		assert.Empty(t, evs[start].Description)
		progress := indexOf(evs, events.WorkProgress, "worker")
		require.NotEqual(t, -1, progress)
		assert.Equal(t, "late", evs[progress].Description)
		assert.Less(t, start, progress)
	})

	t.Run("description before the fallback labels the start", func(t *testing.T) {
		t.Parallel()
		evs := run(t, Options{WorkStartFallback: time.Hour}, func(_ context.Context, w WorkContext) (int, error) {
			time.Sleep(20 * time.Millisecond)
			w.Description("after a pause")
			return 1, nil
		})

		require.Equal(t, 1, countOf(evs, events.WorkStart, "worker"))
		assert.Equal(t, "after a pause", evs[indexOf(evs, events.WorkStart, "worker")].Description)
		assert.Equal(t, -1, indexOf(evs, events.WorkProgress, "worker"))
	})

	t.Run("work that returns at once still opens", func(t *testing.T) {
		t.Parallel()
		evs := run(t, Options{WorkStartFallback: time.Hour}, func(context.Context, WorkContext) (int, error) {
			return 1, nil
		})

		assert.Equal(t, 1, countOf(evs, events.WorkStart, "worker"))
		assert.Less(t, indexOf(evs, events.WorkStart, "worker"), indexOf(evs, events.WorkEnd, "worker"))
	})

	t.Run("negative fallback opens before running", func(t *testing.T) {
		t.Parallel()
		evs := run(t, Options{WorkStartFallback: -1}, func(_ context.Context, w WorkContext) (int, error) {
			w.Description("described")
			return 1, nil
		})

		start := indexOf(evs, events.WorkStart, "worker")
		assert.Empty(t, evs[start].Description)
		assert.Equal(t, "described", evs[indexOf(evs, events.WorkProgress, "worker")].Description)
	})
}

func TestWorkErrorsAndPanics(t *testing.T) {
	t.Parallel()

	t.Run("error is thrown into the body", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("request failed")
		sess := newTestSession(t, Options{})
		r := RunSync(context.Background(), sess, New("worker", func(y *Yielder) Result[int] {
			_, err := Do(y, func(context.Context, WorkContext) (int, error) { return 0, boom })
			return Err[int](err)
		}))
		assert.Same(t, boom, r.Err())
	})

	t.Run("panic is recovered and work.end still emitted", func(t *testing.T) {
		t.Parallel()
		sess := newTestSession(t, Options{})
		ex := Run(context.Background(), sess, New("worker", func(y *Yielder) Result[int] {
			return From[int](Do(y, func(context.Context, WorkContext) (int, error) { panic("bad parse") }))
		}))
		evs := collect(ex)
		r := ex.Wait()

		assert.ErrorIs(t, r.Err(), ErrWorkPanicked)
		assert.Equal(t, 1, countOf(evs, events.WorkStart, "worker"))
		assert.Equal(t, 1, countOf(evs, events.WorkEnd, "worker"))
	})

	t.Run("work context carries the task logger", func(t *testing.T) {
		t.Parallel()
		log, buf := logger.NewTestLogger()
		sess := newTestSession(t, Options{Logger: log})
		RunSync(context.Background(), sess, New("logging", func(y *Yielder) Result[int] {
			return From[int](Do(y, func(ctx context.Context, _ WorkContext) (int, error) {
				logger.FromContext(ctx).Info("inside work")
				return 1, nil
			}))
		}))

		entries, err := buf.Entries()
		require.NoError(t, err)
		var found bool
		for _, e := range entries {
			if e["msg"] == "inside work" {
				found = true
				assert.Equal(t, "logging", e["task"])
				assert.Equal(t, sess.ID().String(), e["session_id"])
			}
		}
		assert.True(t, found)
	})
}

func TestPersistence(t *testing.T) {
	t.Parallel()

	type saved struct {
		spec PersistSpec
		data any
	}
	newRecorder := func() (*[]saved, *sync.Mutex, Persister) {
		var mu sync.Mutex
		var out []saved
		return &out, &mu, PersisterFunc(func(_ context.Context, spec PersistSpec, data any) error {
			mu.Lock()
			defer mu.Unlock()
			out = append(out, saved{spec: spec, data: data})
			return nil
		})
	}

	t.Run("top-level and awaited tasks persist", func(t *testing.T) {
		t.Parallel()
		records, mu, p := newRecorder()
		sess := newTestSession(t, Options{Persister: p})

		dep := constant("dep", "payload").WithPersist(PersistSpec{Collection: "deps", Key: "dep"})
		root := New("root", func(y *Yielder) Result[string] {
			return From[string](Await(y, dep))
		}).WithPersist(PersistSpec{Collection: "roots", Key: "root"})

		r := RunSync(context.Background(), sess, root)
		require.True(t, r.OK())

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, *records, 2)
		assert.Equal(t, "deps", (*records)[0].spec.Collection)
		assert.Equal(t, "payload", (*records)[0].data)
		assert.Equal(t, "roots", (*records)[1].spec.Collection)
	})

	t.Run("spawned, failed and skipped tasks do not persist", func(t *testing.T) {
		t.Parallel()
		records, mu, p := newRecorder()
		sess := newTestSession(t, Options{Persister: p})
		spec := PersistSpec{Collection: "c", Key: "k"}

		root := New("root", func(y *Yielder) Result[int] {
			Gather(y, constant("spawned", 1).WithPersist(spec))
			_, _ = Await(y, failing[int]("failed", errors.New("x")).WithPersist(spec))
			_, _ = Await(y, New("skipped", func(*Yielder) Result[int] { return Skip[int]() }).WithPersist(spec))
			return Ok(0)
		})
		require.True(t, RunSync(context.Background(), sess, root).OK())

		mu.Lock()
		defer mu.Unlock()
		assert.Empty(t, *records)
	})

	t.Run("persist failure fails the task before task.end", func(t *testing.T) {
		t.Parallel()
		diskFull := errors.New("disk full")
		sess := newTestSession(t, Options{Persister: PersisterFunc(func(context.Context, PersistSpec, any) error {
			return diskFull
		})})

		ex := Run(context.Background(), sess, constant("saved", 1).WithPersist(PersistSpec{Collection: "c", Key: "k"}))
		evs := collect(ex)
		r := ex.Wait()

		assert.ErrorIs(t, r.Err(), ErrPersistFailed)
		assert.ErrorIs(t, r.Err(), diskFull)
		end := evs[indexOf(evs, events.TaskEnd, "saved")]
		require.NotNil(t, end.Result)
		assert.False(t, end.Result.OK)
	})
}

func TestStrictNames(t *testing.T) {
	t.Parallel()

	first := New("dup", func(*Yielder) Result[int] { return Ok(1) })
	second := New("dup", func(*Yielder) Result[int] { return Ok(2) })

	t.Run("lenient sessions share by name", func(t *testing.T) {
		t.Parallel()
		sess := newTestSession(t, Options{})
		require.Equal(t, 1, RunSync(context.Background(), sess, first).Data())
		assert.Equal(t, 1, RunSync(context.Background(), sess, second).Data())
	})

	t.Run("strict sessions reject a different body", func(t *testing.T) {
		t.Parallel()
		sess := newTestSession(t, Options{StrictNames: true})
		require.Equal(t, 1, RunSync(context.Background(), sess, first).Data())
		assert.ErrorIs(t, RunSync(context.Background(), sess, second).Err(), ErrNameConflict)
		assert.Equal(t, 1, RunSync(context.Background(), sess, first).Data())
	})

	t.Run("same constructor is not a conflict", func(t *testing.T) {
		t.Parallel()
		build := func() Task[int] { return New("built", func(*Yielder) Result[int] { return Ok(3) }) }
		sess := newTestSession(t, Options{StrictNames: true})
		require.True(t, RunSync(context.Background(), sess, build()).OK())
		assert.True(t, RunSync(context.Background(), sess, build()).OK())
	})
}

func TestDependencyCycle(t *testing.T) {
	t.Parallel()

	var a, b Task[int]
	a = New("a", func(y *Yielder) Result[int] { return From[int](Await(y, b)) })
	b = New("b", func(y *Yielder) Result[int] { return From[int](Await(y, a)) })

	sess := newTestSession(t, Options{})
	done := make(chan Result[int], 1)
	go func() { done <- RunSync(context.Background(), sess, a) }()

	select {
	case r := <-done:
		assert.ErrorIs(t, r.Err(), ErrDependencyCycle)
		assert.Contains(t, r.Err().Error(), "a -> b -> a")
	case <-time.After(time.Second):
		t.Fatal("cycle deadlocked")
	}
}

func TestAmbient(t *testing.T) {
	t.Parallel()

	type deps struct{ region string }
	sess := newTestSession(t, Options{Context: &deps{region: "eu"}})

	r := RunSync(context.Background(), sess, New("reader", func(y *Yielder) Result[string] {
		d, err := Ambient[*deps](y)
		if err != nil {
			return Err[string](err)
		}
		return Ok(d.region)
	}))
	assert.Equal(t, "eu", r.Data())

	wrong := RunSync(context.Background(), sess, New("wrong", func(y *Yielder) Result[string] {
		return From[string](Ambient[string](y))
	}))
	assert.ErrorIs(t, wrong.Err(), ErrContextType)
	assert.Same(t, sess.Context(), sess.Context())
}

func TestTaskLocks(t *testing.T) {
	t.Parallel()

	key := Key{"timeline", "carol"}

	t.Run("with lock serialises bodies", func(t *testing.T) {
		t.Parallel()
		sess := newTestSession(t, Options{})
		var inside, maxInside atomic.Int32
		locked := func(name string) Task[int] {
			return New(name, func(y *Yielder) Result[int] {
				return From[int](WithLock(y, key, func() (int, error) {
					n := inside.Add(1)
					if n > maxInside.Load() {
						maxInside.Store(n)
					}
					time.Sleep(10 * time.Millisecond)
					inside.Add(-1)
					return 1, nil
				}))
			})
		}

		results := RunSync(context.Background(), sess, New("root", func(y *Yielder) Result[[]Result[int]] {
			return Ok(Gather(y, locked("l1"), locked("l2"), locked("l3")))
		}))
		for _, r := range results.Data() {
			assert.True(t, r.OK())
		}
		assert.Equal(t, int32(1), maxInside.Load())
		assert.False(t, sess.Locks().Held(key))
	})

	t.Run("panicking holder releases the key", func(t *testing.T) {
		t.Parallel()
		sess := newTestSession(t, Options{})
		r := RunSync(context.Background(), sess, New("holder", func(y *Yielder) Result[int] {
			return From[int](WithLock(y, key, func() (int, error) { panic("inside lock") }))
		}))
		assert.ErrorIs(t, r.Err(), ErrTaskPanicked)
		assert.False(t, sess.Locks().Held(key))
	})

	t.Run("released without holding", func(t *testing.T) {
		t.Parallel()
		sess := newTestSession(t, Options{})
		r := RunSync(context.Background(), sess, New("stray", func(y *Yielder) Result[int] {
			return Err[int](y.Unlock(key))
		}))
		assert.ErrorIs(t, r.Err(), ErrLockNotHeld)
	})

	t.Run("re-acquiring a held key", func(t *testing.T) {
		t.Parallel()
		sess := newTestSession(t, Options{})
		r := RunSync(context.Background(), sess, New("greedy", func(y *Yielder) Result[int] {
			_ = y.Lock(key)
			return Err[int](y.Lock(key))
		}))
		assert.ErrorIs(t, r.Err(), ErrLockHeld)
		assert.False(t, sess.Locks().Held(key))
	})
}

func TestUnknownInstruction(t *testing.T) {
	t.Parallel()

	sess := newTestSession(t, Options{})
	r := RunSync(context.Background(), sess, New("odd", func(y *Yielder) Result[int] {
		_, err := y.Perform(nil)
		return Err[int](err)
	}))
	assert.ErrorIs(t, r.Err(), ErrUnknownInstruction)
}

func TestExecutionEventsEndWithTheRun(t *testing.T) {
	t.Parallel()

	sess := newTestSession(t, Options{})
	ex := Run(context.Background(), sess, constant("quick", true))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var types []events.Type
	for ev := range ex.Events().All(ctx) {
		types = append(types, ev.Type)
	}
	require.NoError(t, ctx.Err())
	assert.Equal(t, []events.Type{events.TaskStart, events.TaskEnd}, types)
	assert.Equal(t, "quick", ex.Name())
	<-ex.Done()
	assert.True(t, ex.Wait().Data())
}
