package task

import (
	"fmt"

	"github.com/phrazzld/concrawl/internal/events"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
)

// NilTaskName stands in for a nil task in spawn events, keeping Children
// aligned with the results slice.
const NilTaskName = "<nil>"

// spawn runs every child concurrently as a spawned task and collects the
// results in input order. Children never persist.
func (inv *invocation) spawn(tasks []Runnable) []Result[any] {
	inv.publishSpawn(events.SpawnStart, tasks)
	results := make([]Result[any], len(tasks))

	wg := conc.NewWaitGroup()
	for i, child := range tasks {
		wg.Go(func() {
			results[i] = inv.child(child)
		})
	}
	wg.Wait()

	inv.publishSpawn(events.SpawnEnd, tasks)
	return results
}

// runPool is spawn with at most concurrency children running. Children start
// in input order as slots free up.
func (inv *invocation) runPool(tasks []Runnable, concurrency int) ([]Result[any], error) {
	if concurrency < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, concurrency)
	}

	inv.publishSpawn(events.SpawnStart, tasks)
	results := make([]Result[any], len(tasks))

	if len(tasks) > 0 {
		workers := pool.New().WithMaxGoroutines(min(concurrency, len(tasks)))
		for i, child := range tasks {
			workers.Go(func() {
				results[i] = inv.child(child)
			})
		}
		workers.Wait()
	}

	inv.log.Debug("bounded pool finished", "tasks", len(tasks), "concurrency", concurrency)
	inv.publishSpawn(events.SpawnEnd, tasks)
	return results, nil
}

func (inv *invocation) child(t Runnable) Result[any] {
	if t == nil {
		return Err[any](fmt.Errorf("%w: nil task", ErrUnknownInstruction))
	}
	return inv.sess.execute(inv.base, t, true, inv.path).wait()
}

func (inv *invocation) publishSpawn(typ events.Type, tasks []Runnable) {
	children := make([]string, len(tasks))
	for i, t := range tasks {
		if t == nil {
			children[i] = NilTaskName
			continue
		}
		children[i] = t.Name()
	}
	inv.sess.publish(events.Event{Type: typ, Task: inv.name, Children: children})
}
