// Package task is the cooperative task execution engine the crawl pipeline is
// built on.
//
// A [Task] is a named, immutable template whose body emits [Instruction]
// values to request effects from the runner: run a dependency ([Await]),
// fan out to children ([Gather], [Bounded]), perform one unit of tracked work
// ([Do]), take a lock ([WithLock]) or read the session's ambient context
// ([Ambient]). The runner drives each body as a pull coroutine, interprets
// every instruction against a [Session] and publishes lifecycle events on the
// session's bus.
//
// Within one session a task name is a global identity: the same name executes
// at most once and every requester shares the single [Result]. Failures never
// escape the runner; errors and panics become Err results.
package task
