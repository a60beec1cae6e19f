package task

import "context"

// Instruction is a request emitted by a task body and interpreted by the
// runner. The set is closed: YieldTask, Spawn, PoolRun, Work,
// ContextRequest, LockAcquire and LockRelease.
type Instruction interface {
	instruction()
}

// YieldTask runs Task as a dependency in the same session. The body resumes
// with the task's data, or with its error thrown back.
type YieldTask struct {
	Task Runnable
}

// Spawn runs Tasks concurrently and resumes with every result, in input
// order. It never fails.
type Spawn struct {
	Tasks []Runnable
}

// PoolRun is Spawn with at most Concurrency children in flight.
type PoolRun struct {
	Tasks       []Runnable
	Concurrency int
}

// Work performs one tracked unit of effectful work.
type Work struct {
	Fn WorkFunc
}

// ContextRequest resumes with the session's ambient context value.
type ContextRequest struct{}

// LockAcquire blocks until the task holds Key.
type LockAcquire struct {
	Key Key
}

// LockRelease releases a key held by the task.
type LockRelease struct {
	Key Key
}

func (YieldTask) instruction()      {}
func (Spawn) instruction()          {}
func (PoolRun) instruction()        {}
func (Work) instruction()           {}
func (ContextRequest) instruction() {}
func (LockAcquire) instruction()    {}
func (LockRelease) instruction()    {}

// WorkFunc is the function carried by a Work instruction. ctx carries the
// task-scoped logger; see logger.FromContext.
type WorkFunc func(ctx context.Context, w WorkContext) (any, error)

// WorkContext lets a work function report what it is doing.
type WorkContext interface {
	// Description names the work. The first call emits work.start; later
	// calls emit work.progress carrying the new description.
	Description(text string)

	// Progress emits work.progress with an arbitrary value.
	Progress(value any)
}
