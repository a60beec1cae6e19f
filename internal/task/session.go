package task

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/concrawl/internal/events"
)

// DefaultWorkStartFallback is how long a work function may run without
// describing itself before work.start is emitted with an empty description.
// The split is timing based: a Description call made before the fallback
// fires lands on work.start, one made after it becomes a work.progress
// event. Work that must label its start should call Description first.
const DefaultWorkStartFallback = 5 * time.Millisecond

// Options configures a Session.
type Options struct {
	// Context is the ambient value returned to ContextRequest instructions
	Context any

	// Persister receives persisted results. Nil disables persistence.
	Persister Persister

	// Logger is the base logger. Nil uses slog.Default().
	Logger *slog.Logger

	// StrictNames rejects a second, different body registered under a name
	// already used in the session
	StrictNames bool

	// WorkStartFallback overrides DefaultWorkStartFallback. A negative value
	// emits work.start before the work function runs.
	WorkStartFallback time.Duration
}

// Session is the scope of one run: its result cache, locks, event bus and
// ambient context. A Session is safe for concurrent use.
type Session struct {
	id        uuid.UUID
	ambient   any
	persister Persister
	logger    *slog.Logger
	strict    bool
	fallback  time.Duration
	bus       *events.Bus
	locks     *LockManager

	mu     sync.Mutex
	cache  map[string]*promise
	bodies map[string]uintptr
}

// NewSession creates a session with an empty cache and a fresh ID.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fallback := opts.WorkStartFallback
	if fallback == 0 {
		fallback = DefaultWorkStartFallback
	}

	id := uuid.New()
	logger = logger.With("session_id", id.String())

	return &Session{
		id:        id,
		ambient:   opts.Context,
		persister: opts.Persister,
		logger:    logger,
		strict:    opts.StrictNames,
		fallback:  fallback,
		bus:       events.NewBus(id, logger),
		locks:     NewLockManager(),
		cache:     make(map[string]*promise),
		bodies:    make(map[string]uintptr),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Context returns the ambient context value.
func (s *Session) Context() any { return s.ambient }

// Locks returns the session's lock manager.
func (s *Session) Locks() *LockManager { return s.locks }

// Subscribe returns a subscription receiving every event published from now
// on.
func (s *Session) Subscribe() *events.Subscription { return s.bus.Subscribe() }

// Close detaches all subscribers. Tasks still running keep executing but
// their events are dropped.
func (s *Session) Close() { s.bus.Close() }

// Lookup returns the result of a finished task. It reports false for tasks
// that never ran or are still running.
func (s *Session) Lookup(name string) (Result[any], bool) {
	s.mu.Lock()
	p, ok := s.cache[name]
	s.mu.Unlock()
	if !ok {
		return Result[any]{}, false
	}
	select {
	case <-p.done:
		return p.result, true
	default:
		return Result[any]{}, false
	}
}

// Names returns the names of every task started in the session.
func (s *Session) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.cache))
	for name := range s.cache {
		names = append(names, name)
	}
	return names
}

func (s *Session) publish(event events.Event) { s.bus.Publish(event) }

// promise is a write-once cache slot. result is only read after done closes.
type promise struct {
	done   chan struct{}
	result Result[any]
}

func newPromise() *promise {
	return &promise{done: make(chan struct{})}
}

func resolved(r Result[any]) *promise {
	p := newPromise()
	p.resolve(r)
	return p
}

func (p *promise) resolve(r Result[any]) {
	p.result = r
	close(p.done)
}

func (p *promise) wait() Result[any] {
	<-p.done
	return p.result
}
