package events

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Bus fans published events out to every live subscription.
// It is safe for concurrent use.
type Bus struct {
	sessionID uuid.UUID
	logger    *slog.Logger

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	seq    uint64
	closed bool
}

// NewBus creates an event bus stamping events with the given session ID.
func NewBus(sessionID uuid.UUID, logger *slog.Logger) *Bus {
	return &Bus{
		sessionID: sessionID,
		logger:    logger.With("component", "event_bus"),
		subs:      make(map[uint64]*Subscription),
	}
}

// Subscribe registers a new subscriber. The subscription receives every event
// published after this call returns. Subscribing to a closed bus returns an
// already-closed subscription.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := newSubscription(b, b.nextID)
	if b.closed {
		sub.closed = true
		return sub
	}
	b.subs[sub.id] = sub
	b.logger.Debug("registered subscriber", "subscriber_id", sub.id, "subscriber_count", len(b.subs))
	return sub
}

// Publish stamps the event with the session ID, sequence number and time and
// appends it to every subscriber's queue. Publishing never blocks on
// consumers. Events published after Close are dropped.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.seq++
	event.SessionID = b.sessionID
	event.Seq = b.seq
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	// Appending under the bus lock gives every subscriber the same order.
	for _, sub := range b.subs {
		sub.push(event)
	}
}

// Close detaches every subscriber. Subscribers still drain what is already
// queued for them.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[uint64]*Subscription)
	b.closed = true
	b.mu.Unlock()

	for _, sub := range subs {
		sub.markClosed()
	}
	b.logger.Debug("event bus closed", "detached_subscribers", len(subs))
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Subscription is one subscriber's FIFO queue of events.
type Subscription struct {
	bus *Bus
	id  uint64

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool

	pumpOnce sync.Once
	ch       chan Event
}

func newSubscription(bus *Bus, id uint64) *Subscription {
	s := &Subscription{bus: bus, id: id}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Subscription) push(event Event) {
	s.mu.Lock()
	s.queue = append(s.queue, event)
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *Subscription) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Close detaches the subscription from the bus. Events already queued can
// still be read; Next reports false once they are drained.
func (s *Subscription) Close() {
	s.bus.remove(s.id)
	s.markClosed()
}

// Next blocks until an event is available, the subscription is closed and
// drained, or ctx is done. The boolean is false when no event was returned.
func (s *Subscription) Next(ctx context.Context) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Wake the waiter below when ctx is cancelled.
	if ctx.Done() != nil {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				s.mu.Lock()
				s.cond.Broadcast()
				s.mu.Unlock()
			case <-done:
			}
		}()
	}

	for len(s.queue) == 0 && !s.closed {
		if ctx.Err() != nil {
			return Event{}, false
		}
		s.cond.Wait()
	}

	if len(s.queue) == 0 {
		return Event{}, false
	}

	event := s.queue[0]
	s.queue[0] = Event{}
	s.queue = s.queue[1:]
	return event, true
}

// Pending returns the number of queued, unread events.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// All returns an iterator over the subscription's events. Iteration ends when
// the subscription is closed and drained, or when ctx is done.
func (s *Subscription) All(ctx context.Context) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			event, ok := s.Next(ctx)
			if !ok || !yield(event) {
				return
			}
		}
	}
}

// Events returns a channel fed from the queue by a background goroutine. The
// channel is closed once the subscription is closed and drained. Calling
// Events more than once returns the same channel.
func (s *Subscription) Events() <-chan Event {
	s.pumpOnce.Do(func() {
		s.ch = make(chan Event)
		go func() {
			defer close(s.ch)
			for event := range s.All(context.Background()) {
				s.ch <- event
			}
		}()
	})
	return s.ch
}

// Dispatch feeds every event to handler until the subscription is drained or
// ctx is done.
func (s *Subscription) Dispatch(ctx context.Context, handler Handler) {
	for event := range s.All(ctx) {
		handler.HandleEvent(ctx, event)
	}
}
