package task

import (
	"context"
	"strings"
	"sync"
)

// Key identifies a lock. Keys with equal joined forms are the same lock.
type Key []string

// String returns the canonical form, the parts joined by ":".
func (k Key) String() string { return strings.Join(k, ":") }

// LockManager provides keyed mutual exclusion with FIFO handoff. Waiters on a
// key form a chain: each holds the channel its predecessor closes on release.
type LockManager struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

// NewLockManager creates an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{tails: make(map[string]chan struct{})}
}

// Acquire blocks until the caller holds key or ctx is done. The returned
// release function is idempotent. Waiters acquire in arrival order.
func (m *LockManager) Acquire(ctx context.Context, key Key) (func(), error) {
	k := key.String()
	mine := make(chan struct{})

	m.mu.Lock()
	prev := m.tails[k]
	m.tails[k] = mine
	m.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			if m.tails[k] == mine {
				delete(m.tails, k)
			}
			m.mu.Unlock()
			close(mine)
		})
	}

	if prev == nil {
		return release, nil
	}

	select {
	case <-prev:
		return release, nil
	case <-ctx.Done():
		// Keep our place in the chain so successors are not released early.
		go func() {
			<-prev
			release()
		}()
		return nil, ctx.Err()
	}
}

// Held reports whether key is currently held or awaited.
func (m *LockManager) Held(key Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tails[key.String()]
	return ok
}
