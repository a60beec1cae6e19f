package store

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryCheckpointStore keeps checkpoints in process memory. It is used when
// no database is configured.
type MemoryCheckpointStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*Checkpoint
}

// NewMemoryCheckpointStore creates an empty store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{data: make(map[string]map[string]*Checkpoint)}
}

var (
	_ CheckpointStore = (*MemoryCheckpointStore)(nil)
	_ BatchSaver      = (*MemoryCheckpointStore)(nil)
)

// Save implements CheckpointStore.
func (s *MemoryCheckpointStore) Save(_ context.Context, cp *Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(cp)
	return nil
}

// SaveAll implements BatchSaver. Nothing is saved unless every checkpoint
// is valid.
func (s *MemoryCheckpointStore) SaveAll(_ context.Context, cps []*Checkpoint) error {
	for _, cp := range cps {
		if err := cp.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cp := range cps {
		s.put(cp)
	}
	return nil
}

func (s *MemoryCheckpointStore) put(cp *Checkpoint) {
	clone := *cp
	clone.Payload = slices.Clone(cp.Payload)
	coll, ok := s.data[cp.Collection]
	if !ok {
		coll = make(map[string]*Checkpoint)
		s.data[cp.Collection] = coll
	}
	coll[cp.Key] = &clone
}

// Get implements CheckpointStore.
func (s *MemoryCheckpointStore) Get(_ context.Context, collection, key string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.data[collection][key]
	if !ok {
		return nil, ErrCheckpointNotFound
	}
	clone := *cp
	return &clone, nil
}

// List implements CheckpointStore.
func (s *MemoryCheckpointStore) List(_ context.Context, collection string) ([]*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Checkpoint, 0, len(s.data[collection]))
	for _, cp := range s.data[collection] {
		clone := *cp
		out = append(out, &clone)
	}
	slices.SortFunc(out, func(a, b *Checkpoint) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}
