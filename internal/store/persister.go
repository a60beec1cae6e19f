package store

import (
	"context"

	"github.com/phrazzld/concrawl/internal/platform/logger"
	"github.com/phrazzld/concrawl/internal/task"
)

// Persister saves task results as checkpoints.
type Persister struct {
	store CheckpointStore
}

// NewPersister adapts s to the task runner's Persister interface.
func NewPersister(s CheckpointStore) *Persister {
	return &Persister{store: s}
}

var _ task.Persister = (*Persister)(nil)

// Persist implements task.Persister.
func (p *Persister) Persist(ctx context.Context, spec task.PersistSpec, data any) error {
	cp, err := NewCheckpoint(spec.Collection, spec.Key, data)
	if err != nil {
		return err
	}
	if err := p.store.Save(ctx, cp); err != nil {
		return err
	}
	logger.FromContext(ctx).Debug("checkpoint saved",
		"collection", cp.Collection,
		"key", cp.Key,
		"bytes", len(cp.Payload))
	return nil
}
