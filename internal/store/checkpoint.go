package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Checkpoint is a persisted task result, addressed by collection and key.
type Checkpoint struct {
	ID         uuid.UUID       `json:"id"`
	Collection string          `json:"collection"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	SavedAt    time.Time       `json:"saved_at"`
}

// NewCheckpoint encodes data as the payload of a new checkpoint.
func NewCheckpoint(collection, key string, data any) (*Checkpoint, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: encode payload: %w", ErrInvalidEntity, err)
	}
	cp := &Checkpoint{
		ID:         uuid.New(),
		Collection: collection,
		Key:        key,
		Payload:    payload,
		SavedAt:    time.Now().UTC(),
	}
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return cp, nil
}

// Validate checks if the checkpoint has valid data.
func (c *Checkpoint) Validate() error {
	switch {
	case c.ID == uuid.Nil:
		return fmt.Errorf("%w: empty checkpoint ID", ErrInvalidEntity)
	case c.Collection == "":
		return fmt.Errorf("%w: empty collection", ErrInvalidEntity)
	case c.Key == "":
		return fmt.Errorf("%w: empty key", ErrInvalidEntity)
	case !json.Valid(c.Payload):
		return fmt.Errorf("%w: payload is not valid JSON", ErrInvalidEntity)
	}
	return nil
}

// Decode unmarshals the payload into v.
func (c *Checkpoint) Decode(v any) error {
	if err := json.Unmarshal(c.Payload, v); err != nil {
		return fmt.Errorf("decode checkpoint %s/%s: %w", c.Collection, c.Key, err)
	}
	return nil
}

// CheckpointStore defines the interface for checkpoint persistence.
type CheckpointStore interface {
	// Save inserts the checkpoint, replacing any existing one with the same
	// collection and key.
	Save(ctx context.Context, cp *Checkpoint) error

	// Get returns the checkpoint for collection and key.
	// Returns ErrCheckpointNotFound if none exists.
	Get(ctx context.Context, collection, key string) (*Checkpoint, error)

	// List returns a collection's checkpoints ordered by key.
	List(ctx context.Context, collection string) ([]*Checkpoint, error)
}

// BatchSaver is implemented by stores that can save several checkpoints
// atomically.
type BatchSaver interface {
	SaveAll(ctx context.Context, cps []*Checkpoint) error
}

// SaveAll saves cps in one batch when s is a BatchSaver and one at a time
// otherwise.
func SaveAll(ctx context.Context, s CheckpointStore, cps []*Checkpoint) error {
	if b, ok := s.(BatchSaver); ok {
		return b.SaveAll(ctx, cps)
	}
	for _, cp := range cps {
		if err := s.Save(ctx, cp); err != nil {
			return err
		}
	}
	return nil
}

// Load fetches a checkpoint and decodes it into T. The boolean is false
// when no checkpoint exists.
func Load[T any](ctx context.Context, s CheckpointStore, collection, key string) (T, bool, error) {
	var out T
	cp, err := s.Get(ctx, collection, key)
	if errors.Is(err, ErrCheckpointNotFound) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if err := cp.Decode(&out); err != nil {
		return out, false, err
	}
	return out, true, nil
}
