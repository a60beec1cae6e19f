package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/concrawl/internal/platform/logger"
	"github.com/phrazzld/concrawl/internal/store"
)

// PostgresCheckpointStore implements store.CheckpointStore on the
// checkpoints table.
type PostgresCheckpointStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCheckpointStore creates a checkpoint store on db, which may be a
// pool or a transaction. If logger is nil, the default logger is used.
func NewPostgresCheckpointStore(db store.DBTX, logger *slog.Logger) *PostgresCheckpointStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCheckpointStore{
		db:     db,
		logger: logger.With(slog.String("component", "checkpoint_store")),
	}
}

var (
	_ store.CheckpointStore = (*PostgresCheckpointStore)(nil)
	_ store.BatchSaver      = (*PostgresCheckpointStore)(nil)
)

// WithTx returns a store running its statements in tx.
func (s *PostgresCheckpointStore) WithTx(tx *sql.Tx) *PostgresCheckpointStore {
	return &PostgresCheckpointStore{db: tx, logger: s.logger}
}

const upsertCheckpointQuery = `
	INSERT INTO checkpoints (id, collection, key, payload, saved_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (collection, key)
	DO UPDATE SET payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at
`

// Save implements store.CheckpointStore.
func (s *PostgresCheckpointStore) Save(ctx context.Context, cp *store.Checkpoint) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := cp.Validate(); err != nil {
		log.Warn("checkpoint validation failed",
			slog.String("collection", cp.Collection),
			slog.String("key", cp.Key),
			slog.String("error", err.Error()))
		return err
	}

	_, err := s.db.ExecContext(ctx, upsertCheckpointQuery,
		cp.ID, cp.Collection, cp.Key, []byte(cp.Payload), cp.SavedAt)
	if err != nil {
		log.Error("failed to save checkpoint",
			slog.String("collection", cp.Collection),
			slog.String("key", cp.Key),
			slog.String("error", err.Error()))
		return store.NewStoreError("checkpoint", "save", "upsert failed", MapError(err))
	}

	log.Debug("checkpoint saved",
		slog.String("collection", cp.Collection),
		slog.String("key", cp.Key))
	return nil
}

// SaveAll implements store.BatchSaver. On a pool the checkpoints are saved
// in one transaction; a store already bound to a transaction saves them in
// that transaction.
func (s *PostgresCheckpointStore) SaveAll(ctx context.Context, cps []*store.Checkpoint) error {
	db, ok := s.db.(*sql.DB)
	if !ok {
		return s.saveEach(ctx, cps)
	}
	return store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		return s.WithTx(tx).saveEach(ctx, cps)
	})
}

func (s *PostgresCheckpointStore) saveEach(ctx context.Context, cps []*store.Checkpoint) error {
	for _, cp := range cps {
		if err := s.Save(ctx, cp); err != nil {
			return err
		}
	}
	return nil
}

const getCheckpointQuery = `
	SELECT id, collection, key, payload, saved_at
	FROM checkpoints
	WHERE collection = $1 AND key = $2
`

// Get implements store.CheckpointStore.
func (s *PostgresCheckpointStore) Get(ctx context.Context, collection, key string) (*store.Checkpoint, error) {
	var cp store.Checkpoint
	var payload []byte
	err := s.db.QueryRowContext(ctx, getCheckpointQuery, collection, key).
		Scan(&cp.ID, &cp.Collection, &cp.Key, &payload, &cp.SavedAt)
	if IsNotFoundError(err) {
		return nil, store.ErrCheckpointNotFound
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get checkpoint",
			slog.String("collection", collection),
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("checkpoint", "get", "query failed", MapError(err))
	}
	cp.Payload = payload
	return &cp, nil
}

const listCheckpointsQuery = `
	SELECT id, collection, key, payload, saved_at
	FROM checkpoints
	WHERE collection = $1
	ORDER BY key
`

// List implements store.CheckpointStore.
func (s *PostgresCheckpointStore) List(ctx context.Context, collection string) ([]*store.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, listCheckpointsQuery, collection)
	if err != nil {
		return nil, store.NewStoreError("checkpoint", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []*store.Checkpoint
	for rows.Next() {
		var cp store.Checkpoint
		var payload []byte
		if err := rows.Scan(&cp.ID, &cp.Collection, &cp.Key, &payload, &cp.SavedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		cp.Payload = payload
		out = append(out, &cp)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("checkpoint", "list", "row iteration failed", MapError(err))
	}
	return out, nil
}
