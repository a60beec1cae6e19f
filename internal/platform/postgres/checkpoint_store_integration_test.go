package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/phrazzld/concrawl/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCheckpointStoreIntegration runs against a real database when
// CONCRAWL_TEST_DATABASE_URL is set.
func TestCheckpointStoreIntegration(t *testing.T) {
	url := os.Getenv("CONCRAWL_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CONCRAWL_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, url)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, Migrate(ctx, db, "up", nil))
	t.Cleanup(func() {
		_, _ = db.ExecContext(ctx, "DELETE FROM checkpoints WHERE collection = 'integration'")
	})

	s := NewPostgresCheckpointStore(db, nil)

	first, err := store.NewCheckpoint("integration", "k", map[string]int{"n": 1})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, first))

	second, err := store.NewCheckpoint("integration", "k", map[string]int{"n": 2})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, second))

	got, err := s.Get(ctx, "integration", "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(got.Payload))

	list, err := s.List(ctx, "integration")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
