package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormTransferRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormTransferRepository(setupTestDB(t))

	older, err := inventory.NewInventoryTransfer(uuid.New(), uuid.New(), uuid.New(), 5)
	require.NoError(t, err)
	older.InitiatedAt = time.Now().Add(-time.Hour)
	newer, err := inventory.NewInventoryTransfer(uuid.New(), uuid.New(), uuid.New(), 3)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	t.Run("FindPending applies the cutoff", func(t *testing.T) {
		pending, err := repo.FindPending(ctx, time.Now().Add(-time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, older.ID, pending[0].ID)

		pending, err = repo.FindPending(ctx, time.Now().Add(time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, older.ID, pending[0].ID, "oldest first")
	})

	t.Run("Save checks the version", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, older.ID)
		require.NoError(t, err)
		expected := loaded.Version
		loaded.RecordFailure("insufficient stock", time.Now())
		require.NoError(t, repo.Save(ctx, loaded, expected))

		stale := *loaded
		require.NoError(t, stale.Complete(time.Now()))
		assert.ErrorIs(t, repo.Save(ctx, &stale, expected), shared.ErrConcurrencyConflict)

		stored, err := repo.FindByID(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, inventory.TransferStatusPending, stored.Status)
		assert.Equal(t, "insufficient stock", stored.FailureReason)
		assert.Equal(t, expected+1, stored.Version)
	})

	t.Run("completed transfers leave the pending set", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, newer.ID)
		require.NoError(t, err)
		expected := loaded.Version
		require.NoError(t, loaded.Complete(time.Now()))
		require.NoError(t, repo.Save(ctx, loaded, expected))

		pending, err := repo.FindPending(ctx, time.Now().Add(time.Minute), 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)

		stored, err := repo.FindByID(ctx, newer.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored.CompletedAt)
	})

	t.Run("missing transfer", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
