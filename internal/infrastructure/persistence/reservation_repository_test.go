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

func newTestReservation(t *testing.T, orderID string, ttl time.Duration) *inventory.Reservation {
	t.Helper()
	r, err := inventory.NewReservation(uuid.New(), uuid.New(), orderID, 2, ttl)
	require.NoError(t, err)
	return r
}

func TestGormReservationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormReservationRepository(setupTestDB(t))

	live := newTestReservation(t, "SO-1", time.Hour)
	overdue := newTestReservation(t, "SO-1", time.Minute)
	overdue.ExpiresAt = time.Now().Add(-time.Minute)
	closed := newTestReservation(t, "SO-2", time.Minute)
	closed.ExpiresAt = time.Now().Add(-2 * time.Minute)

	for _, r := range []*inventory.Reservation{live, overdue, closed} {
		require.NoError(t, repo.Create(ctx, r))
	}
	require.NoError(t, closed.Fulfill(time.Now()))
	require.NoError(t, repo.Close(ctx, closed))

	t.Run("FindByID", func(t *testing.T) {
		found, err := repo.FindByID(ctx, live.ID)
		require.NoError(t, err)
		assert.Equal(t, "SO-1", found.OrderID)
		assert.Equal(t, inventory.ReservationStatusActive, found.Status)
		assert.Nil(t, found.ReleasedAt)

		_, err = repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("FindByOrder", func(t *testing.T) {
		found, err := repo.FindByOrder(ctx, "SO-1")
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("FindExpiredActive skips live and closed reservations", func(t *testing.T) {
		found, err := repo.FindExpiredActive(ctx, time.Now(), 10)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, overdue.ID, found[0].ID)
	})

	t.Run("Close only wins once", func(t *testing.T) {
		first, err := repo.FindByID(ctx, overdue.ID)
		require.NoError(t, err)
		second := *first

		require.NoError(t, first.Expire(time.Now()))
		require.NoError(t, repo.Close(ctx, first))

		require.NoError(t, second.Cancel(time.Now()))
		assert.ErrorIs(t, repo.Close(ctx, &second), shared.ErrConcurrencyConflict)

		stored, err := repo.FindByID(ctx, overdue.ID)
		require.NoError(t, err)
		assert.Equal(t, inventory.ReservationStatusExpired, stored.Status)
		assert.NotNil(t, stored.ReleasedAt)
	})
}
