package inventory

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

func TestReservationService_ReserveAndFulfill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	productID, locationID := uuid.New(), uuid.New()
	f.set(t, productID, locationID, 100)

	r, err := f.reservations.Reserve(ctx, ReserveRequest{
		ProductID:  productID,
		LocationID: locationID,
		OrderID:    "SO-1001",
		Quantity:   30,
	})
	require.NoError(t, err)
	assert.Equal(t, string(inventory.ReservationStatusActive), r.Status)
	assert.WithinDuration(t, r.ReservedAt.Add(inventory.DefaultReservationTTL), r.ExpiresAt, time.Second)

	level := f.level(t, productID, locationID)
	assert.Equal(t, 70, level.Available)
	assert.Equal(t, 30, level.Reserved)

	released, err := f.reservations.Release(ctx, r.ID, true)
	require.NoError(t, err)
	assert.Equal(t, string(inventory.ReservationStatusFulfilled), released.Status)
	assert.NotNil(t, released.ReleasedAt)

	level = f.level(t, productID, locationID)
	assert.Equal(t, 70, level.Available)
	assert.Equal(t, 0, level.Reserved)

	movements := f.store.movementsFor(productID, locationID)
	require.Len(t, movements, 2, "fulfilment does not change available")
	assert.Equal(t, inventory.MovementTypeSale, movements[1].MovementType)
	assert.Equal(t, -30, movements[1].QuantityChange)
	require.NotNil(t, movements[1].ReferenceID)
	assert.Equal(t, r.ID, *movements[1].ReferenceID)
}

func TestReservationService_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("beyond available fails and changes nothing", func(t *testing.T) {
		f := newFixture(t)
		productID, locationID := uuid.New(), uuid.New()
		f.set(t, productID, locationID, 5)

		_, err := f.reservations.Reserve(ctx, ReserveRequest{
			ProductID:  productID,
			LocationID: locationID,
			OrderID:    "SO-1",
			Quantity:   6,
		})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)

		level := f.level(t, productID, locationID)
		assert.Equal(t, 5, level.Available)
		assert.Equal(t, 0, level.Reserved)
		list, err := f.reservations.ListByOrder(ctx, "SO-1")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("missing pair is not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.reservations.Reserve(ctx, ReserveRequest{
			ProductID:  uuid.New(),
			LocationID: uuid.New(),
			OrderID:    "SO-2",
			Quantity:   1,
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("custom ttl", func(t *testing.T) {
		f := newFixture(t)
		productID, locationID := uuid.New(), uuid.New()
		f.set(t, productID, locationID, 5)

		r, err := f.reservations.Reserve(ctx, ReserveRequest{
			ProductID:  productID,
			LocationID: locationID,
			OrderID:    "SO-3",
			Quantity:   1,
			TTLMinutes: 60,
		})
		require.NoError(t, err)
		assert.WithinDuration(t, r.ReservedAt.Add(time.Hour), r.ExpiresAt, time.Second)
	})

}

func TestReservationService_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("cancel restores available", func(t *testing.T) {
		f := newFixture(t)
		productID, locationID := uuid.New(), uuid.New()
		f.set(t, productID, locationID, 10)
		r, err := f.reservations.Reserve(ctx, ReserveRequest{ProductID: productID, LocationID: locationID, OrderID: "SO-1", Quantity: 4})
		require.NoError(t, err)

		released, err := f.reservations.Release(ctx, r.ID, false)
		require.NoError(t, err)
		assert.Equal(t, string(inventory.ReservationStatusCancelled), released.Status)

		level := f.level(t, productID, locationID)
		assert.Equal(t, 10, level.Available)
		assert.Equal(t, 0, level.Reserved)

		movements := f.store.movementsFor(productID, locationID)
		require.Len(t, movements, 3)
		assert.Equal(t, inventory.MovementTypeReturn, movements[2].MovementType)
		assert.Equal(t, 4, movements[2].QuantityChange)
	})

	t.Run("releasing twice is a no-op", func(t *testing.T) {
		f := newFixture(t)
		productID, locationID := uuid.New(), uuid.New()
		f.set(t, productID, locationID, 10)
		r, err := f.reservations.Reserve(ctx, ReserveRequest{ProductID: productID, LocationID: locationID, OrderID: "SO-1", Quantity: 4})
		require.NoError(t, err)

		_, err = f.reservations.Release(ctx, r.ID, false)
		require.NoError(t, err)
		again, err := f.reservations.Release(ctx, r.ID, true)
		require.NoError(t, err)
		assert.Equal(t, string(inventory.ReservationStatusCancelled), again.Status)

		level := f.level(t, productID, locationID)
		assert.Equal(t, 10, level.Available)
		assert.Equal(t, 0, level.Reserved)
		assert.Len(t, f.store.movementsFor(productID, locationID), 3)
	})

	t.Run("unknown reservation is not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.reservations.Release(ctx, uuid.New(), false)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("release by order", func(t *testing.T) {
		f := newFixture(t)
		productID, a, b := uuid.New(), uuid.New(), uuid.New()
		f.set(t, productID, a, 10)
		f.set(t, productID, b, 10)
		_, err := f.reservations.Reserve(ctx, ReserveRequest{ProductID: productID, LocationID: a, OrderID: "SO-9", Quantity: 2})
		require.NoError(t, err)
		_, err = f.reservations.Reserve(ctx, ReserveRequest{ProductID: productID, LocationID: b, OrderID: "SO-9", Quantity: 3})
		require.NoError(t, err)

		result, err := f.reservations.ReleaseByOrder(ctx, "SO-9", false)
		require.NoError(t, err)
		assert.Len(t, result.Released, 2)
		assert.Empty(t, result.Failed)
		assert.Equal(t, 10, f.level(t, productID, a).Available)
		assert.Equal(t, 10, f.level(t, productID, b).Available)

		_, err = f.reservations.ReleaseByOrder(ctx, "", false)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestExpirySweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	productID, locationID := uuid.New(), uuid.New()
	f.set(t, productID, locationID, 20)

	var expiredIDs []uuid.UUID
	for i := 0; i < 5; i++ {
		r, err := f.reservations.Reserve(ctx, ReserveRequest{ProductID: productID, LocationID: locationID, OrderID: "SO-EXP", Quantity: 2})
		require.NoError(t, err)
		f.store.backdateReservation(r.ID, time.Now().Add(-time.Minute))
		expiredIDs = append(expiredIDs, r.ID)
	}
	live, err := f.reservations.Reserve(ctx, ReserveRequest{ProductID: productID, LocationID: locationID, OrderID: "SO-LIVE", Quantity: 3})
	require.NoError(t, err)

	stats, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalExpired)
	assert.Equal(t, 5, stats.Released)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 5, f.metrics.sweepReleased)

	for _, id := range expiredIDs {
		r, err := f.reservations.GetReservation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, string(inventory.ReservationStatusExpired), r.Status)
	}
	r, err := f.reservations.GetReservation(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, string(inventory.ReservationStatusActive), r.Status)

	level := f.level(t, productID, locationID)
	assert.Equal(t, 17, level.Available)
	assert.Equal(t, 3, level.Reserved)

	stats, err = f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalExpired)
}

func TestExpirySweeper_RetriesPendingTransfers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	productID, from, to := uuid.New(), uuid.New(), uuid.New()
	f.set(t, productID, from, 2)

	aborted, err := f.transfers.InitiateTransfer(ctx, InitiateTransferRequest{
		ProductID:      productID,
		FromLocationID: from,
		ToLocationID:   to,
		Quantity:       5,
	})
	require.ErrorIs(t, err, shared.ErrTransferAborted)
	f.set(t, productID, from, 10)

	sweeper := NewExpirySweeper(f.reservations, f.transfers, SweepConfig{TransferRetryAfter: time.Nanosecond}, nopLogger())
	time.Sleep(time.Millisecond)
	stats, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TransfersRetried)
	assert.Equal(t, 1, stats.TransfersCompleted)

	transfer, err := f.transfers.GetTransfer(ctx, aborted.ID)
	require.NoError(t, err)
	assert.Equal(t, string(inventory.TransferStatusCompleted), transfer.Status)
	assert.Equal(t, 5, f.level(t, productID, from).Available)
	assert.Equal(t, 5, f.level(t, productID, to).Available)
}

func TestExpirySweeper_CancelsStaleTransfers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	productID, from, to := uuid.New(), uuid.New(), uuid.New()
	f.set(t, productID, from, 2)

	stale, err := f.transfers.InitiateTransfer(ctx, InitiateTransferRequest{
		ProductID:      productID,
		FromLocationID: from,
		ToLocationID:   to,
		Quantity:       5,
	})
	require.ErrorIs(t, err, shared.ErrTransferAborted)
	recent, err := f.transfers.InitiateTransfer(ctx, InitiateTransferRequest{
		ProductID:      productID,
		FromLocationID: from,
		ToLocationID:   to,
		Quantity:       4,
	})
	require.ErrorIs(t, err, shared.ErrTransferAborted)

	f.store.mu.Lock()
	old := f.store.transfers[stale.ID]
	old.InitiatedAt = time.Now().Add(-2 * time.Hour)
	f.store.transfers[stale.ID] = old
	f.store.mu.Unlock()

	// Restocking the source would let both transfers complete
	f.set(t, productID, from, 10)

	sweeper := NewExpirySweeper(f.reservations, f.transfers, SweepConfig{
		TransferRetryAfter: time.Nanosecond,
		TransferMaxAge:     time.Hour,
	}, nopLogger())
	time.Sleep(time.Millisecond)
	stats, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TransfersCancelled)
	assert.Equal(t, 1, stats.TransfersRetried)
	assert.Equal(t, 1, stats.TransfersCompleted)

	got, err := f.transfers.GetTransfer(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, string(inventory.TransferStatusCancelled), got.Status)
	got, err = f.transfers.GetTransfer(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, string(inventory.TransferStatusCompleted), got.Status)

	assert.Equal(t, 6, f.level(t, productID, from).Available, "only the recent transfer moved stock")
	assert.Equal(t, 4, f.level(t, productID, to).Available)
}
