package inventory

import (
	"context"
	"testing"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncService_Mirror(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	primary, b, c := uuid.New(), uuid.New(), uuid.New()
	productID := f.addProduct(t, "4.50", primary, b, c)
	f.set(t, productID, primary, 12)
	f.set(t, productID, b, 3)

	result, err := f.syncer.Sync(ctx, SyncRequest{ProductID: productID, Strategy: "mirror"})
	require.NoError(t, err)
	assert.Len(t, result.Changes, 2)

	for _, loc := range []uuid.UUID{primary, b, c} {
		assert.Equal(t, 12, f.level(t, productID, loc).Available)
	}
	movements := f.store.movementsFor(productID, c)
	require.Len(t, movements, 1)
	assert.Equal(t, inventory.MovementTypeAdjustment, movements[0].MovementType)
	assert.Contains(t, movements[0].Reason, "mirror")

	t.Run("primary must be in the location set", func(t *testing.T) {
		other := uuid.New()
		_, err := f.syncer.Sync(ctx, SyncRequest{ProductID: productID, Strategy: "mirror", PrimaryLocationID: &other})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("never stocked primary is not found and leaves replicas alone", func(t *testing.T) {
		empty := uuid.New()
		_, err := f.syncer.Sync(ctx, SyncRequest{
			ProductID:         productID,
			Strategy:          "mirror",
			Locations:         []uuid.UUID{primary, empty},
			PrimaryLocationID: &empty,
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Equal(t, 12, f.level(t, productID, primary).Available)

		_, err = f.ledger.GetStockLevel(ctx, productID, empty)
		assert.ErrorIs(t, err, shared.ErrNotFound, "the failed sync created no row")
	})

	t.Run("already mirrored is a no-op", func(t *testing.T) {
		result, err := f.syncer.Sync(ctx, SyncRequest{ProductID: productID, Strategy: "mirror"})
		require.NoError(t, err)
		assert.Empty(t, result.Changes)
	})
}

func TestSyncService_EvenSplit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	productID, a, b, c := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	f.set(t, productID, a, 10)
	f.set(t, productID, c, 1)

	result, err := f.syncer.Sync(ctx, SyncRequest{
		ProductID: productID,
		Strategy:  "even_split",
		Locations: []uuid.UUID{a, b, c},
	})
	require.NoError(t, err)
	assert.Equal(t, "even_split", result.Strategy)

	assert.Equal(t, 4, f.level(t, productID, a).Available)
	assert.Equal(t, 4, f.level(t, productID, b).Available)
	assert.Equal(t, 3, f.level(t, productID, c).Available)
}

func TestSyncService_FloorMaintain(t *testing.T) {
	ctx := context.Background()

	t.Run("backfills from the largest surplus", func(t *testing.T) {
		f := newFixture(t)
		a, b := uuid.New(), uuid.New()
		productID := f.addProduct(t, "1.00", a, b)
		f.set(t, productID, a, 20)

		result, err := f.syncer.Sync(ctx, SyncRequest{ProductID: productID, Strategy: "floor_maintain"})
		require.NoError(t, err)
		require.Len(t, result.Transfers, 1)
		assert.Empty(t, result.Failures)
		assert.Equal(t, 5, result.Transfers[0].Quantity)
		assert.Equal(t, []SyncChange{
			{LocationID: a, Before: 20, After: 15},
			{LocationID: b, Before: 0, After: 5},
		}, result.Changes)

		assert.Equal(t, 15, f.level(t, productID, a).Available)
		assert.Equal(t, 5, f.level(t, productID, b).Available)
	})

	t.Run("skips a location no donor can cover", func(t *testing.T) {
		f := newFixture(t)
		a, b := uuid.New(), uuid.New()
		productID := f.addProduct(t, "1.00", a, b)
		f.set(t, productID, a, 6)

		result, err := f.syncer.Sync(ctx, SyncRequest{ProductID: productID, Strategy: "floor_maintain"})
		require.NoError(t, err)
		assert.Empty(t, result.Transfers)
		assert.Empty(t, result.Changes)
		assert.Equal(t, 6, f.level(t, productID, a).Available)
	})

	t.Run("custom floor", func(t *testing.T) {
		f := newFixture(t)
		a, b := uuid.New(), uuid.New()
		productID := f.addProduct(t, "1.00", a, b)
		f.set(t, productID, a, 30)
		f.set(t, productID, b, 2)

		result, err := f.syncer.Sync(ctx, SyncRequest{ProductID: productID, Strategy: "floor_maintain", Floor: 10})
		require.NoError(t, err)
		require.Len(t, result.Transfers, 1)
		assert.Equal(t, 8, result.Transfers[0].Quantity)
		assert.Equal(t, 10, f.level(t, productID, b).Available)
	})
}

func TestSyncService_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	productID := f.addProduct(t, "1.00")

	_, err := f.syncer.Sync(ctx, SyncRequest{ProductID: productID, Strategy: "mirror"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput, "a product listed nowhere has nothing to sync")

	_, err = f.syncer.Sync(ctx, SyncRequest{ProductID: productID, Strategy: "round_robin", Locations: []uuid.UUID{uuid.New()}})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
