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

func TestFulfillmentService_DeductForOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	location := uuid.New()
	shirt, mug, poster, preorder := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	f.set(t, shirt, location, 10)
	f.set(t, mug, location, 1)

	result, err := f.fulfillment.DeductForOrder(ctx, DeductForOrderRequest{
		OrderID: "1042",
		Items: []OrderLineItem{
			{ProductID: shirt, LocationID: location, Quantity: 2},
			{ProductID: mug, LocationID: location, Quantity: 3},
			{ProductID: poster, LocationID: location, Quantity: 1},
			{ProductID: preorder, LocationID: location, Quantity: 1, Preorder: true},
		},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []uuid.UUID{shirt, mug}, result.SucceededProductIDs())
	assert.Equal(t, []uuid.UUID{poster}, result.FailedProductIDs())
	assert.Equal(t, shared.ErrNotFound.Code, result.Failed[0].Code)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, preorder, result.Skipped[0].ProductID)

	assert.Equal(t, 2, result.Succeeded[0].Applied)
	assert.Equal(t, 1, result.Succeeded[1].Applied)
	assert.Equal(t, 2, result.Succeeded[1].Shortfall)

	assert.Equal(t, 8, f.level(t, shirt, location).Available)
	assert.Equal(t, 0, f.level(t, mug, location).Available)

	movements := f.store.movementsFor(shirt, location)
	require.Len(t, movements, 2)
	assert.Equal(t, inventory.MovementTypeSale, movements[1].MovementType)
	assert.Equal(t, "Order #1042", movements[1].Reason)
	assert.Equal(t, "1042", movements[1].OrderID)

	t.Run("rejects an empty order", func(t *testing.T) {
		_, err := f.fulfillment.DeductForOrder(ctx, DeductForOrderRequest{OrderID: "1043"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestFulfillmentService_PopulateStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	productID, a, b := uuid.New(), uuid.New(), uuid.New()
	f.set(t, productID, a, 3)

	result, err := f.fulfillment.PopulateStock(ctx, PopulateStockRequest{
		Entries: []PopulateEntry{
			{ProductID: productID, LocationID: a, Quantity: 40},
			{ProductID: productID, LocationID: b, Quantity: 15},
			{ProductID: uuid.Nil, LocationID: b, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Len(t, result.Succeeded, 2)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, shared.ErrInvalidInput.Code, result.Failed[0].Code)

	assert.Equal(t, 40, f.level(t, productID, a).Available)
	assert.Equal(t, 15, f.level(t, productID, b).Available)

	movements := f.store.movementsFor(productID, b)
	require.Len(t, movements, 1)
	assert.Equal(t, DefaultPopulateReason, movements[0].Reason)

	_, err = f.fulfillment.PopulateStock(ctx, PopulateStockRequest{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
