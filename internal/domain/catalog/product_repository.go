package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ProductRepository defines the interface for product persistence.
// It is the catalog boundary used by the stock engine.
type ProductRepository interface {
	// FindByID finds a product by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByIDs finds multiple products by their IDs, missing IDs are skipped
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)

	// ListedAt returns the locations a product is listed at, in priority order
	ListedAt(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)

	// SetInStock writes the in-stock flag
	SetInStock(ctx context.Context, id uuid.UUID, inStock bool) error

	// Save creates or updates a product with its listings
	Save(ctx context.Context, product *Product) error
}
