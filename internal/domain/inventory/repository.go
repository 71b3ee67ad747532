package inventory

import (
	"context"
	"time"

	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

// StockLevelRepository persists stock levels
type StockLevelRepository interface {
	// FindByProductAndLocation returns shared.ErrNotFound when the pair has no row yet
	FindByProductAndLocation(ctx context.Context, productID, locationID uuid.UUID) (*StockLevel, error)
	// FindByProductAndLocationForUpdate reads like FindByProductAndLocation and
	// holds a row lock until the surrounding transaction ends
	FindByProductAndLocationForUpdate(ctx context.Context, productID, locationID uuid.UUID) (*StockLevel, error)
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]StockLevel, error)
	// FindAtOrBelow returns levels whose available is <= threshold, lowest first
	FindAtOrBelow(ctx context.Context, threshold int, filter shared.Filter) ([]StockLevel, error)
	// SumAvailableByProduct returns the available units of a product across all locations
	SumAvailableByProduct(ctx context.Context, productID uuid.UUID) (int, error)
	// SummarizeByProduct returns per-product totals for reporting
	SummarizeByProduct(ctx context.Context) ([]ProductStockTotal, error)
	// CountByBand counts rows in each alert band
	CountByBand(ctx context.Context, policy AlertPolicy) (StockBandCounts, error)
	// Save inserts the level when expectedVersion is 0, otherwise updates it
	// only if the stored version still equals expectedVersion.
	// A lost race returns shared.ErrConcurrencyConflict.
	Save(ctx context.Context, level *StockLevel, expectedVersion int) error
}

// ProductStockTotal aggregates one product's stock over all locations
type ProductStockTotal struct {
	ProductID uuid.UUID
	Available int64
	Reserved  int64
	Locations int64
}

// StockBandCounts is the number of stock levels in each alert band
type StockBandCounts struct {
	OutOfStock int64
	Critical   int64
	Low        int64
	Healthy    int64
}

// Total returns the number of stock levels counted
func (c StockBandCounts) Total() int64 {
	return c.OutOfStock + c.Critical + c.Low + c.Healthy
}

// ReservationRepository persists reservations
type ReservationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	FindByOrder(ctx context.Context, orderID string) ([]Reservation, error)
	// FindExpiredActive returns active reservations whose expiry is before now
	FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]Reservation, error)
	Create(ctx context.Context, r *Reservation) error
	// Close persists a terminal status, only if the stored row is still active
	Close(ctx context.Context, r *Reservation) error
}

// MovementRepository appends to and queries the movement log
type MovementRepository interface {
	Create(ctx context.Context, m *StockMovement) error
	// Find lists movements newest first; a nil location matches all locations
	Find(ctx context.Context, productID uuid.UUID, locationID *uuid.UUID, filter shared.Filter) ([]StockMovement, error)
}

// TransferRepository persists transfers
type TransferRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*InventoryTransfer, error)
	// FindPending returns pending transfers initiated before the cutoff, oldest first
	FindPending(ctx context.Context, initiatedBefore time.Time, limit int) ([]InventoryTransfer, error)
	Create(ctx context.Context, t *InventoryTransfer) error
	// Save updates the transfer only if the stored version equals expectedVersion
	Save(ctx context.Context, t *InventoryTransfer, expectedVersion int) error
}
