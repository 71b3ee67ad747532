package inventory

import (
	"time"

	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

// AdjustMode selects how AdjustStock applies a quantity to available stock
type AdjustMode string

const (
	AdjustModeAdd      AdjustMode = "add"
	AdjustModeSubtract AdjustMode = "subtract"
	AdjustModeSet      AdjustMode = "set"
)

// IsValid returns true if the mode is known
func (m AdjustMode) IsValid() bool {
	switch m {
	case AdjustModeAdd, AdjustModeSubtract, AdjustModeSet:
		return true
	}
	return false
}

// StockLevel holds the authoritative counters for one product at one location.
// It is the aggregate root for every ledger mutation.
// The composite identity is ProductID + LocationID.
//
// Version 0 means the row has not been persisted yet; every mutation bumps it
// and the repository writes conditionally on the version that was read.
type StockLevel struct {
	shared.BaseAggregateRoot
	ProductID   uuid.UUID
	LocationID  uuid.UUID
	Available   int
	Reserved    int
	LastUpdated time.Time
}

// NewStockLevel creates an empty, not yet persisted stock level
func NewStockLevel(productID, locationID uuid.UUID) (*StockLevel, error) {
	if productID == uuid.Nil {
		return nil, shared.Newf(shared.ErrInvalidInput, "product ID cannot be empty")
	}
	if locationID == uuid.Nil {
		return nil, shared.Newf(shared.ErrInvalidInput, "location ID cannot be empty")
	}
	root := shared.NewBaseAggregateRoot()
	root.Version = 0
	return &StockLevel{
		BaseAggregateRoot: root,
		ProductID:         productID,
		LocationID:        locationID,
		LastUpdated:       root.CreatedAt,
	}, nil
}

// Total returns available + reserved
func (s *StockLevel) Total() int {
	return s.Available + s.Reserved
}

// IsPersisted reports whether the level was loaded from the store
func (s *StockLevel) IsPersisted() bool {
	return s.Version > 0
}

// Adjustment describes a single AdjustStock request against a stock level
type Adjustment struct {
	Mode     AdjustMode
	Quantity int
	// Strict turns the subtract clamp into an insufficient stock error
	Strict  bool
	OrderID string
}

// AdjustOutcome reports what an adjustment actually did
type AdjustOutcome struct {
	PreviousAvailable int
	NewAvailable      int
	// Applied is the signed change to available
	Applied int
	// Shortfall is how much of a subtract could not be taken because stock ran out
	Shortfall int
}

// Apply mutates available stock according to the adjustment.
// Subtract never drives available below zero: unless Strict is set the
// quantity is clamped and the missing part is reported as Shortfall.
func (s *StockLevel) Apply(adj Adjustment) (AdjustOutcome, error) {
	if !adj.Mode.IsValid() {
		return AdjustOutcome{}, shared.Newf(shared.ErrInvalidInput, "unknown adjust mode %q", adj.Mode)
	}
	if adj.Quantity < 0 {
		return AdjustOutcome{}, shared.Newf(shared.ErrInvalidInput, "quantity cannot be negative")
	}

	out := AdjustOutcome{PreviousAvailable: s.Available}
	switch adj.Mode {
	case AdjustModeAdd:
		s.Available += adj.Quantity
	case AdjustModeSubtract:
		if adj.Quantity > s.Available {
			if adj.Strict {
				return AdjustOutcome{}, shared.Newf(shared.ErrInsufficientStock,
					"insufficient stock: requested %d, available %d", adj.Quantity, s.Available)
			}
			out.Shortfall = adj.Quantity - s.Available
		}
		s.Available -= adj.Quantity - out.Shortfall
	case AdjustModeSet:
		s.Available = adj.Quantity
	}
	out.NewAvailable = s.Available
	out.Applied = out.NewAvailable - out.PreviousAvailable

	s.touch()
	s.AddDomainEvent(NewInventoryUpdatedEvent(s, out.PreviousAvailable, string(adj.Mode), adj.OrderID))
	return out, nil
}

// Reserve moves quantity from available to reserved, all or nothing
func (s *StockLevel) Reserve(quantity int, orderID string) error {
	if quantity <= 0 {
		return shared.Newf(shared.ErrInvalidInput, "reservation quantity must be positive")
	}
	if s.Available < quantity {
		return shared.Newf(shared.ErrInsufficientStock,
			"insufficient stock: requested %d, available %d", quantity, s.Available)
	}
	previous := s.Available
	s.Available -= quantity
	s.Reserved += quantity
	s.touch()
	s.AddDomainEvent(NewInventoryUpdatedEvent(s, previous, OperationReserve, orderID))
	return nil
}

// ReleaseReserved takes quantity out of reserved. With restore the units go
// back to available, otherwise they leave the location as a completed sale.
func (s *StockLevel) ReleaseReserved(quantity int, restore bool, orderID string) error {
	if quantity <= 0 {
		return shared.Newf(shared.ErrInvalidInput, "release quantity must be positive")
	}
	if s.Reserved < quantity {
		return shared.Newf(shared.ErrInvalidState,
			"cannot release %d units, only %d reserved", quantity, s.Reserved)
	}
	previous := s.Available
	s.Reserved -= quantity
	operation := OperationFulfill
	if restore {
		s.Available += quantity
		operation = OperationRelease
	}
	s.touch()
	s.AddDomainEvent(NewInventoryUpdatedEvent(s, previous, operation, orderID))
	return nil
}

// CheckThreshold records a LowStockAlert when available crossed a band downward
func (s *StockLevel) CheckThreshold(policy AlertPolicy, previousAvailable int) (AlertLevel, bool) {
	level, crossed := policy.CrossedDownward(previousAvailable, s.Available)
	if crossed {
		s.AddDomainEvent(NewLowStockAlertEvent(s, level))
	}
	return level, crossed
}

func (s *StockLevel) touch() {
	now := time.Now()
	s.LastUpdated = now
	s.UpdatedAt = now
	s.IncrementVersion()
}
