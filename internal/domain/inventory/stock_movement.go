package inventory

import (
	"time"

	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

// MovementType categorises a ledger mutation in the audit trail
type MovementType string

const (
	MovementTypeSale       MovementType = "sale"
	MovementTypeRestock    MovementType = "restock"
	MovementTypeAdjustment MovementType = "adjustment"
	MovementTypeTransfer   MovementType = "transfer"
	MovementTypeReturn     MovementType = "return"
	MovementTypeDamaged    MovementType = "damaged"
)

// IsValid returns true if the movement type is known
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeSale, MovementTypeRestock, MovementTypeAdjustment,
		MovementTypeTransfer, MovementTypeReturn, MovementTypeDamaged:
		return true
	}
	return false
}

// DefaultMovementType picks the movement type recorded for a plain adjustment
func DefaultMovementType(mode AdjustMode) MovementType {
	if mode == AdjustModeAdd {
		return MovementTypeRestock
	}
	return MovementTypeAdjustment
}

// StockMovement is one immutable entry of the movement log
type StockMovement struct {
	shared.BaseEntity
	ProductID      uuid.UUID
	LocationID     uuid.UUID
	MovementType   MovementType
	QuantityBefore int
	QuantityChange int
	QuantityAfter  int
	OrderID        string
	ReferenceID    *uuid.UUID
	Reason         string
	Timestamp      time.Time
}

// NewStockMovement records a change of available stock
func NewStockMovement(productID, locationID uuid.UUID, movementType MovementType, before, after int, reason string) (*StockMovement, error) {
	if !movementType.IsValid() {
		return nil, shared.Newf(shared.ErrInvalidInput, "unknown movement type %q", movementType)
	}
	base := shared.NewBaseEntity()
	return &StockMovement{
		BaseEntity:     base,
		ProductID:      productID,
		LocationID:     locationID,
		MovementType:   movementType,
		QuantityBefore: before,
		QuantityChange: after - before,
		QuantityAfter:  after,
		Reason:         reason,
		Timestamp:      base.CreatedAt,
	}, nil
}

// WithOrder ties the movement to an order
func (m *StockMovement) WithOrder(orderID string) *StockMovement {
	m.OrderID = orderID
	return m
}

// WithReference ties the movement to a reservation or transfer
func (m *StockMovement) WithReference(id uuid.UUID) *StockMovement {
	if id != uuid.Nil {
		m.ReferenceID = &id
	}
	return m
}
