package inventory

import (
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constants
const (
	AggregateTypeStockLevel = "StockLevel"
	AggregateTypeTransfer   = "InventoryTransfer"
)

// Event type constants
const (
	EventTypeInventoryUpdated  = "InventoryUpdated"
	EventTypeLowStockAlert     = "LowStockAlert"
	EventTypeTransferCompleted = "TransferCompleted"
)

// Operation labels carried by InventoryUpdated besides the adjust modes
const (
	OperationReserve = "reserve"
	OperationRelease = "release"
	OperationFulfill = "fulfill"
)

// InventoryUpdatedEvent is raised after every successful write to a stock level
type InventoryUpdatedEvent struct {
	shared.BaseDomainEvent
	ProductID         uuid.UUID `json:"product_id"`
	LocationID        uuid.UUID `json:"location_id"`
	PreviousAvailable int       `json:"previous_available"`
	NewAvailable      int       `json:"new_available"`
	Reserved          int       `json:"reserved"`
	Operation         string    `json:"operation"`
	OrderID           string    `json:"order_id,omitempty"`
}

// NewInventoryUpdatedEvent creates a new InventoryUpdatedEvent
func NewInventoryUpdatedEvent(level *StockLevel, previousAvailable int, operation, orderID string) *InventoryUpdatedEvent {
	return &InventoryUpdatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeInventoryUpdated, AggregateTypeStockLevel, level.ID),
		ProductID:         level.ProductID,
		LocationID:        level.LocationID,
		PreviousAvailable: previousAvailable,
		NewAvailable:      level.Available,
		Reserved:          level.Reserved,
		Operation:         operation,
		OrderID:           orderID,
	}
}

// LowStockAlertEvent is raised when available stock crosses an alert band downward
type LowStockAlertEvent struct {
	shared.BaseDomainEvent
	ProductID       uuid.UUID  `json:"product_id"`
	LocationID      uuid.UUID  `json:"location_id"`
	CurrentStock    int        `json:"current_stock"`
	AlertLevel      AlertLevel `json:"alert_level"`
	SuggestedAction string     `json:"suggested_action"`
}

// NewLowStockAlertEvent creates a new LowStockAlertEvent
func NewLowStockAlertEvent(level *StockLevel, alertLevel AlertLevel) *LowStockAlertEvent {
	return &LowStockAlertEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLowStockAlert, AggregateTypeStockLevel, level.ID),
		ProductID:       level.ProductID,
		LocationID:      level.LocationID,
		CurrentStock:    level.Available,
		AlertLevel:      alertLevel,
		SuggestedAction: alertLevel.SuggestedAction(),
	}
}

// TransferCompletedEvent is raised once both sides of a transfer are applied
type TransferCompletedEvent struct {
	shared.BaseDomainEvent
	TransferID     uuid.UUID `json:"transfer_id"`
	ProductID      uuid.UUID `json:"product_id"`
	FromLocationID uuid.UUID `json:"from_location_id"`
	ToLocationID   uuid.UUID `json:"to_location_id"`
	Quantity       int       `json:"quantity"`
}

// NewTransferCompletedEvent creates a new TransferCompletedEvent
func NewTransferCompletedEvent(t *InventoryTransfer) *TransferCompletedEvent {
	return &TransferCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransferCompleted, AggregateTypeTransfer, t.ID),
		TransferID:      t.ID,
		ProductID:       t.ProductID,
		FromLocationID:  t.FromLocationID,
		ToLocationID:    t.ToLocationID,
		Quantity:        t.Quantity,
	}
}
