package inventory

import (
	"time"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockLevelResponse represents a stock level in API responses
type StockLevelResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	LocationID  uuid.UUID `json:"location_id"`
	Available   int       `json:"available"`
	Reserved    int       `json:"reserved"`
	Total       int       `json:"total"`
	Version     int       `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
}

// ToStockLevelResponse converts a domain StockLevel to a response
func ToStockLevelResponse(level *inventory.StockLevel) StockLevelResponse {
	return StockLevelResponse{
		ID:          level.ID,
		ProductID:   level.ProductID,
		LocationID:  level.LocationID,
		Available:   level.Available,
		Reserved:    level.Reserved,
		Total:       level.Total(),
		Version:     level.Version,
		LastUpdated: level.LastUpdated,
	}
}

// AdjustStockRequest represents a request to adjust available stock
type AdjustStockRequest struct {
	ProductID  uuid.UUID `json:"product_id" binding:"required"`
	LocationID uuid.UUID `json:"location_id" binding:"required"`
	Quantity   int       `json:"quantity" binding:"min=0"`
	Mode       string    `json:"mode" binding:"required,oneof=add subtract set"`
	// MovementType overrides the movement recorded, defaults from Mode
	MovementType string     `json:"movement_type" binding:"omitempty,oneof=sale restock adjustment transfer return damaged"`
	Reason       string     `json:"reason" binding:"max=255"`
	OrderID      string     `json:"order_id" binding:"max=100"`
	ReferenceID  *uuid.UUID `json:"reference_id"`
	// Strict makes subtract fail instead of clamping at zero
	Strict bool `json:"strict"`
}

// AdjustStockResult is returned by AdjustStock
type AdjustStockResult struct {
	StockLevel        StockLevelResponse `json:"stock_level"`
	PreviousAvailable int                `json:"previous_available"`
	Applied           int                `json:"applied"`
	Shortfall         int                `json:"shortfall,omitempty"`
}

// MovementFilter selects movement log entries
type MovementFilter struct {
	ProductID  uuid.UUID  `form:"product_id" binding:"required"`
	LocationID *uuid.UUID `form:"location_id"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=200"`
}

// MovementResponse represents a movement log entry
type MovementResponse struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      uuid.UUID  `json:"product_id"`
	LocationID     uuid.UUID  `json:"location_id"`
	MovementType   string     `json:"movement_type"`
	QuantityBefore int        `json:"quantity_before"`
	QuantityChange int        `json:"quantity_change"`
	QuantityAfter  int        `json:"quantity_after"`
	OrderID        string     `json:"order_id,omitempty"`
	ReferenceID    *uuid.UUID `json:"reference_id,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

// ToMovementResponse converts a domain StockMovement to a response
func ToMovementResponse(m *inventory.StockMovement) MovementResponse {
	return MovementResponse{
		ID:             m.ID,
		ProductID:      m.ProductID,
		LocationID:     m.LocationID,
		MovementType:   string(m.MovementType),
		QuantityBefore: m.QuantityBefore,
		QuantityChange: m.QuantityChange,
		QuantityAfter:  m.QuantityAfter,
		OrderID:        m.OrderID,
		ReferenceID:    m.ReferenceID,
		Reason:         m.Reason,
		Timestamp:      m.Timestamp,
	}
}

// ReserveRequest represents a request to hold stock for an order
type ReserveRequest struct {
	ProductID  uuid.UUID `json:"product_id" binding:"required"`
	LocationID uuid.UUID `json:"location_id" binding:"required"`
	OrderID    string    `json:"order_id" binding:"required,max=100"`
	Quantity   int       `json:"quantity" binding:"required,min=1"`
	// TTLMinutes defaults to the configured reservation TTL
	TTLMinutes int `json:"ttl_minutes" binding:"omitempty,min=1,max=10080"`
}

// ReservationResponse represents a reservation in API responses
type ReservationResponse struct {
	ID         uuid.UUID  `json:"id"`
	ProductID  uuid.UUID  `json:"product_id"`
	LocationID uuid.UUID  `json:"location_id"`
	OrderID    string     `json:"order_id"`
	Quantity   int        `json:"quantity"`
	Status     string     `json:"status"`
	ReservedAt time.Time  `json:"reserved_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

// ToReservationResponse converts a domain Reservation to a response
func ToReservationResponse(r *inventory.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:         r.ID,
		ProductID:  r.ProductID,
		LocationID: r.LocationID,
		OrderID:    r.OrderID,
		Quantity:   r.Quantity,
		Status:     string(r.Status),
		ReservedAt: r.ReservedAt,
		ExpiresAt:  r.ExpiresAt,
		ReleasedAt: r.ReleasedAt,
	}
}

// InitiateTransferRequest represents a request to move stock between locations
type InitiateTransferRequest struct {
	ProductID      uuid.UUID `json:"product_id" binding:"required"`
	FromLocationID uuid.UUID `json:"from_location_id" binding:"required"`
	ToLocationID   uuid.UUID `json:"to_location_id" binding:"required,nefield=FromLocationID"`
	Quantity       int       `json:"quantity" binding:"required,min=1"`
}

// TransferResponse represents a transfer in API responses
type TransferResponse struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      uuid.UUID  `json:"product_id"`
	FromLocationID uuid.UUID  `json:"from_location_id"`
	ToLocationID   uuid.UUID  `json:"to_location_id"`
	Quantity       int        `json:"quantity"`
	Status         string     `json:"status"`
	InitiatedAt    time.Time  `json:"initiated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
}

// ToTransferResponse converts a domain InventoryTransfer to a response
func ToTransferResponse(t *inventory.InventoryTransfer) TransferResponse {
	return TransferResponse{
		ID:             t.ID,
		ProductID:      t.ProductID,
		FromLocationID: t.FromLocationID,
		ToLocationID:   t.ToLocationID,
		Quantity:       t.Quantity,
		Status:         string(t.Status),
		InitiatedAt:    t.InitiatedAt,
		CompletedAt:    t.CompletedAt,
		FailureReason:  t.FailureReason,
	}
}

// SyncRequest represents a request to reconcile one product across locations
type SyncRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Strategy  string    `json:"strategy" binding:"required,oneof=mirror even_split floor_maintain"`
	// Locations defaults to the locations the product is listed at
	Locations []uuid.UUID `json:"locations"`
	// PrimaryLocationID is the Mirror source, defaults to the first location
	PrimaryLocationID *uuid.UUID `json:"primary_location_id"`
	// Floor is the FloorMaintain minimum, defaults to the configured floor
	Floor int `json:"floor" binding:"omitempty,min=1"`
}

// SyncChange describes one location touched by a sync
type SyncChange struct {
	LocationID uuid.UUID `json:"location_id"`
	Before     int       `json:"before"`
	After      int       `json:"after"`
}

// SyncResult is returned by Sync
type SyncResult struct {
	ProductID uuid.UUID          `json:"product_id"`
	Strategy  string             `json:"strategy"`
	Changes   []SyncChange       `json:"changes"`
	Transfers []TransferResponse `json:"transfers,omitempty"`
	Failures  []ItemFailure      `json:"failures,omitempty"`
}

// OrderLineItem is one line of an order to deduct
type OrderLineItem struct {
	ProductID  uuid.UUID `json:"product_id" binding:"required"`
	LocationID uuid.UUID `json:"location_id" binding:"required"`
	Quantity   int       `json:"quantity" binding:"required,min=1"`
	Backorder  bool      `json:"backorder"`
	Preorder   bool      `json:"preorder"`
}

// SkipsStock returns true for lines that never touch stock
func (l OrderLineItem) SkipsStock() bool {
	return l.Backorder || l.Preorder
}

// DeductForOrderRequest represents a request to deduct stock for a paid order
type DeductForOrderRequest struct {
	OrderID string          `json:"order_id" binding:"required,max=100"`
	Items   []OrderLineItem `json:"items" binding:"required,min=1,dive"`
}

// ItemResult reports one successfully applied item of a batch
type ItemResult struct {
	ProductID  uuid.UUID `json:"product_id"`
	LocationID uuid.UUID `json:"location_id"`
	Requested  int       `json:"requested"`
	Applied    int       `json:"applied"`
	Shortfall  int       `json:"shortfall,omitempty"`
}

// ItemFailure reports one failed item of a batch
type ItemFailure struct {
	ProductID  uuid.UUID  `json:"product_id"`
	LocationID uuid.UUID  `json:"location_id"`
	ID         *uuid.UUID `json:"id,omitempty"`
	Code       string     `json:"code"`
	Message    string     `json:"message"`
}

// BatchResult aggregates per-item outcomes of a non-atomic batch
type BatchResult struct {
	Succeeded []ItemResult  `json:"succeeded"`
	Failed    []ItemFailure `json:"failed"`
	Skipped   []ItemResult  `json:"skipped,omitempty"`
}

// SucceededProductIDs lists product IDs of successful items
func (r *BatchResult) SucceededProductIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.Succeeded))
	for _, s := range r.Succeeded {
		ids = append(ids, s.ProductID)
	}
	return ids
}

// FailedProductIDs lists product IDs of failed items
func (r *BatchResult) FailedProductIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.Failed))
	for _, f := range r.Failed {
		ids = append(ids, f.ProductID)
	}
	return ids
}

// PopulateEntry sets one product at one location
type PopulateEntry struct {
	ProductID  uuid.UUID `json:"product_id" binding:"required"`
	LocationID uuid.UUID `json:"location_id" binding:"required"`
	Quantity   int       `json:"quantity" binding:"min=0"`
}

// PopulateStockRequest represents an initial stock population
type PopulateStockRequest struct {
	Entries []PopulateEntry `json:"entries" binding:"required,min=1,dive"`
	Reason  string          `json:"reason" binding:"max=255"`
}

// ReleaseResult aggregates ReleaseByOrder outcomes
type ReleaseResult struct {
	Released []ReservationResponse `json:"released"`
	Failed   []ItemFailure         `json:"failed"`
}

// LowStockItem is one row of the low stock report
type LowStockItem struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductCode string    `json:"product_code,omitempty"`
	ProductName string    `json:"product_name,omitempty"`
	LocationID  uuid.UUID `json:"location_id"`
	Available   int       `json:"available"`
	Reserved    int       `json:"reserved"`
	AlertLevel  string    `json:"alert_level"`
}

// StockSummary aggregates stock across every product and location
type StockSummary struct {
	StockLevels    int64           `json:"stock_levels"`
	Products       int             `json:"products"`
	OutOfStock     int64           `json:"out_of_stock"`
	Critical       int64           `json:"critical"`
	Low            int64           `json:"low"`
	Healthy        int64           `json:"healthy"`
	TotalAvailable int64           `json:"total_available"`
	TotalReserved  int64           `json:"total_reserved"`
	TotalOnHand    int64           `json:"total_on_hand"`
	TotalValue     decimal.Decimal `json:"total_value"`
	GeneratedAt    time.Time       `json:"generated_at"`
}
