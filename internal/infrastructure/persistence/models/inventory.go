package models

import (
	"time"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/google/uuid"
)

// StockLevelModel is the persistence model for the StockLevel aggregate root.
// The check constraints mirror the ledger invariant that counters never go negative.
type StockLevelModel struct {
	AggregateModel
	ProductID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_level_product_location,priority:1"`
	LocationID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_level_product_location,priority:2"`
	Available   int       `gorm:"not null;default:0;check:chk_stock_available,available >= 0"`
	Reserved    int       `gorm:"not null;default:0;check:chk_stock_reserved,reserved >= 0"`
	LastUpdated time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockLevelModel) TableName() string {
	return "stock_levels"
}

// ToDomain converts the persistence model to a domain StockLevel.
func (m *StockLevelModel) ToDomain() *inventory.StockLevel {
	return &inventory.StockLevel{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ProductID:         m.ProductID,
		LocationID:        m.LocationID,
		Available:         m.Available,
		Reserved:          m.Reserved,
		LastUpdated:       m.LastUpdated,
	}
}

// FromDomain populates the persistence model from a domain StockLevel.
func (m *StockLevelModel) FromDomain(s *inventory.StockLevel) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.ProductID = s.ProductID
	m.LocationID = s.LocationID
	m.Available = s.Available
	m.Reserved = s.Reserved
	m.LastUpdated = s.LastUpdated
}

// StockLevelModelFromDomain creates a new persistence model from a domain StockLevel.
func StockLevelModelFromDomain(s *inventory.StockLevel) *StockLevelModel {
	m := &StockLevelModel{}
	m.FromDomain(s)
	return m
}

// ReservationModel is the persistence model for the Reservation entity.
type ReservationModel struct {
	BaseModel
	ProductID  uuid.UUID                   `gorm:"type:uuid;not null;index:idx_reservation_stock,priority:1"`
	LocationID uuid.UUID                   `gorm:"type:uuid;not null;index:idx_reservation_stock,priority:2"`
	OrderID    string                      `gorm:"type:varchar(64);not null;index"`
	Quantity   int                         `gorm:"not null"`
	Status     inventory.ReservationStatus `gorm:"type:varchar(20);not null;index:idx_reservation_status_expiry,priority:1"`
	ReservedAt time.Time                   `gorm:"not null"`
	ExpiresAt  time.Time                   `gorm:"not null;index:idx_reservation_status_expiry,priority:2"`
	ReleasedAt *time.Time
}

// TableName returns the table name for GORM
func (ReservationModel) TableName() string {
	return "reservations"
}

// ToDomain converts the persistence model to a domain Reservation.
func (m *ReservationModel) ToDomain() *inventory.Reservation {
	return &inventory.Reservation{
		BaseEntity: m.BaseModel.ToDomain(),
		ProductID:  m.ProductID,
		LocationID: m.LocationID,
		OrderID:    m.OrderID,
		Quantity:   m.Quantity,
		Status:     m.Status,
		ReservedAt: m.ReservedAt,
		ExpiresAt:  m.ExpiresAt,
		ReleasedAt: m.ReleasedAt,
	}
}

// FromDomain populates the persistence model from a domain Reservation.
func (m *ReservationModel) FromDomain(r *inventory.Reservation) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.ProductID = r.ProductID
	m.LocationID = r.LocationID
	m.OrderID = r.OrderID
	m.Quantity = r.Quantity
	m.Status = r.Status
	m.ReservedAt = r.ReservedAt
	m.ExpiresAt = r.ExpiresAt
	m.ReleasedAt = r.ReleasedAt
}

// ReservationModelFromDomain creates a new persistence model from a domain Reservation.
func ReservationModelFromDomain(r *inventory.Reservation) *ReservationModel {
	m := &ReservationModel{}
	m.FromDomain(r)
	return m
}

// StockMovementModel is the persistence model for the append-only movement log.
type StockMovementModel struct {
	BaseModel
	ProductID      uuid.UUID              `gorm:"type:uuid;not null;index:idx_movement_stock_time,priority:1"`
	LocationID     uuid.UUID              `gorm:"type:uuid;not null;index:idx_movement_stock_time,priority:2"`
	MovementType   inventory.MovementType `gorm:"type:varchar(20);not null"`
	QuantityBefore int                    `gorm:"not null"`
	QuantityChange int                    `gorm:"not null"`
	QuantityAfter  int                    `gorm:"not null"`
	OrderID        string                 `gorm:"type:varchar(64);index"`
	ReferenceID    *uuid.UUID             `gorm:"type:uuid"`
	Reason         string                 `gorm:"type:varchar(255)"`
	Timestamp      time.Time              `gorm:"not null;index:idx_movement_stock_time,priority:3"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the persistence model to a domain StockMovement.
func (m *StockMovementModel) ToDomain() *inventory.StockMovement {
	return &inventory.StockMovement{
		BaseEntity:     m.BaseModel.ToDomain(),
		ProductID:      m.ProductID,
		LocationID:     m.LocationID,
		MovementType:   m.MovementType,
		QuantityBefore: m.QuantityBefore,
		QuantityChange: m.QuantityChange,
		QuantityAfter:  m.QuantityAfter,
		OrderID:        m.OrderID,
		ReferenceID:    m.ReferenceID,
		Reason:         m.Reason,
		Timestamp:      m.Timestamp,
	}
}

// StockMovementModelFromDomain creates a new persistence model from a domain StockMovement.
func StockMovementModelFromDomain(s *inventory.StockMovement) *StockMovementModel {
	m := &StockMovementModel{
		ProductID:      s.ProductID,
		LocationID:     s.LocationID,
		MovementType:   s.MovementType,
		QuantityBefore: s.QuantityBefore,
		QuantityChange: s.QuantityChange,
		QuantityAfter:  s.QuantityAfter,
		OrderID:        s.OrderID,
		ReferenceID:    s.ReferenceID,
		Reason:         s.Reason,
		Timestamp:      s.Timestamp,
	}
	m.FromDomainBaseEntity(s.BaseEntity)
	return m
}

// InventoryTransferModel is the persistence model for the InventoryTransfer aggregate root.
type InventoryTransferModel struct {
	AggregateModel
	ProductID      uuid.UUID                `gorm:"type:uuid;not null;index"`
	FromLocationID uuid.UUID                `gorm:"type:uuid;not null"`
	ToLocationID   uuid.UUID                `gorm:"type:uuid;not null"`
	Quantity       int                      `gorm:"not null;check:chk_transfer_quantity,quantity > 0"`
	Status         inventory.TransferStatus `gorm:"type:varchar(20);not null;index:idx_transfer_status_initiated,priority:1"`
	InitiatedAt    time.Time                `gorm:"not null;index:idx_transfer_status_initiated,priority:2"`
	CompletedAt    *time.Time
	FailureReason  string `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (InventoryTransferModel) TableName() string {
	return "inventory_transfers"
}

// ToDomain converts the persistence model to a domain InventoryTransfer.
func (m *InventoryTransferModel) ToDomain() *inventory.InventoryTransfer {
	return &inventory.InventoryTransfer{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ProductID:         m.ProductID,
		FromLocationID:    m.FromLocationID,
		ToLocationID:      m.ToLocationID,
		Quantity:          m.Quantity,
		Status:            m.Status,
		InitiatedAt:       m.InitiatedAt,
		CompletedAt:       m.CompletedAt,
		FailureReason:     m.FailureReason,
	}
}

// FromDomain populates the persistence model from a domain InventoryTransfer.
func (m *InventoryTransferModel) FromDomain(t *inventory.InventoryTransfer) {
	m.FromDomainAggregateRoot(t.BaseAggregateRoot)
	m.ProductID = t.ProductID
	m.FromLocationID = t.FromLocationID
	m.ToLocationID = t.ToLocationID
	m.Quantity = t.Quantity
	m.Status = t.Status
	m.InitiatedAt = t.InitiatedAt
	m.CompletedAt = t.CompletedAt
	m.FailureReason = t.FailureReason
}

// InventoryTransferModelFromDomain creates a new persistence model from a domain InventoryTransfer.
func InventoryTransferModelFromDomain(t *inventory.InventoryTransfer) *InventoryTransferModel {
	m := &InventoryTransferModel{}
	m.FromDomain(t)
	return m
}
