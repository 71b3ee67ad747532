package inventory

import (
	"time"

	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

// TransferStatus is the lifecycle state of an inventory transfer
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusInTransit TransferStatus = "in_transit"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusCancelled TransferStatus = "cancelled"
)

// IsTerminal returns true once the transfer can no longer move stock
func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusCompleted || s == TransferStatusCancelled
}

// InventoryTransfer moves stock of one product between two locations.
// The source subtract and destination add are applied in one store transaction.
type InventoryTransfer struct {
	shared.BaseAggregateRoot
	ProductID      uuid.UUID
	FromLocationID uuid.UUID
	ToLocationID   uuid.UUID
	Quantity       int
	Status         TransferStatus
	InitiatedAt    time.Time
	CompletedAt    *time.Time
	// FailureReason keeps the last abort reason while the transfer stays pending
	FailureReason string
}

// NewInventoryTransfer creates a pending transfer
func NewInventoryTransfer(productID, fromLocationID, toLocationID uuid.UUID, quantity int) (*InventoryTransfer, error) {
	if productID == uuid.Nil || fromLocationID == uuid.Nil || toLocationID == uuid.Nil {
		return nil, shared.Newf(shared.ErrInvalidInput, "product, source and destination are required")
	}
	if fromLocationID == toLocationID {
		return nil, shared.Newf(shared.ErrInvalidInput, "source and destination location must differ")
	}
	if quantity <= 0 {
		return nil, shared.Newf(shared.ErrInvalidInput, "transfer quantity must be positive")
	}
	root := shared.NewBaseAggregateRoot()
	return &InventoryTransfer{
		BaseAggregateRoot: root,
		ProductID:         productID,
		FromLocationID:    fromLocationID,
		ToLocationID:      toLocationID,
		Quantity:          quantity,
		Status:            TransferStatusPending,
		InitiatedAt:       root.CreatedAt,
	}, nil
}

// IsPending returns true while the transfer waits to be processed
func (t *InventoryTransfer) IsPending() bool {
	return t.Status == TransferStatusPending
}

// Complete marks the transfer as applied
func (t *InventoryTransfer) Complete(now time.Time) error {
	if t.Status != TransferStatusPending && t.Status != TransferStatusInTransit {
		return shared.Newf(shared.ErrInvalidState, "cannot complete transfer in status %s", t.Status)
	}
	t.Status = TransferStatusCompleted
	t.CompletedAt = &now
	t.FailureReason = ""
	t.UpdatedAt = now
	t.IncrementVersion()
	return nil
}

// Cancel abandons a transfer that has not moved stock
func (t *InventoryTransfer) Cancel(now time.Time) error {
	if t.Status.IsTerminal() {
		return shared.Newf(shared.ErrInvalidState, "cannot cancel transfer in status %s", t.Status)
	}
	t.Status = TransferStatusCancelled
	t.UpdatedAt = now
	t.IncrementVersion()
	return nil
}

// RecordFailure keeps the abort reason on a still pending transfer
func (t *InventoryTransfer) RecordFailure(reason string, now time.Time) {
	t.FailureReason = reason
	t.UpdatedAt = now
	t.IncrementVersion()
}
