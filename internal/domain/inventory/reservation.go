package inventory

import (
	"time"

	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultReservationTTL is used when the caller does not pass a TTL
const DefaultReservationTTL = 15 * time.Minute

// ReservationStatus is the lifecycle state of a reservation
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusFulfilled ReservationStatus = "fulfilled"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// IsTerminal returns true for every status except active
func (s ReservationStatus) IsTerminal() bool {
	return s != ReservationStatusActive
}

// Reservation is a time-boxed hold of stock for a pending order.
// While active its quantity is counted in the owning StockLevel's Reserved.
type Reservation struct {
	shared.BaseEntity
	ProductID  uuid.UUID
	LocationID uuid.UUID
	OrderID    string
	Quantity   int
	Status     ReservationStatus
	ReservedAt time.Time
	ExpiresAt  time.Time
	ReleasedAt *time.Time
}

// NewReservation creates an active reservation
func NewReservation(productID, locationID uuid.UUID, orderID string, quantity int, ttl time.Duration) (*Reservation, error) {
	if productID == uuid.Nil || locationID == uuid.Nil {
		return nil, shared.Newf(shared.ErrInvalidInput, "product and location are required")
	}
	if orderID == "" {
		return nil, shared.Newf(shared.ErrInvalidInput, "order ID is required")
	}
	if quantity <= 0 {
		return nil, shared.Newf(shared.ErrInvalidInput, "reservation quantity must be positive")
	}
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	base := shared.NewBaseEntity()
	return &Reservation{
		BaseEntity: base,
		ProductID:  productID,
		LocationID: locationID,
		OrderID:    orderID,
		Quantity:   quantity,
		Status:     ReservationStatusActive,
		ReservedAt: base.CreatedAt,
		ExpiresAt:  base.CreatedAt.Add(ttl),
	}, nil
}

// IsActive returns true if the reservation still holds stock
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationStatusActive
}

// IsExpired returns true if the hold has outlived its TTL
func (r *Reservation) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Fulfill marks the reservation as consumed by a completed order
func (r *Reservation) Fulfill(now time.Time) error {
	return r.close(ReservationStatusFulfilled, now)
}

// Cancel marks the reservation as explicitly released
func (r *Reservation) Cancel(now time.Time) error {
	return r.close(ReservationStatusCancelled, now)
}

// Expire marks the reservation as released by the sweep
func (r *Reservation) Expire(now time.Time) error {
	return r.close(ReservationStatusExpired, now)
}

func (r *Reservation) close(status ReservationStatus, now time.Time) error {
	if !r.IsActive() {
		return shared.Newf(shared.ErrInvalidState, "reservation %s is already %s", r.ID, r.Status)
	}
	r.Status = status
	r.ReleasedAt = &now
	r.UpdatedAt = now
	return nil
}
