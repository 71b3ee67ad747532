package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type releaseOutcome int

const (
	releaseCancel releaseOutcome = iota
	releaseFulfill
	releaseExpire
)

// ReservationService holds stock for pending orders and releases it again
type ReservationService struct {
	ledger          *StockLedger
	reservationRepo inventory.ReservationRepository
	defaultTTL      time.Duration
	logger          *zap.Logger
}

// NewReservationService creates a new ReservationService
func NewReservationService(
	ledger *StockLedger,
	reservationRepo inventory.ReservationRepository,
	defaultTTL time.Duration,
	logger *zap.Logger,
) *ReservationService {
	if defaultTTL <= 0 {
		defaultTTL = inventory.DefaultReservationTTL
	}
	return &ReservationService{
		ledger:          ledger,
		reservationRepo: reservationRepo,
		defaultTTL:      defaultTTL,
		logger:          logger,
	}
}

// Reserve moves quantity from available to reserved and records an active reservation.
// It is all or nothing: insufficient stock fails with shared.ErrInsufficientStock.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (*ReservationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reservation", "reserve",
		telemetry.SpanAttrProductID, req.ProductID,
		telemetry.SpanAttrLocationID, req.LocationID,
		telemetry.SpanAttrOrderID, req.OrderID,
		telemetry.SpanAttrQuantity, req.Quantity,
	)
	defer span.End()

	ttl := s.defaultTTL
	if req.TTLMinutes > 0 {
		ttl = time.Duration(req.TTLMinutes) * time.Minute
	}
	reservation, err := inventory.NewReservation(req.ProductID, req.LocationID, req.OrderID, req.Quantity, ttl)
	if err != nil {
		return nil, err
	}

	err = s.ledger.run(ctx, "reserve", func(tx *ledgerTx) error {
		if _, err := tx.reserve(req.ProductID, req.LocationID, req.Quantity, req.OrderID, reservation.ID); err != nil {
			return err
		}
		return tx.repos.ReservationRepo().Create(ctx, reservation)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.ledger.logFailure("reserve", req.ProductID, req.LocationID, err)
		return nil, err
	}

	resp := ToReservationResponse(reservation)
	return &resp, nil
}

// Release ends an active reservation. Unfulfilled reservations return their
// units to available; fulfilled ones drop them from reserved for good.
// Releasing a reservation that is no longer active is a successful no-op.
func (s *ReservationService) Release(ctx context.Context, reservationID uuid.UUID, fulfilled bool) (*ReservationResponse, error) {
	outcome := releaseCancel
	if fulfilled {
		outcome = releaseFulfill
	}
	return s.release(ctx, reservationID, outcome)
}

// Expire releases an overdue reservation back to available with status expired
func (s *ReservationService) Expire(ctx context.Context, reservationID uuid.UUID) (*ReservationResponse, error) {
	return s.release(ctx, reservationID, releaseExpire)
}

func (s *ReservationService) release(ctx context.Context, reservationID uuid.UUID, outcome releaseOutcome) (*ReservationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reservation", "release",
		telemetry.SpanAttrReservation, reservationID,
	)
	defer span.End()

	var reservation *inventory.Reservation
	err := s.ledger.run(ctx, "release", func(tx *ledgerTx) error {
		r, err := tx.repos.ReservationRepo().FindByID(ctx, reservationID)
		if err != nil {
			return reservationNotFound(err, reservationID)
		}
		reservation = r
		if !r.IsActive() {
			return nil
		}

		// Every status change of a reservation commits under its stock row lock,
		// so the status read after taking the lock is current.
		if _, err := tx.load(r.ProductID, r.LocationID, false); err != nil {
			return err
		}
		if r, err = tx.repos.ReservationRepo().FindByID(ctx, reservationID); err != nil {
			return reservationNotFound(err, reservationID)
		}
		reservation = r
		if !r.IsActive() {
			return nil
		}

		now := time.Now()
		var reason string
		switch outcome {
		case releaseFulfill:
			err = r.Fulfill(now)
		case releaseExpire:
			err = r.Expire(now)
			reason = fmt.Sprintf("Reservation for order #%s expired", r.OrderID)
		default:
			err = r.Cancel(now)
			reason = fmt.Sprintf("Reservation for order #%s cancelled", r.OrderID)
		}
		if err != nil {
			return err
		}

		if _, err := tx.releaseReserved(r, outcome != releaseFulfill, reason); err != nil {
			return err
		}
		return tx.repos.ReservationRepo().Close(ctx, r)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("Failed to release reservation",
			zap.String("reservation_id", reservationID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	resp := ToReservationResponse(reservation)
	return &resp, nil
}

// ReleaseByOrder releases every active reservation of an order.
// Each reservation is released independently and failures are collected.
func (s *ReservationService) ReleaseByOrder(ctx context.Context, orderID string, fulfilled bool) (*ReleaseResult, error) {
	if orderID == "" {
		return nil, shared.Newf(shared.ErrInvalidInput, "order ID is required")
	}
	reservations, err := s.reservationRepo.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	result := &ReleaseResult{
		Released: make([]ReservationResponse, 0, len(reservations)),
		Failed:   make([]ItemFailure, 0),
	}
	for _, r := range reservations {
		if !r.IsActive() {
			continue
		}
		resp, err := s.Release(ctx, r.ID, fulfilled)
		if err != nil {
			result.Failed = append(result.Failed, newItemFailure(r.ProductID, r.LocationID, r.ID, err))
			continue
		}
		result.Released = append(result.Released, *resp)
	}
	return result, nil
}

// GetReservation returns a reservation by ID
func (s *ReservationService) GetReservation(ctx context.Context, reservationID uuid.UUID) (*ReservationResponse, error) {
	r, err := s.reservationRepo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, reservationNotFound(err, reservationID)
	}
	resp := ToReservationResponse(r)
	return &resp, nil
}

// ListByOrder returns all reservations of an order
func (s *ReservationService) ListByOrder(ctx context.Context, orderID string) ([]ReservationResponse, error) {
	reservations, err := s.reservationRepo.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]ReservationResponse, len(reservations))
	for i := range reservations {
		out[i] = ToReservationResponse(&reservations[i])
	}
	return out, nil
}

func reservationNotFound(err error, id uuid.UUID) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.Newf(shared.ErrNotFound, "reservation %s not found", id)
	}
	return err
}

func newItemFailure(productID, locationID, id uuid.UUID, err error) ItemFailure {
	failure := ItemFailure{
		ProductID:  productID,
		LocationID: locationID,
		Code:       "INTERNAL_ERROR",
		Message:    err.Error(),
	}
	if id != uuid.Nil {
		failure.ID = &id
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		failure.Code = de.Code
	}
	return failure
}
