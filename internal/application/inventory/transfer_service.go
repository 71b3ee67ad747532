package inventory

import (
	"bytes"
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

// transferAbort marks a source that cannot cover the transfer
type transferAbort struct {
	cause error
}

func (e *transferAbort) Error() string { return e.cause.Error() }
func (e *transferAbort) Unwrap() error { return e.cause }

// TransferService moves stock between two locations of the same product.
// The source subtract and destination add commit together or not at all.
type TransferService struct {
	ledger       *StockLedger
	transferRepo inventory.TransferRepository
	logger       *zap.Logger
}

// NewTransferService creates a new TransferService
func NewTransferService(ledger *StockLedger, transferRepo inventory.TransferRepository, logger *zap.Logger) *TransferService {
	return &TransferService{
		ledger:       ledger,
		transferRepo: transferRepo,
		logger:       logger,
	}
}

// InitiateTransfer records a pending transfer and immediately tries to process it.
// When the source cannot cover the quantity the transfer stays pending and the
// returned error matches shared.ErrTransferAborted.
func (s *TransferService) InitiateTransfer(ctx context.Context, req InitiateTransferRequest) (*TransferResponse, error) {
	transfer, err := inventory.NewInventoryTransfer(req.ProductID, req.FromLocationID, req.ToLocationID, req.Quantity)
	if err != nil {
		return nil, err
	}
	if err := s.transferRepo.Create(ctx, transfer); err != nil {
		return nil, err
	}

	s.logger.Info("Transfer initiated",
		zap.String("transfer_id", transfer.ID.String()),
		zap.String("product_id", transfer.ProductID.String()),
		zap.String("from_location_id", transfer.FromLocationID.String()),
		zap.String("to_location_id", transfer.ToLocationID.String()),
		zap.Int("quantity", transfer.Quantity),
	)

	return s.ProcessTransfer(ctx, transfer.ID)
}

// ProcessTransfer applies a pending transfer. Transfers in any other status are
// returned unchanged so retried callers see success.
func (s *TransferService) ProcessTransfer(ctx context.Context, transferID uuid.UUID) (*TransferResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer", "process",
		telemetry.SpanAttrTransferID, transferID,
	)
	defer span.End()

	var (
		transfer  *inventory.InventoryTransfer
		completed bool
	)
	err := s.ledger.run(ctx, "process_transfer", func(tx *ledgerTx) error {
		completed = false
		t, err := tx.repos.TransferRepo().FindByID(ctx, transferID)
		if err != nil {
			return transferNotFound(err, transferID)
		}
		transfer = t
		if !t.IsPending() {
			return nil
		}

		// Lock both rows in a fixed order so opposite transfers cannot deadlock,
		// then re-read the transfer, whose status only changes under these locks.
		if err := tx.lockTransferRows(t); err != nil {
			return err
		}
		if t, err = tx.repos.TransferRepo().FindByID(ctx, transferID); err != nil {
			return transferNotFound(err, transferID)
		}
		transfer = t
		if !t.IsPending() {
			return nil
		}
		expected := t.Version

		_, _, err = tx.adjust(t.ProductID, t.FromLocationID, inventory.Adjustment{
			Mode:     inventory.AdjustModeSubtract,
			Quantity: t.Quantity,
			Strict:   true,
		}, inventory.MovementTypeTransfer, fmt.Sprintf("Transfer %s to %s", t.ID, t.ToLocationID), t.ID)
		if err != nil {
			if errors.Is(err, shared.ErrInsufficientStock) || errors.Is(err, shared.ErrNotFound) {
				return &transferAbort{cause: err}
			}
			return err
		}

		_, _, err = tx.adjust(t.ProductID, t.ToLocationID, inventory.Adjustment{
			Mode:     inventory.AdjustModeAdd,
			Quantity: t.Quantity,
		}, inventory.MovementTypeTransfer, fmt.Sprintf("Transfer %s from %s", t.ID, t.FromLocationID), t.ID)
		if err != nil {
			return err
		}

		if err := t.Complete(time.Now()); err != nil {
			return err
		}
		completed = true
		return tx.repos.TransferRepo().Save(ctx, t, expected)
	})

	var abort *transferAbort
	if errors.As(err, &abort) {
		telemetry.RecordError(span, err)
		return s.recordAbort(ctx, transferID, abort.cause)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("Failed to process transfer",
			zap.String("transfer_id", transferID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	if completed {
		s.ledger.publish(context.WithoutCancel(ctx), inventory.NewTransferCompletedEvent(transfer))
	}
	resp := ToTransferResponse(transfer)
	return &resp, nil
}

// recordAbort keeps the abort reason on the still pending transfer
func (s *TransferService) recordAbort(ctx context.Context, transferID uuid.UUID, cause error) (*TransferResponse, error) {
	s.ledger.metrics.ObserveTransferAbort()
	abortErr := shared.Newf(shared.ErrTransferAborted, "transfer %s aborted: %s", transferID, cause.Error())

	transfer, err := s.transferRepo.FindByID(ctx, transferID)
	if err != nil {
		return nil, abortErr
	}
	if !transfer.IsPending() {
		resp := ToTransferResponse(transfer)
		return &resp, nil
	}
	expected := transfer.Version
	transfer.RecordFailure(cause.Error(), time.Now())
	if err := s.transferRepo.Save(ctx, transfer, expected); err != nil {
		s.logger.Warn("Failed to record transfer abort reason",
			zap.String("transfer_id", transferID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("Transfer aborted, left pending",
		zap.String("transfer_id", transferID.String()),
		zap.String("product_id", transfer.ProductID.String()),
		zap.String("location_id", transfer.FromLocationID.String()),
		zap.String("reason", cause.Error()),
	)
	resp := ToTransferResponse(transfer)
	return &resp, abortErr
}

// CancelTransfer abandons a pending transfer. Cancelling twice is a no-op;
// a completed transfer cannot be cancelled.
func (s *TransferService) CancelTransfer(ctx context.Context, transferID uuid.UUID) (*TransferResponse, error) {
	transfer, err := s.transferRepo.FindByID(ctx, transferID)
	if err != nil {
		return nil, transferNotFound(err, transferID)
	}
	if transfer.Status == inventory.TransferStatusCancelled {
		resp := ToTransferResponse(transfer)
		return &resp, nil
	}

	expected := transfer.Version
	if err := transfer.Cancel(time.Now()); err != nil {
		return nil, err
	}
	if err := s.transferRepo.Save(ctx, transfer, expected); err != nil {
		return nil, err
	}
	resp := ToTransferResponse(transfer)
	return &resp, nil
}

// GetTransfer returns a transfer by ID
func (s *TransferService) GetTransfer(ctx context.Context, transferID uuid.UUID) (*TransferResponse, error) {
	transfer, err := s.transferRepo.FindByID(ctx, transferID)
	if err != nil {
		return nil, transferNotFound(err, transferID)
	}
	resp := ToTransferResponse(transfer)
	return &resp, nil
}

// ListPendingTransfers returns pending transfers, oldest first
func (s *TransferService) ListPendingTransfers(ctx context.Context, limit int) ([]TransferResponse, error) {
	if limit <= 0 {
		limit = shared.DefaultFilter().PageSize
	}
	pending, err := s.transferRepo.FindPending(ctx, time.Now(), limit)
	if err != nil {
		return nil, err
	}
	out := make([]TransferResponse, len(pending))
	for i := range pending {
		out[i] = ToTransferResponse(&pending[i])
	}
	return out, nil
}

// TransferRetryStats summarises one pass over pending transfers
type TransferRetryStats struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Aborted   int `json:"aborted"`
	Failed    int `json:"failed"`
}

// RetryPending re-processes transfers left pending before the cutoff
func (s *TransferService) RetryPending(ctx context.Context, initiatedBefore time.Time, limit int) (*TransferRetryStats, error) {
	pending, err := s.transferRepo.FindPending(ctx, initiatedBefore, limit)
	if err != nil {
		return nil, err
	}

	stats := &TransferRetryStats{Pending: len(pending)}
	for _, t := range pending {
		_, err := s.ProcessTransfer(ctx, t.ID)
		switch {
		case err == nil:
			stats.Completed++
		case errors.Is(err, shared.ErrTransferAborted):
			stats.Aborted++
		default:
			stats.Failed++
		}
	}
	return stats, nil
}

// CancelStale cancels transfers still pending since before the cutoff.
// Their initiator may already have covered the need another way.
func (s *TransferService) CancelStale(ctx context.Context, initiatedBefore time.Time, limit int) (int, error) {
	stale, err := s.transferRepo.FindPending(ctx, initiatedBefore, limit)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for i := range stale {
		t := &stale[i]
		expected := t.Version
		if err := t.Cancel(time.Now()); err != nil {
			continue
		}
		if err := s.transferRepo.Save(ctx, t, expected); err != nil {
			s.logger.Warn("Failed to cancel stale transfer",
				zap.String("transfer_id", t.ID.String()),
				zap.Error(err),
			)
			continue
		}
		cancelled++
		s.logger.Info("Stale transfer cancelled",
			zap.String("transfer_id", t.ID.String()),
			zap.String("product_id", t.ProductID.String()),
			zap.Time("initiated_at", t.InitiatedAt),
			zap.String("last_failure", t.FailureReason),
		)
	}
	return cancelled, nil
}

// lockTransferRows takes the source and destination row locks in UUID order.
// A source without stock aborts the transfer.
func (t *ledgerTx) lockTransferRows(transfer *inventory.InventoryTransfer) error {
	first, second := transfer.FromLocationID, transfer.ToLocationID
	if bytes.Compare(second[:], first[:]) < 0 {
		first, second = second, first
	}
	for _, locationID := range []uuid.UUID{first, second} {
		isSource := locationID == transfer.FromLocationID
		if _, err := t.load(transfer.ProductID, locationID, !isSource); err != nil {
			if isSource && errors.Is(err, shared.ErrNotFound) {
				return &transferAbort{cause: err}
			}
			return err
		}
	}
	return nil
}

func transferNotFound(err error, id uuid.UUID) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.Newf(shared.ErrNotFound, "transfer %s not found", id)
	}
	return err
}
