package inventory

import (
	"context"
	"fmt"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPopulateReason is recorded on movements written by PopulateStock
const DefaultPopulateReason = "Initial stock population"

// FulfillmentService applies whole orders and bulk loads to the ledger.
// Items are independent: one failing item never rolls back another.
type FulfillmentService struct {
	ledger *StockLedger
	logger *zap.Logger
}

// NewFulfillmentService creates a new FulfillmentService
func NewFulfillmentService(ledger *StockLedger, logger *zap.Logger) *FulfillmentService {
	return &FulfillmentService{
		ledger: ledger,
		logger: logger,
	}
}

// DeductForOrder subtracts every stocked line of a paid order.
// Backorder and preorder lines are skipped. A line whose stock ran out is
// clamped at zero and reported with its shortfall rather than failed.
func (s *FulfillmentService) DeductForOrder(ctx context.Context, req DeductForOrderRequest) (*BatchResult, error) {
	if req.OrderID == "" {
		return nil, shared.Newf(shared.ErrInvalidInput, "order ID is required")
	}
	if len(req.Items) == 0 {
		return nil, shared.Newf(shared.ErrInvalidInput, "order %s has no items", req.OrderID)
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "fulfillment", "deduct_for_order",
		telemetry.SpanAttrOrderID, req.OrderID,
	)
	defer span.End()

	result := &BatchResult{
		Succeeded: make([]ItemResult, 0, len(req.Items)),
		Failed:    make([]ItemFailure, 0),
		Skipped:   make([]ItemResult, 0),
	}
	reason := fmt.Sprintf("Order #%s", req.OrderID)

	for _, item := range req.Items {
		if item.SkipsStock() {
			result.Skipped = append(result.Skipped, ItemResult{
				ProductID:  item.ProductID,
				LocationID: item.LocationID,
				Requested:  item.Quantity,
			})
			continue
		}

		res, err := s.ledger.AdjustStock(ctx, AdjustStockRequest{
			ProductID:    item.ProductID,
			LocationID:   item.LocationID,
			Quantity:     item.Quantity,
			Mode:         string(inventory.AdjustModeSubtract),
			MovementType: string(inventory.MovementTypeSale),
			Reason:       reason,
			OrderID:      req.OrderID,
		})
		if err != nil {
			result.Failed = append(result.Failed, newItemFailure(item.ProductID, item.LocationID, uuid.Nil, err))
			continue
		}
		result.Succeeded = append(result.Succeeded, ItemResult{
			ProductID:  item.ProductID,
			LocationID: item.LocationID,
			Requested:  item.Quantity,
			Applied:    -res.Applied,
			Shortfall:  res.Shortfall,
		})
	}

	if len(result.Failed) > 0 {
		s.logger.Warn("Order deduction partially failed",
			zap.String("order_id", req.OrderID),
			zap.Int("succeeded", len(result.Succeeded)),
			zap.Int("failed", len(result.Failed)),
		)
	} else {
		s.logger.Info("Order deducted",
			zap.String("order_id", req.OrderID),
			zap.Int("items", len(result.Succeeded)),
			zap.Int("skipped", len(result.Skipped)),
		)
	}
	return result, nil
}

// PopulateStock sets absolute quantities for many product/location pairs,
// creating rows that do not exist yet
func (s *FulfillmentService) PopulateStock(ctx context.Context, req PopulateStockRequest) (*BatchResult, error) {
	if len(req.Entries) == 0 {
		return nil, shared.Newf(shared.ErrInvalidInput, "no entries to populate")
	}
	reason := req.Reason
	if reason == "" {
		reason = DefaultPopulateReason
	}

	result := &BatchResult{
		Succeeded: make([]ItemResult, 0, len(req.Entries)),
		Failed:    make([]ItemFailure, 0),
	}
	for _, entry := range req.Entries {
		res, err := s.ledger.AdjustStock(ctx, AdjustStockRequest{
			ProductID:    entry.ProductID,
			LocationID:   entry.LocationID,
			Quantity:     entry.Quantity,
			Mode:         string(inventory.AdjustModeSet),
			MovementType: string(inventory.MovementTypeAdjustment),
			Reason:       reason,
		})
		if err != nil {
			result.Failed = append(result.Failed, newItemFailure(entry.ProductID, entry.LocationID, uuid.Nil, err))
			continue
		}
		result.Succeeded = append(result.Succeeded, ItemResult{
			ProductID:  entry.ProductID,
			LocationID: entry.LocationID,
			Requested:  entry.Quantity,
			Applied:    res.Applied,
		})
	}

	s.logger.Info("Stock populated",
		zap.Int("entries", len(req.Entries)),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}
