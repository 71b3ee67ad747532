package inventory

import (
	"context"
	"fmt"

	"github.com/erp/stocksync/internal/domain/catalog"
	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncService reconciles one product's stock across its locations
type SyncService struct {
	ledger       *StockLedger
	transfers    *TransferService
	stockRepo    inventory.StockLevelRepository
	products     catalog.ProductRepository
	defaultFloor int
	logger       *zap.Logger
}

// NewSyncService creates a new SyncService
func NewSyncService(
	ledger *StockLedger,
	transfers *TransferService,
	stockRepo inventory.StockLevelRepository,
	products catalog.ProductRepository,
	defaultFloor int,
	logger *zap.Logger,
) *SyncService {
	if defaultFloor <= 0 {
		defaultFloor = inventory.DefaultFloor
	}
	return &SyncService{
		ledger:       ledger,
		transfers:    transfers,
		stockRepo:    stockRepo,
		products:     products,
		defaultFloor: defaultFloor,
		logger:       logger,
	}
}

// Sync applies a strategy to the product's location set.
// Mirror and EvenSplit rewrite every location in one transaction;
// FloorMaintain issues independent transfers and reports each failure.
func (s *SyncService) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	strategy := inventory.SyncStrategy(req.Strategy)
	if !strategy.IsValid() {
		return nil, shared.Newf(shared.ErrInvalidInput, "unknown sync strategy %q", req.Strategy)
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "sync",
		telemetry.SpanAttrProductID, req.ProductID,
		telemetry.SpanAttrStrategy, req.Strategy,
	)
	defer span.End()

	locations, err := s.resolveLocations(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result *SyncResult
	switch strategy {
	case inventory.SyncStrategyFloorMaintain:
		floor := req.Floor
		if floor <= 0 {
			floor = s.defaultFloor
		}
		result, err = s.floorMaintain(ctx, req.ProductID, locations, floor)
	default:
		primary := locations[0]
		if req.PrimaryLocationID != nil {
			primary = *req.PrimaryLocationID
		}
		result, err = s.rebalance(ctx, req.ProductID, strategy, locations, primary)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("Stock sync failed",
			zap.String("product_id", req.ProductID.String()),
			zap.String("strategy", req.Strategy),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Stock synced",
		zap.String("product_id", req.ProductID.String()),
		zap.String("strategy", req.Strategy),
		zap.Int("locations", len(locations)),
		zap.Int("changes", len(result.Changes)),
		zap.Int("failures", len(result.Failures)),
	)
	return result, nil
}

func (s *SyncService) resolveLocations(ctx context.Context, req SyncRequest) ([]uuid.UUID, error) {
	locations := req.Locations
	if len(locations) == 0 && s.products != nil {
		listed, err := s.products.ListedAt(ctx, req.ProductID)
		if err != nil {
			return nil, err
		}
		locations = listed
	}

	seen := make(map[uuid.UUID]bool, len(locations))
	out := make([]uuid.UUID, 0, len(locations))
	for _, id := range locations {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, shared.Newf(shared.ErrInvalidInput, "product %s has no locations to sync", req.ProductID)
	}
	return out, nil
}

// rebalance runs Mirror or EvenSplit as set adjustments in one transaction
func (s *SyncService) rebalance(
	ctx context.Context,
	productID uuid.UUID,
	strategy inventory.SyncStrategy,
	locations []uuid.UUID,
	primary uuid.UUID,
) (*SyncResult, error) {
	var changes []SyncChange
	err := s.ledger.run(ctx, "sync_"+string(strategy), func(tx *ledgerTx) error {
		changes = nil
		stocks := make([]inventory.LocationStock, 0, len(locations))
		for _, locationID := range locations {
			tl, err := tx.load(productID, locationID, true)
			if err != nil {
				return err
			}
			stocks = append(stocks, inventory.LocationStock{LocationID: locationID, Available: tl.level.Available})
		}

		var (
			plan   []inventory.SetInstruction
			reason string
		)
		if strategy == inventory.SyncStrategyMirror {
			var err error
			if plan, err = inventory.PlanMirror(primary, stocks); err != nil {
				return err
			}
			// A primary row created by this transaction was never stocked
			if tl, _ := tx.load(productID, primary, false); tl == nil || tl.expectedVersion == 0 {
				return shared.Newf(shared.ErrNotFound, "mirror primary %s has no stock recorded for product %s", primary, productID)
			}
			reason = fmt.Sprintf("Sync mirror from %s", primary)
		} else {
			plan = inventory.PlanEvenSplit(stocks)
			reason = "Sync even split"
		}

		for _, step := range plan {
			tl, err := tx.load(productID, step.LocationID, true)
			if err != nil {
				return err
			}
			if tl.level.Available == step.Quantity {
				continue
			}
			out, _, err := tx.adjust(productID, step.LocationID, inventory.Adjustment{
				Mode:     inventory.AdjustModeSet,
				Quantity: step.Quantity,
			}, inventory.MovementTypeAdjustment, reason, uuid.Nil)
			if err != nil {
				return err
			}
			changes = append(changes, SyncChange{
				LocationID: step.LocationID,
				Before:     out.PreviousAvailable,
				After:      out.NewAvailable,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changes == nil {
		changes = []SyncChange{}
	}
	return &SyncResult{
		ProductID: productID,
		Strategy:  string(strategy),
		Changes:   changes,
	}, nil
}

// floorMaintain plans from a snapshot and executes each backfill as its own transfer
func (s *SyncService) floorMaintain(ctx context.Context, productID uuid.UUID, locations []uuid.UUID, floor int) (*SyncResult, error) {
	levels, err := s.stockRepo.FindByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	current := make(map[uuid.UUID]int, len(levels))
	for _, l := range levels {
		current[l.LocationID] = l.Available
	}

	stocks := make([]inventory.LocationStock, len(locations))
	before := make(map[uuid.UUID]int, len(locations))
	for i, id := range locations {
		stocks[i] = inventory.LocationStock{LocationID: id, Available: current[id]}
		before[id] = current[id]
	}

	result := &SyncResult{
		ProductID: productID,
		Strategy:  string(inventory.SyncStrategyFloorMaintain),
		Changes:   []SyncChange{},
		Transfers: []TransferResponse{},
		Failures:  []ItemFailure{},
	}
	for _, step := range inventory.PlanFloorMaintain(stocks, floor) {
		resp, err := s.transfers.InitiateTransfer(ctx, InitiateTransferRequest{
			ProductID:      productID,
			FromLocationID: step.FromLocationID,
			ToLocationID:   step.ToLocationID,
			Quantity:       step.Quantity,
		})
		if err != nil {
			var id uuid.UUID
			if resp != nil {
				id = resp.ID
			}
			result.Failures = append(result.Failures, newItemFailure(productID, step.ToLocationID, id, err))
			continue
		}
		result.Transfers = append(result.Transfers, *resp)
		current[step.FromLocationID] -= step.Quantity
		current[step.ToLocationID] += step.Quantity
	}

	for _, id := range locations {
		if current[id] != before[id] {
			result.Changes = append(result.Changes, SyncChange{LocationID: id, Before: before[id], After: current[id]})
		}
	}
	return result, nil
}
