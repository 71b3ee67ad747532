package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/erp/stocksync/internal/domain/catalog"
	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultMaxAttempts bounds the optimistic concurrency retries of one write
	DefaultMaxAttempts = 3
	// DefaultRetryBaseDelay is the first pause before a retry; later pauses grow and are jittered
	DefaultRetryBaseDelay = 5 * time.Millisecond
)

// LedgerConfig tunes the stock ledger
type LedgerConfig struct {
	MaxAttempts    int
	RetryBaseDelay time.Duration
	AlertPolicy    inventory.AlertPolicy
}

// DefaultLedgerConfig returns the default ledger configuration
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		MaxAttempts:    DefaultMaxAttempts,
		RetryBaseDelay: DefaultRetryBaseDelay,
		AlertPolicy:    inventory.DefaultAlertPolicy(),
	}
}

// StockLedger is the only component that writes stock levels.
// Every mutation locks and reads the current row, applies the change and
// writes it back conditionally on the version it read. The row lock makes
// writers of the same pair queue up; the version check still guards stores
// without row locks, and a lost race is retried after a jittered pause.
type StockLedger struct {
	txScope        TransactionScope
	stockRepo      inventory.StockLevelRepository
	movementRepo   inventory.MovementRepository
	products       catalog.ProductRepository
	eventPublisher shared.EventPublisher
	metrics        Metrics
	logger         *zap.Logger
	config         LedgerConfig
}

// NewStockLedger creates a new StockLedger
func NewStockLedger(
	txScope TransactionScope,
	stockRepo inventory.StockLevelRepository,
	movementRepo inventory.MovementRepository,
	products catalog.ProductRepository,
	logger *zap.Logger,
	config LedgerConfig,
) *StockLedger {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = DefaultRetryBaseDelay
	}
	return &StockLedger{
		txScope:      txScope,
		stockRepo:    stockRepo,
		movementRepo: movementRepo,
		products:     products,
		metrics:      noopMetrics{},
		logger:       logger,
		config:       config,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *StockLedger) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the metrics recorder
func (s *StockLedger) SetMetrics(metrics Metrics) {
	if metrics != nil {
		s.metrics = metrics
	}
}

// AlertPolicy returns the thresholds used for low stock alerts
func (s *StockLedger) AlertPolicy() inventory.AlertPolicy {
	return s.config.AlertPolicy
}

// AdjustStock adds to, subtracts from or sets the available stock of one product at one location
func (s *StockLedger) AdjustStock(ctx context.Context, req AdjustStockRequest) (*AdjustStockResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "adjust_stock",
		telemetry.SpanAttrProductID, req.ProductID,
		telemetry.SpanAttrLocationID, req.LocationID,
		telemetry.SpanAttrMode, req.Mode,
		telemetry.SpanAttrQuantity, req.Quantity,
	)
	defer span.End()

	mode := inventory.AdjustMode(req.Mode)
	movementType := inventory.MovementType(req.MovementType)
	if movementType == "" {
		movementType = inventory.DefaultMovementType(mode)
	}
	reference := uuid.Nil
	if req.ReferenceID != nil {
		reference = *req.ReferenceID
	}

	var (
		outcome inventory.AdjustOutcome
		level   *inventory.StockLevel
	)
	err := s.run(ctx, "adjust_stock", func(tx *ledgerTx) error {
		var err error
		outcome, level, err = tx.adjust(req.ProductID, req.LocationID, inventory.Adjustment{
			Mode:     mode,
			Quantity: req.Quantity,
			Strict:   req.Strict,
			OrderID:  req.OrderID,
		}, movementType, req.Reason, reference)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logFailure("adjust_stock", req.ProductID, req.LocationID, err)
		return nil, err
	}

	if outcome.Shortfall > 0 {
		s.logger.Warn("Subtract clamped at zero",
			zap.String("product_id", req.ProductID.String()),
			zap.String("location_id", req.LocationID.String()),
			zap.Int("requested", req.Quantity),
			zap.Int("shortfall", outcome.Shortfall),
			zap.String("order_id", req.OrderID),
		)
	}

	return &AdjustStockResult{
		StockLevel:        ToStockLevelResponse(level),
		PreviousAvailable: outcome.PreviousAvailable,
		Applied:           outcome.Applied,
		Shortfall:         outcome.Shortfall,
	}, nil
}

// GetStockLevel returns the stock of one product at one location
func (s *StockLedger) GetStockLevel(ctx context.Context, productID, locationID uuid.UUID) (*StockLevelResponse, error) {
	level, err := s.stockRepo.FindByProductAndLocation(ctx, productID, locationID)
	if err != nil {
		return nil, stockNotFound(err, productID, locationID)
	}
	resp := ToStockLevelResponse(level)
	return &resp, nil
}

// ListStockLevels returns the stock of a product at every location it has a row for
func (s *StockLedger) ListStockLevels(ctx context.Context, productID uuid.UUID) ([]StockLevelResponse, error) {
	levels, err := s.stockRepo.FindByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	out := make([]StockLevelResponse, len(levels))
	for i := range levels {
		out[i] = ToStockLevelResponse(&levels[i])
	}
	return out, nil
}

// ListMovements returns movement log entries, newest first
func (s *StockLedger) ListMovements(ctx context.Context, filter MovementFilter) ([]MovementResponse, error) {
	f := shared.DefaultFilter()
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	movements, err := s.movementRepo.Find(ctx, filter.ProductID, filter.LocationID, f)
	if err != nil {
		return nil, err
	}
	out := make([]MovementResponse, len(movements))
	for i := range movements {
		out[i] = ToMovementResponse(&movements[i])
	}
	return out, nil
}

// run executes fn in a store transaction and commits every stock level it
// touched with a version check. A version conflict re-runs fn from scratch
// after an exponential, jittered pause, up to MaxAttempts runs in total.
func (s *StockLedger) run(ctx context.Context, operation string, fn func(tx *ledgerTx) error) error {
	attempt := 0
	tx, err := backoff.Retry(ctx, func() (*ledgerTx, error) {
		attempt++
		tx := &ledgerTx{ctx: ctx}
		err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			tx.repos = repos
			if err := fn(tx); err != nil {
				return err
			}
			if err := tx.flush(); err != nil {
				return err
			}
			s.writeMovements(ctx, operation, tx)
			return nil
		})
		if err == nil {
			return tx, nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, backoff.Permanent(err)
		}
		s.metrics.ObserveConflict(operation)
		return nil, err
	},
		backoff.WithBackOff(s.retryBackOff()),
		backoff.WithMaxTries(uint(s.config.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			s.logger.Debug("Stock version conflict, retrying",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
			)
		}),
	)

	switch {
	case err == nil:
		s.metrics.ObserveWrite(operation, "ok")
		s.afterCommit(context.WithoutCancel(ctx), tx)
		return nil
	case errors.Is(err, shared.ErrConcurrencyConflict):
		s.metrics.ObserveWrite(operation, "conflict")
		return shared.Newf(shared.ErrConcurrencyConflict,
			"%s: stock was modified concurrently, gave up after %d attempts", operation, attempt)
	default:
		s.metrics.ObserveWrite(operation, outcomeLabel(err))
		return err
	}
}

func (s *StockLedger) retryBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.RetryBaseDelay
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	b.MaxInterval = 20 * s.config.RetryBaseDelay
	return b
}

// writeMovements appends the movement log inside the stock transaction.
// Each insert runs in its own savepoint, so a failed insert is logged and
// dropped while the stock change still commits.
func (s *StockLedger) writeMovements(ctx context.Context, operation string, tx *ledgerTx) {
	repo := tx.repos.MovementRepo()
	for _, m := range tx.movements {
		if err := repo.Create(ctx, m); err != nil {
			s.metrics.ObserveMovementLogFailure()
			s.logger.Error("Failed to write stock movement",
				zap.String("operation", operation),
				zap.String("product_id", m.ProductID.String()),
				zap.String("location_id", m.LocationID.String()),
				zap.String("movement_type", string(m.MovementType)),
				zap.Int("quantity_change", m.QuantityChange),
				zap.Error(err),
			)
		}
	}
}

// afterCommit raises alerts, publishes events and keeps the catalog
// in-stock flag current. None of it can undo the commit.
func (s *StockLedger) afterCommit(ctx context.Context, tx *ledgerTx) {
	for _, tl := range tx.levels {
		if level, crossed := tl.level.CheckThreshold(s.config.AlertPolicy, tl.loadedAvailable); crossed {
			s.metrics.ObserveAlert(string(level))
		}
		s.publishDomainEvents(ctx, tl.level)
	}

	s.syncInStock(ctx, tx.levels)
}

// publishDomainEvents publishes all pending domain events of a stock level
func (s *StockLedger) publishDomainEvents(ctx context.Context, level *inventory.StockLevel) {
	events := level.GetDomainEvents()
	level.ClearDomainEvents()
	s.publish(ctx, events...)
}

func (s *StockLedger) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish inventory events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}

// syncInStock flips the catalog flag when a product's total available
// across locations moves between zero and positive
func (s *StockLedger) syncInStock(ctx context.Context, levels []*trackedLevel) {
	if s.products == nil {
		return
	}
	seen := make(map[uuid.UUID]bool)
	for _, tl := range levels {
		wasEmpty, isEmpty := tl.loadedAvailable == 0, tl.level.Available == 0
		if wasEmpty == isEmpty || seen[tl.level.ProductID] {
			continue
		}
		seen[tl.level.ProductID] = true

		productID := tl.level.ProductID
		total, err := s.stockRepo.SumAvailableByProduct(ctx, productID)
		if err != nil {
			s.logger.Warn("Failed to total stock for in-stock flag",
				zap.String("product_id", productID.String()), zap.Error(err))
			continue
		}
		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			s.logger.Warn("Catalog lookup failed for in-stock flag",
				zap.String("product_id", productID.String()), zap.Error(err))
			continue
		}
		inStock := total > 0
		if product.InStock == inStock {
			continue
		}
		if err := s.products.SetInStock(ctx, productID, inStock); err != nil {
			s.logger.Warn("Failed to update catalog in-stock flag",
				zap.String("product_id", productID.String()),
				zap.Bool("in_stock", inStock),
				zap.Error(err))
		}
	}
}

func (s *StockLedger) logFailure(operation string, productID, locationID uuid.UUID, err error) {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("product_id", productID.String()),
		zap.String("location_id", locationID.String()),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, shared.ErrInsufficientStock), errors.Is(err, shared.ErrInvalidInput):
		s.logger.Debug("Stock operation rejected", fields...)
	default:
		s.logger.Warn("Stock operation failed", fields...)
	}
}

func outcomeLabel(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return "error"
}

func stockNotFound(err error, productID, locationID uuid.UUID) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.Newf(shared.ErrNotFound, "no stock recorded for product %s at location %s", productID, locationID)
	}
	return err
}

// ledgerTx collects the stock levels and movements of one transaction attempt
type ledgerTx struct {
	ctx       context.Context
	repos     TransactionalRepositories
	levels    []*trackedLevel
	movements []*inventory.StockMovement
}

type trackedLevel struct {
	level           *inventory.StockLevel
	expectedVersion int
	loadedAvailable int
}

// load returns the tracked stock level, locking and reading it on first use.
// With create a missing row starts at zero.
func (t *ledgerTx) load(productID, locationID uuid.UUID, create bool) (*trackedLevel, error) {
	for _, tl := range t.levels {
		if tl.level.ProductID == productID && tl.level.LocationID == locationID {
			return tl, nil
		}
	}

	level, err := t.repos.StockRepo().FindByProductAndLocationForUpdate(t.ctx, productID, locationID)
	if errors.Is(err, shared.ErrNotFound) && create {
		level, err = inventory.NewStockLevel(productID, locationID)
	}
	if err != nil {
		return nil, stockNotFound(err, productID, locationID)
	}

	tl := &trackedLevel{
		level:           level,
		expectedVersion: level.Version,
		loadedAvailable: level.Available,
	}
	t.levels = append(t.levels, tl)
	return tl, nil
}

func (t *ledgerTx) adjust(
	productID, locationID uuid.UUID,
	adj inventory.Adjustment,
	movementType inventory.MovementType,
	reason string,
	reference uuid.UUID,
) (inventory.AdjustOutcome, *inventory.StockLevel, error) {
	if !movementType.IsValid() {
		return inventory.AdjustOutcome{}, nil, shared.Newf(shared.ErrInvalidInput, "unknown movement type %q", movementType)
	}
	tl, err := t.load(productID, locationID, adj.Mode != inventory.AdjustModeSubtract)
	if err != nil {
		return inventory.AdjustOutcome{}, nil, err
	}
	out, err := tl.level.Apply(adj)
	if err != nil {
		return inventory.AdjustOutcome{}, nil, err
	}
	t.record(tl.level, movementType, out.PreviousAvailable, reason, adj.OrderID, reference)
	return out, tl.level, nil
}

func (t *ledgerTx) reserve(productID, locationID uuid.UUID, quantity int, orderID string, reservationID uuid.UUID) (*inventory.StockLevel, error) {
	tl, err := t.load(productID, locationID, false)
	if err != nil {
		return nil, err
	}
	before := tl.level.Available
	if err := tl.level.Reserve(quantity, orderID); err != nil {
		return nil, err
	}
	t.record(tl.level, inventory.MovementTypeSale, before,
		fmt.Sprintf("Reserved for order #%s", orderID), orderID, reservationID)
	return tl.level, nil
}

// releaseReserved only logs a movement when units go back to available
func (t *ledgerTx) releaseReserved(r *inventory.Reservation, restore bool, reason string) (*inventory.StockLevel, error) {
	tl, err := t.load(r.ProductID, r.LocationID, false)
	if err != nil {
		return nil, err
	}
	before := tl.level.Available
	if err := tl.level.ReleaseReserved(r.Quantity, restore, r.OrderID); err != nil {
		return nil, err
	}
	if restore {
		t.record(tl.level, inventory.MovementTypeReturn, before, reason, r.OrderID, r.ID)
	}
	return tl.level, nil
}

func (t *ledgerTx) record(level *inventory.StockLevel, movementType inventory.MovementType, before int, reason, orderID string, reference uuid.UUID) {
	m, err := inventory.NewStockMovement(level.ProductID, level.LocationID, movementType, before, level.Available, reason)
	if err != nil {
		return
	}
	t.movements = append(t.movements, m.WithOrder(orderID).WithReference(reference))
}

func (t *ledgerTx) flush() error {
	for _, tl := range t.levels {
		if tl.level.Version == tl.expectedVersion {
			continue
		}
		if err := t.repos.StockRepo().Save(t.ctx, tl.level, tl.expectedVersion); err != nil {
			return err
		}
	}
	return nil
}
