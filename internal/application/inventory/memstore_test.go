package inventory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/erp/stocksync/internal/domain/catalog"
	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type levelKey struct {
	product  uuid.UUID
	location uuid.UUID
}

// memStore is an in-memory store with the same conditional write rules as the database
type memStore struct {
	mu           sync.Mutex
	levels       map[levelKey]inventory.StockLevel
	reservations map[uuid.UUID]inventory.Reservation
	movements    []inventory.StockMovement
	transfers    map[uuid.UUID]inventory.InventoryTransfer

	// conflicts makes the next N stock saves lose the version race
	conflicts     int
	failMovements bool
	stockSaves    int
}

type memSnapshot struct {
	levels       map[levelKey]inventory.StockLevel
	reservations map[uuid.UUID]inventory.Reservation
	movements    []inventory.StockMovement
	transfers    map[uuid.UUID]inventory.InventoryTransfer
}

func newMemStore() *memStore {
	return &memStore{
		levels:       make(map[levelKey]inventory.StockLevel),
		reservations: make(map[uuid.UUID]inventory.Reservation),
		transfers:    make(map[uuid.UUID]inventory.InventoryTransfer),
	}
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		levels:       make(map[levelKey]inventory.StockLevel, len(s.levels)),
		reservations: make(map[uuid.UUID]inventory.Reservation, len(s.reservations)),
		movements:    append([]inventory.StockMovement(nil), s.movements...),
		transfers:    make(map[uuid.UUID]inventory.InventoryTransfer, len(s.transfers)),
	}
	for k, v := range s.levels {
		snap.levels[k] = v
	}
	for k, v := range s.reservations {
		snap.reservations[k] = v
	}
	for k, v := range s.transfers {
		snap.transfers[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels = snap.levels
	s.reservations = snap.reservations
	s.movements = snap.movements
	s.transfers = snap.transfers
}

func (s *memStore) injectConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = n
}

// versionMatchesLocked reports whether a save expecting expectedVersion would
// win; 0 expects no row. Callers hold s.mu.
func (s *memStore) versionMatchesLocked(key levelKey, expectedVersion int) bool {
	stored, ok := s.levels[key]
	if expectedVersion == 0 {
		return !ok
	}
	return ok && stored.Version == expectedVersion
}

func (s *memStore) backdateReservation(id uuid.UUID, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.reservations[id]
	r.ExpiresAt = expiresAt
	s.reservations[id] = r
}

func (s *memStore) movementsFor(productID, locationID uuid.UUID) []inventory.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []inventory.StockMovement
	for _, m := range s.movements {
		if m.ProductID == productID && m.LocationID == locationID {
			out = append(out, m)
		}
	}
	return out
}

type memStockRepo struct{ s *memStore }

func (r memStockRepo) FindByProductAndLocation(_ context.Context, productID, locationID uuid.UUID) (*inventory.StockLevel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.levels[levelKey{productID, locationID}]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &l, nil
}

func (r memStockRepo) FindByProductAndLocationForUpdate(ctx context.Context, productID, locationID uuid.UUID) (*inventory.StockLevel, error) {
	return r.FindByProductAndLocation(ctx, productID, locationID)
}

func (r memStockRepo) FindByProduct(_ context.Context, productID uuid.UUID) ([]inventory.StockLevel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []inventory.StockLevel
	for k, l := range r.s.levels {
		if k.product == productID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocationID.String() < out[j].LocationID.String() })
	return out, nil
}

func (r memStockRepo) FindAtOrBelow(_ context.Context, threshold int, filter shared.Filter) ([]inventory.StockLevel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []inventory.StockLevel
	for _, l := range r.s.levels {
		if l.Available <= threshold {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Available < out[j].Available })
	start := filter.Offset()
	if start >= len(out) {
		return []inventory.StockLevel{}, nil
	}
	end := start + filter.PageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

func (r memStockRepo) SumAvailableByProduct(_ context.Context, productID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := 0
	for k, l := range r.s.levels {
		if k.product == productID {
			total += l.Available
		}
	}
	return total, nil
}

func (r memStockRepo) SummarizeByProduct(_ context.Context) ([]inventory.ProductStockTotal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byProduct := make(map[uuid.UUID]*inventory.ProductStockTotal)
	for k, l := range r.s.levels {
		t, ok := byProduct[k.product]
		if !ok {
			t = &inventory.ProductStockTotal{ProductID: k.product}
			byProduct[k.product] = t
		}
		t.Available += int64(l.Available)
		t.Reserved += int64(l.Reserved)
		t.Locations++
	}
	out := make([]inventory.ProductStockTotal, 0, len(byProduct))
	for _, t := range byProduct {
		out = append(out, *t)
	}
	return out, nil
}

func (r memStockRepo) CountByBand(_ context.Context, policy inventory.AlertPolicy) (inventory.StockBandCounts, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var c inventory.StockBandCounts
	for _, l := range r.s.levels {
		switch policy.LevelFor(l.Available) {
		case inventory.AlertLevelOutOfStock:
			c.OutOfStock++
		case inventory.AlertLevelCritical:
			c.Critical++
		case inventory.AlertLevelLow:
			c.Low++
		default:
			c.Healthy++
		}
	}
	return c, nil
}

func (r memStockRepo) Save(_ context.Context, level *inventory.StockLevel, expectedVersion int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.conflicts > 0 {
		r.s.conflicts--
		return shared.ErrConcurrencyConflict
	}
	key := levelKey{level.ProductID, level.LocationID}
	if !r.s.versionMatchesLocked(key, expectedVersion) {
		return shared.ErrConcurrencyConflict
	}
	c := *level
	c.ClearDomainEvents()
	r.s.levels[key] = c
	r.s.stockSaves++
	return nil
}

type memReservationRepo struct{ s *memStore }

func (r memReservationRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &res, nil
}

func (r memReservationRepo) FindByOrder(_ context.Context, orderID string) ([]inventory.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []inventory.Reservation
	for _, res := range r.s.reservations {
		if res.OrderID == orderID {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReservedAt.Before(out[j].ReservedAt) })
	return out, nil
}

func (r memReservationRepo) FindExpiredActive(_ context.Context, now time.Time, limit int) ([]inventory.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []inventory.Reservation
	for _, res := range r.s.reservations {
		if res.IsActive() && res.ExpiresAt.Before(now) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memReservationRepo) Create(_ context.Context, res *inventory.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.reservations[res.ID]; ok {
		return shared.ErrAlreadyExists
	}
	r.s.reservations[res.ID] = *res
	return nil
}

func (r memReservationRepo) Close(_ context.Context, res *inventory.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.reservations[res.ID]
	if !ok || !stored.IsActive() {
		return shared.ErrConcurrencyConflict
	}
	r.s.reservations[res.ID] = *res
	return nil
}

type memMovementRepo struct{ s *memStore }

func (r memMovementRepo) Create(_ context.Context, m *inventory.StockMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failMovements {
		return errors.New("movement log unavailable")
	}
	r.s.movements = append(r.s.movements, *m)
	return nil
}

func (r memMovementRepo) Find(_ context.Context, productID uuid.UUID, locationID *uuid.UUID, filter shared.Filter) ([]inventory.StockMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []inventory.StockMovement
	for i := len(r.s.movements) - 1; i >= 0; i-- {
		m := r.s.movements[i]
		if m.ProductID != productID || (locationID != nil && m.LocationID != *locationID) {
			continue
		}
		out = append(out, m)
	}
	start := filter.Offset()
	if start >= len(out) {
		return []inventory.StockMovement{}, nil
	}
	end := start + filter.PageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

type memTransferRepo struct{ s *memStore }

func (r memTransferRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.InventoryTransfer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transfers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &t, nil
}

func (r memTransferRepo) FindPending(_ context.Context, initiatedBefore time.Time, limit int) ([]inventory.InventoryTransfer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []inventory.InventoryTransfer
	for _, t := range r.s.transfers {
		if t.IsPending() && t.InitiatedAt.Before(initiatedBefore) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InitiatedAt.Before(out[j].InitiatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memTransferRepo) Create(_ context.Context, t *inventory.InventoryTransfer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *t
	c.ClearDomainEvents()
	r.s.transfers[t.ID] = c
	return nil
}

func (r memTransferRepo) Save(_ context.Context, t *inventory.InventoryTransfer, expectedVersion int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.transfers[t.ID]
	if !ok || stored.Version != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	c := *t
	c.ClearDomainEvents()
	r.s.transfers[t.ID] = c
	return nil
}

// memTxScope serialises transactions and rolls the store back when fn fails
type memTxScope struct {
	store *memStore
	mu    sync.Mutex
}

func (m *memTxScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.store.snapshot()
	if err := fn(m); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

func (m *memTxScope) StockRepo() inventory.StockLevelRepository {
	return memStockRepo{m.store}
}

func (m *memTxScope) ReservationRepo() inventory.ReservationRepository {
	return memReservationRepo{m.store}
}

func (m *memTxScope) MovementRepo() inventory.MovementRepository {
	return memMovementRepo{m.store}
}

func (m *memTxScope) TransferRepo() inventory.TransferRepository {
	return memTransferRepo{m.store}
}

type memProducts struct {
	mu            sync.Mutex
	products      map[uuid.UUID]catalog.Product
	setInStockLog []bool
}

func newMemProducts() *memProducts {
	return &memProducts{products: make(map[uuid.UUID]catalog.Product)}
}

func (p *memProducts) FindByID(_ context.Context, id uuid.UUID) (*catalog.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	product, ok := p.products[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &product, nil
}

func (p *memProducts) FindByIDs(_ context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []catalog.Product
	for _, id := range ids {
		if product, ok := p.products[id]; ok {
			out = append(out, product)
		}
	}
	return out, nil
}

func (p *memProducts) ListedAt(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	product, ok := p.products[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return product.ListedAt, nil
}

func (p *memProducts) SetInStock(_ context.Context, id uuid.UUID, inStock bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	product, ok := p.products[id]
	if !ok {
		return shared.ErrNotFound
	}
	product.SetInStock(inStock)
	p.products[id] = product
	p.setInStockLog = append(p.setInStockLog, inStock)
	return nil
}

func (p *memProducts) Save(_ context.Context, product *catalog.Product) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.products[product.ID] = *product
	return nil
}

// recordingPublisher keeps every event it is handed; with err set it still
// records them but reports the failure, like a broker that is down
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) failWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *recordingPublisher) ofType(eventType string) []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type recordingMetrics struct {
	mu                sync.Mutex
	conflicts         int
	movementFailures  int
	transferAborts    int
	sweepReleased     int
	alerts            map[string]int
	writesByOperation map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{alerts: make(map[string]int), writesByOperation: make(map[string]int)}
}

func (m *recordingMetrics) ObserveWrite(operation, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writesByOperation[operation]++
}

func (m *recordingMetrics) ObserveConflict(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

func (m *recordingMetrics) ObserveMovementLogFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movementFailures++
}

func (m *recordingMetrics) ObserveSweep(released, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepReleased += released
}

func (m *recordingMetrics) ObserveAlert(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[level]++
}

func (m *recordingMetrics) ObserveTransferAbort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transferAborts++
}

type fixture struct {
	store        *memStore
	products     *memProducts
	publisher    *recordingPublisher
	metrics      *recordingMetrics
	ledger       *StockLedger
	reservations *ReservationService
	transfers    *TransferService
	syncer       *SyncService
	fulfillment  *FulfillmentService
	reports      *ReportService
	sweeper      *ExpirySweeper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithScope(t, func(store *memStore) TransactionScope {
		return &memTxScope{store: store}
	})
}

// newFixtureWithScope wires the services over a custom transaction scope
func newFixtureWithScope(t *testing.T, newScope func(store *memStore) TransactionScope) *fixture {
	t.Helper()
	logger := nopLogger()
	store := newMemStore()
	products := newMemProducts()
	publisher := &recordingPublisher{}
	metrics := newRecordingMetrics()

	scope := newScope(store)
	ledger := NewStockLedger(scope, memStockRepo{store}, memMovementRepo{store}, products, logger, DefaultLedgerConfig())
	ledger.SetEventPublisher(publisher)
	ledger.SetMetrics(metrics)

	reservations := NewReservationService(ledger, memReservationRepo{store}, 0, logger)
	transfers := NewTransferService(ledger, memTransferRepo{store}, logger)
	sweeper := NewExpirySweeper(reservations, transfers, DefaultSweepConfig(), logger)
	sweeper.SetMetrics(metrics)

	return &fixture{
		store:        store,
		products:     products,
		publisher:    publisher,
		metrics:      metrics,
		ledger:       ledger,
		reservations: reservations,
		transfers:    transfers,
		syncer:       NewSyncService(ledger, transfers, memStockRepo{store}, products, 0, logger),
		fulfillment:  NewFulfillmentService(ledger, logger),
		reports:      NewReportService(memStockRepo{store}, products, ledger.AlertPolicy(), logger),
		sweeper:      sweeper,
	}
}

// addProduct registers a catalog product listed at the given locations
func (f *fixture) addProduct(t *testing.T, price string, listedAt ...uuid.UUID) uuid.UUID {
	t.Helper()
	p, err := catalog.NewProduct("SKU-"+uuid.NewString()[:8], "Test product", decimal.RequireFromString(price), listedAt...)
	require.NoError(t, err)
	require.NoError(t, f.products.Save(context.Background(), p))
	return p.ID
}

// set writes an absolute quantity through the ledger
func (f *fixture) set(t *testing.T, productID, locationID uuid.UUID, quantity int) {
	t.Helper()
	_, err := f.ledger.AdjustStock(context.Background(), AdjustStockRequest{
		ProductID:  productID,
		LocationID: locationID,
		Quantity:   quantity,
		Mode:       "set",
	})
	require.NoError(t, err)
}

func (f *fixture) level(t *testing.T, productID, locationID uuid.UUID) *StockLevelResponse {
	t.Helper()
	level, err := f.ledger.GetStockLevel(context.Background(), productID, locationID)
	require.NoError(t, err)
	return level
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}
