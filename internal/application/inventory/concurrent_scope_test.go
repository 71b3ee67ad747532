package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

// concurrentTxScope runs transactions in parallel over a memStore the way a
// database does. Writes are buffered and applied at commit once their version
// checks pass. With rowLocks a locking read holds the row until the
// transaction ends, like SELECT ... FOR UPDATE. readDelay widens the gap
// between a locking read and the write that follows it.
type concurrentTxScope struct {
	store     *memStore
	rowLocks  bool
	readDelay time.Duration

	commitMu sync.Mutex
	locksMu  sync.Mutex
	locks    map[levelKey]*sync.Mutex
}

func newConcurrentTxScope(store *memStore, rowLocks bool, readDelay time.Duration) *concurrentTxScope {
	return &concurrentTxScope{
		store:     store,
		rowLocks:  rowLocks,
		readDelay: readDelay,
		locks:     make(map[levelKey]*sync.Mutex),
	}
}

func (s *concurrentTxScope) rowLock(key levelKey) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *concurrentTxScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	tx := &concurrentTx{scope: s, held: make(map[levelKey]*sync.Mutex)}
	defer tx.release()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

type concurrentTx struct {
	scope  *concurrentTxScope
	held   map[levelKey]*sync.Mutex
	checks []func() error
	writes []func() error
}

func (t *concurrentTx) lock(key levelKey) {
	if _, ok := t.held[key]; ok {
		return
	}
	l := t.scope.rowLock(key)
	l.Lock()
	t.held[key] = l
}

func (t *concurrentTx) release() {
	for _, l := range t.held {
		l.Unlock()
	}
}

func (t *concurrentTx) commit() error {
	t.scope.commitMu.Lock()
	defer t.scope.commitMu.Unlock()
	for _, check := range t.checks {
		if err := check(); err != nil {
			return err
		}
	}
	for _, write := range t.writes {
		if err := write(); err != nil {
			return err
		}
	}
	return nil
}

func (t *concurrentTx) StockRepo() inventory.StockLevelRepository {
	return concurrentStockRepo{memStockRepo: memStockRepo{t.scope.store}, tx: t}
}

func (t *concurrentTx) ReservationRepo() inventory.ReservationRepository {
	return concurrentReservationRepo{memReservationRepo: memReservationRepo{t.scope.store}, tx: t}
}

func (t *concurrentTx) MovementRepo() inventory.MovementRepository {
	return concurrentMovementRepo{memMovementRepo: memMovementRepo{t.scope.store}, tx: t}
}

func (t *concurrentTx) TransferRepo() inventory.TransferRepository {
	return concurrentTransferRepo{memTransferRepo: memTransferRepo{t.scope.store}, tx: t}
}

type concurrentStockRepo struct {
	memStockRepo
	tx *concurrentTx
}

func (r concurrentStockRepo) FindByProductAndLocationForUpdate(ctx context.Context, productID, locationID uuid.UUID) (*inventory.StockLevel, error) {
	if r.tx.scope.rowLocks {
		r.tx.lock(levelKey{productID, locationID})
	}
	level, err := r.FindByProductAndLocation(ctx, productID, locationID)
	time.Sleep(r.tx.scope.readDelay)
	return level, err
}

func (r concurrentStockRepo) Save(ctx context.Context, level *inventory.StockLevel, expectedVersion int) error {
	store := r.tx.scope.store
	key := levelKey{level.ProductID, level.LocationID}
	check := func() error {
		store.mu.Lock()
		defer store.mu.Unlock()
		if !store.versionMatchesLocked(key, expectedVersion) {
			return shared.ErrConcurrencyConflict
		}
		return nil
	}
	if err := check(); err != nil {
		return err
	}
	c := *level
	r.tx.checks = append(r.tx.checks, check)
	r.tx.writes = append(r.tx.writes, func() error { return r.memStockRepo.Save(ctx, &c, expectedVersion) })
	return nil
}

type concurrentReservationRepo struct {
	memReservationRepo
	tx *concurrentTx
}

func (r concurrentReservationRepo) Create(ctx context.Context, res *inventory.Reservation) error {
	c := *res
	r.tx.writes = append(r.tx.writes, func() error { return r.memReservationRepo.Create(ctx, &c) })
	return nil
}

func (r concurrentReservationRepo) Close(ctx context.Context, res *inventory.Reservation) error {
	store := r.tx.scope.store
	id := res.ID
	r.tx.checks = append(r.tx.checks, func() error {
		store.mu.Lock()
		defer store.mu.Unlock()
		if stored, ok := store.reservations[id]; !ok || !stored.IsActive() {
			return shared.ErrConcurrencyConflict
		}
		return nil
	})
	c := *res
	r.tx.writes = append(r.tx.writes, func() error { return r.memReservationRepo.Close(ctx, &c) })
	return nil
}

type concurrentMovementRepo struct {
	memMovementRepo
	tx *concurrentTx
}

func (r concurrentMovementRepo) Create(ctx context.Context, m *inventory.StockMovement) error {
	c := *m
	r.tx.writes = append(r.tx.writes, func() error {
		_ = r.memMovementRepo.Create(ctx, &c)
		return nil
	})
	return nil
}

type concurrentTransferRepo struct {
	memTransferRepo
	tx *concurrentTx
}

func (r concurrentTransferRepo) Create(ctx context.Context, t *inventory.InventoryTransfer) error {
	c := *t
	r.tx.writes = append(r.tx.writes, func() error { return r.memTransferRepo.Create(ctx, &c) })
	return nil
}

func (r concurrentTransferRepo) Save(ctx context.Context, t *inventory.InventoryTransfer, expectedVersion int) error {
	store := r.tx.scope.store
	id := t.ID
	r.tx.checks = append(r.tx.checks, func() error {
		store.mu.Lock()
		defer store.mu.Unlock()
		if stored, ok := store.transfers[id]; !ok || stored.Version != expectedVersion {
			return shared.ErrConcurrencyConflict
		}
		return nil
	})
	c := *t
	r.tx.writes = append(r.tx.writes, func() error { return r.memTransferRepo.Save(ctx, &c, expectedVersion) })
	return nil
}

var _ TransactionScope = (*concurrentTxScope)(nil)
var _ TransactionalRepositories = (*concurrentTx)(nil)
