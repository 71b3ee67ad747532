package inventory

import (
	"context"

	"github.com/erp/stocksync/internal/domain/inventory"
)

// TransactionScope provides transactional access to inventory repositories.
// All repository operations inside Execute share one database transaction and
// are committed or rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all inventory repositories within a transaction.
//
// StockRepo is the only way stock levels are written, and only the ledger calls it.
// The ledger appends movements through MovementRepo in the same transaction; a
// failed movement insert must not abort the transaction it runs in.
type TransactionalRepositories interface {
	StockRepo() inventory.StockLevelRepository
	ReservationRepo() inventory.ReservationRepository
	MovementRepo() inventory.MovementRepository
	TransferRepo() inventory.TransferRepository
}

// NoOpTransactionScope runs fn against plain repositories without a transaction.
// Useful for tests and single-writer tools.
type NoOpTransactionScope struct {
	stockRepo       inventory.StockLevelRepository
	reservationRepo inventory.ReservationRepository
	movementRepo    inventory.MovementRepository
	transferRepo    inventory.TransferRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	stockRepo inventory.StockLevelRepository,
	reservationRepo inventory.ReservationRepository,
	movementRepo inventory.MovementRepository,
	transferRepo inventory.TransferRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		stockRepo:       stockRepo,
		reservationRepo: reservationRepo,
		movementRepo:    movementRepo,
		transferRepo:    transferRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// StockRepo returns the stock level repository.
func (s *NoOpTransactionScope) StockRepo() inventory.StockLevelRepository {
	return s.stockRepo
}

// ReservationRepo returns the reservation repository.
func (s *NoOpTransactionScope) ReservationRepo() inventory.ReservationRepository {
	return s.reservationRepo
}

// MovementRepo returns the movement repository.
func (s *NoOpTransactionScope) MovementRepo() inventory.MovementRepository {
	return s.movementRepo
}

// TransferRepo returns the transfer repository.
func (s *NoOpTransactionScope) TransferRepo() inventory.TransferRepository {
	return s.transferRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
