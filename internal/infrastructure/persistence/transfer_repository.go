package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTransferRepository implements inventory.TransferRepository using GORM
type GormTransferRepository struct {
	db *gorm.DB
}

// NewGormTransferRepository creates a new GormTransferRepository
func NewGormTransferRepository(db *gorm.DB) *GormTransferRepository {
	return &GormTransferRepository{db: db}
}

// FindByID finds a transfer by its ID
func (r *GormTransferRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.InventoryTransfer, error) {
	var model models.InventoryTransferModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.Newf(shared.ErrNotFound, "transfer %s not found", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindPending finds pending transfers initiated before the cutoff, oldest first
func (r *GormTransferRepository) FindPending(ctx context.Context, initiatedBefore time.Time, limit int) ([]inventory.InventoryTransfer, error) {
	var rows []models.InventoryTransferModel
	query := r.db.WithContext(ctx).
		Where("status = ? AND initiated_at < ?", inventory.TransferStatusPending, initiatedBefore).
		Order("initiated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]inventory.InventoryTransfer, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Create inserts a new transfer
func (r *GormTransferRepository) Create(ctx context.Context, t *inventory.InventoryTransfer) error {
	return r.db.WithContext(ctx).Create(models.InventoryTransferModelFromDomain(t)).Error
}

// Save updates a transfer if the stored version is still expectedVersion
func (r *GormTransferRepository) Save(ctx context.Context, t *inventory.InventoryTransfer, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(&models.InventoryTransferModel{}).
		Where("id = ? AND version = ?", t.ID, expectedVersion).
		Updates(map[string]any{
			"status":         t.Status,
			"completed_at":   t.CompletedAt,
			"failure_reason": t.FailureReason,
			"version":        t.Version,
			"updated_at":     t.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.Newf(shared.ErrConcurrencyConflict,
			"transfer %s was modified concurrently (expected version %d)", t.ID, expectedVersion)
	}
	return nil
}

var _ inventory.TransferRepository = (*GormTransferRepository)(nil)
