package persistence

import (
	"context"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMovementRepository implements inventory.MovementRepository using GORM.
// The log is append-only: there is no update or delete.
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// Create appends a movement. Inside a transaction the insert runs in a
// savepoint, so a failed insert leaves the enclosing transaction usable.
func (r *GormMovementRepository) Create(ctx context.Context, m *inventory.StockMovement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(models.StockMovementModelFromDomain(m)).Error
	})
}

// Find lists movements of a product, optionally at one location, newest first by default
func (r *GormMovementRepository) Find(ctx context.Context, productID uuid.UUID, locationID *uuid.UUID, filter shared.Filter) ([]inventory.StockMovement, error) {
	query := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if locationID != nil {
		query = query.Where("location_id = ?", *locationID)
	}

	orderBy := ValidateSortField(filter.OrderBy, MovementSortFields, "timestamp")
	if orderBy == "created_at" {
		orderBy = "timestamp"
	}
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.StockMovementModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]inventory.StockMovement, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

var _ inventory.MovementRepository = (*GormMovementRepository)(nil)
