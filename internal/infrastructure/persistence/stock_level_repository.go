package persistence

import (
	"context"
	"errors"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockLevelRepository implements inventory.StockLevelRepository using GORM
type GormStockLevelRepository struct {
	db *gorm.DB
}

// NewGormStockLevelRepository creates a new GormStockLevelRepository
func NewGormStockLevelRepository(db *gorm.DB) *GormStockLevelRepository {
	return &GormStockLevelRepository{db: db}
}

// FindByProductAndLocation finds the stock level of a product at a location
func (r *GormStockLevelRepository) FindByProductAndLocation(ctx context.Context, productID, locationID uuid.UUID) (*inventory.StockLevel, error) {
	return r.findOne(r.db.WithContext(ctx), productID, locationID)
}

// FindByProductAndLocationForUpdate locks the row with SELECT ... FOR UPDATE.
// Concurrent writers of the same pair queue on the lock instead of failing the
// version check. SQLite has no row locks and the clause is dropped there.
func (r *GormStockLevelRepository) FindByProductAndLocationForUpdate(ctx context.Context, productID, locationID uuid.UUID) (*inventory.StockLevel, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), productID, locationID)
}

func (r *GormStockLevelRepository) findOne(db *gorm.DB, productID, locationID uuid.UUID) (*inventory.StockLevel, error) {
	var model models.StockLevelModel
	if err := db.
		Where("product_id = ? AND location_id = ?", productID, locationID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.Newf(shared.ErrNotFound, "no stock level for product %s at location %s", productID, locationID)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByProduct finds every stock level of a product
func (r *GormStockLevelRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]inventory.StockLevel, error) {
	var rows []models.StockLevelModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return stockLevelsToDomain(rows), nil
}

// FindAtOrBelow finds stock levels whose available stock is at or below the threshold
func (r *GormStockLevelRepository) FindAtOrBelow(ctx context.Context, threshold int, filter shared.Filter) ([]inventory.StockLevel, error) {
	var rows []models.StockLevelModel
	query := r.db.WithContext(ctx).
		Where("available <= ?", threshold).
		Order("available ASC").
		Order("product_id ASC")
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return stockLevelsToDomain(rows), nil
}

// SumAvailableByProduct sums available stock of a product over all locations
func (r *GormStockLevelRepository) SumAvailableByProduct(ctx context.Context, productID uuid.UUID) (int, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.StockLevelModel{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(available), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

// SummarizeByProduct returns per-product totals over all locations
func (r *GormStockLevelRepository) SummarizeByProduct(ctx context.Context) ([]inventory.ProductStockTotal, error) {
	var totals []inventory.ProductStockTotal
	if err := r.db.WithContext(ctx).
		Model(&models.StockLevelModel{}).
		Select("product_id, SUM(available) AS available, SUM(reserved) AS reserved, COUNT(*) AS locations").
		Group("product_id").
		Order("product_id").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	return totals, nil
}

// CountByBand counts stock levels in each alert band of the policy
func (r *GormStockLevelRepository) CountByBand(ctx context.Context, policy inventory.AlertPolicy) (inventory.StockBandCounts, error) {
	var counts inventory.StockBandCounts
	err := r.db.WithContext(ctx).
		Model(&models.StockLevelModel{}).
		Select(`COALESCE(SUM(CASE WHEN available <= 0 THEN 1 ELSE 0 END), 0) AS out_of_stock,
			COALESCE(SUM(CASE WHEN available > 0 AND available <= ? THEN 1 ELSE 0 END), 0) AS critical,
			COALESCE(SUM(CASE WHEN available > ? AND available <= ? THEN 1 ELSE 0 END), 0) AS low,
			COALESCE(SUM(CASE WHEN available > ? THEN 1 ELSE 0 END), 0) AS healthy`,
			policy.Critical, policy.Critical, policy.Low, maxInt(policy.Low, policy.Critical)).
		Scan(&counts).Error
	return counts, err
}

// Save inserts a new stock level or updates it if the stored version is still expectedVersion
func (r *GormStockLevelRepository) Save(ctx context.Context, level *inventory.StockLevel, expectedVersion int) error {
	model := models.StockLevelModelFromDomain(level)
	if expectedVersion == 0 {
		if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.Newf(shared.ErrConcurrencyConflict,
					"stock level for product %s at location %s was created concurrently", level.ProductID, level.LocationID)
			}
			return err
		}
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&models.StockLevelModel{}).
		Where("id = ? AND version = ?", level.ID, expectedVersion).
		Updates(map[string]any{
			"available":    level.Available,
			"reserved":     level.Reserved,
			"version":      level.Version,
			"last_updated": level.LastUpdated,
			"updated_at":   level.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.Newf(shared.ErrConcurrencyConflict,
			"stock level %s was modified concurrently (expected version %d)", level.ID, expectedVersion)
	}
	return nil
}

func stockLevelsToDomain(rows []models.StockLevelModel) []inventory.StockLevel {
	levels := make([]inventory.StockLevel, len(rows))
	for i := range rows {
		levels[i] = *rows[i].ToDomain()
	}
	return levels
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

var _ inventory.StockLevelRepository = (*GormStockLevelRepository)(nil)
