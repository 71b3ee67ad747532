package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/stocksync/internal/domain/catalog"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) withLocations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Locations", func(db *gorm.DB) *gorm.DB {
		return db.Order("priority ASC")
	})
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.withLocations(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.Newf(shared.ErrNotFound, "product %s not found", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs finds multiple products by their IDs
func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	if len(ids) == 0 {
		return []catalog.Product{}, nil
	}
	var rows []models.ProductModel
	if err := r.withLocations(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]catalog.Product, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// ListedAt returns the locations a product is listed at, primary first
func (r *GormProductRepository) ListedAt(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	var locations []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.ProductLocationModel{}).
		Where("product_id = ?", id).
		Order("priority ASC").
		Pluck("location_id", &locations).Error; err != nil {
		return nil, err
	}
	return locations, nil
}

// SetInStock writes the in-stock flag
func (r *GormProductRepository) SetInStock(ctx context.Context, id uuid.UUID, inStock bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"in_stock": inStock, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.Newf(shared.ErrNotFound, "product %s not found", id)
	}
	return nil
}

// Save creates or updates a product and replaces its location listings
func (r *GormProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	model := models.ProductModelFromDomain(product)
	locations := model.Locations
	model.Locations = nil

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"code", "name", "selling_price", "in_stock", "updated_at"}),
		}).Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.Newf(shared.ErrAlreadyExists, "product code %s already exists", product.Code)
			}
			return err
		}
		if err := tx.Where("product_id = ?", product.ID).Delete(&models.ProductLocationModel{}).Error; err != nil {
			return err
		}
		if len(locations) == 0 {
			return nil
		}
		return tx.Create(&locations).Error
	})
}

var _ catalog.ProductRepository = (*GormProductRepository)(nil)
