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

// GormReservationRepository implements inventory.ReservationRepository using GORM
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// FindByID finds a reservation by its ID
func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	var model models.ReservationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.Newf(shared.ErrNotFound, "reservation %s not found", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOrder finds every reservation held for an order
func (r *GormReservationRepository) FindByOrder(ctx context.Context, orderID string) ([]inventory.Reservation, error) {
	var rows []models.ReservationModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("reserved_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return reservationsToDomain(rows), nil
}

// FindExpiredActive finds active reservations that expired before now, oldest first
func (r *GormReservationRepository) FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]inventory.Reservation, error) {
	var rows []models.ReservationModel
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", inventory.ReservationStatusActive, now).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return reservationsToDomain(rows), nil
}

// Create inserts a new reservation
func (r *GormReservationRepository) Create(ctx context.Context, res *inventory.Reservation) error {
	return r.db.WithContext(ctx).Create(models.ReservationModelFromDomain(res)).Error
}

// Close writes the terminal status of a reservation that is still active in the store.
// A reservation already closed by another writer returns shared.ErrConcurrencyConflict.
func (r *GormReservationRepository) Close(ctx context.Context, res *inventory.Reservation) error {
	result := r.db.WithContext(ctx).
		Model(&models.ReservationModel{}).
		Where("id = ? AND status = ?", res.ID, inventory.ReservationStatusActive).
		Updates(map[string]any{
			"status":      res.Status,
			"released_at": res.ReleasedAt,
			"updated_at":  res.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.Newf(shared.ErrConcurrencyConflict, "reservation %s is no longer active", res.ID)
	}
	return nil
}

func reservationsToDomain(rows []models.ReservationModel) []inventory.Reservation {
	out := make([]inventory.Reservation, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var _ inventory.ReservationRepository = (*GormReservationRepository)(nil)
