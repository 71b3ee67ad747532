package persistence

import (
	"fmt"
	"testing"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTestDB opens a private in-memory SQLite database with the full schema.
// A single connection keeps every query on the same in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

// seedLevel persists a stock level with the given available quantity
func seedLevel(t *testing.T, repo *GormStockLevelRepository, productID, locationID uuid.UUID, available int) *inventory.StockLevel {
	t.Helper()
	level, err := inventory.NewStockLevel(productID, locationID)
	require.NoError(t, err)
	_, err = level.Apply(inventory.Adjustment{Mode: inventory.AdjustModeSet, Quantity: available})
	require.NoError(t, err)
	level.ClearDomainEvents()
	require.NoError(t, repo.Save(t.Context(), level, 0))
	return level
}
