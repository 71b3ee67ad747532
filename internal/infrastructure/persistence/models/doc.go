// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel and AggregateModel
//   - inventory.go: stock levels, reservations, movements and transfers
//   - catalog.go: products and their location listings
//
// Every model is also migrated by the SQL files under migrations/; AllModels is
// used by AutoMigrate in tests against SQLite.
package models

// AllModels returns every persistence model, in dependency order.
func AllModels() []any {
	return []any{
		&ProductModel{},
		&ProductLocationModel{},
		&StockLevelModel{},
		&ReservationModel{},
		&StockMovementModel{},
		&InventoryTransferModel{},
	}
}
