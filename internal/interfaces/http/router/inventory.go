package router

import "github.com/erp/stocksync/internal/interfaces/http/handler"

// InventoryHandlers bundles the handlers served under /inventory
type InventoryHandlers struct {
	Stock        *handler.InventoryHandler
	Reservations *handler.ReservationHandler
	Transfers    *handler.TransferHandler
	Sync         *handler.SyncHandler
	Reports      *handler.ReportHandler
}

// NewInventoryRoutes builds the /inventory route group
func NewInventoryRoutes(h InventoryHandlers) *DomainGroup {
	inventory := NewDomainGroup("inventory", "/inventory")

	inventory.Group("stock", "/stock").
		GET("/:product_id", h.Stock.ListStockLevels).
		GET("/:product_id/:location_id", h.Stock.GetStockLevel).
		POST("/adjust", h.Stock.AdjustStock).
		POST("/populate", h.Stock.PopulateStock)

	inventory.GET("/movements", h.Stock.ListMovements)

	inventory.Group("reservations", "/reservations").
		POST("", h.Reservations.Reserve).
		GET("/:id", h.Reservations.GetReservation).
		POST("/:id/release", h.Reservations.Release)

	inventory.Group("orders", "/orders").
		GET("/:order_id/reservations", h.Reservations.ListByOrder).
		POST("/:order_id/release", h.Reservations.ReleaseByOrder).
		POST("/:order_id/deduct", h.Stock.DeductForOrder)

	inventory.Group("transfers", "/transfers").
		GET("", h.Transfers.ListPending).
		POST("", h.Transfers.InitiateTransfer).
		GET("/:id", h.Transfers.GetTransfer).
		POST("/:id/process", h.Transfers.ProcessTransfer).
		POST("/:id/cancel", h.Transfers.CancelTransfer)

	inventory.POST("/sync", h.Sync.Sync)

	inventory.Group("reports", "/reports").
		GET("/low-stock", h.Reports.GetLowStock).
		GET("/summary", h.Reports.GetSummary)

	return inventory
}
