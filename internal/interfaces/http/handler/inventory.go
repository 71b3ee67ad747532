package handler

import (
	inventoryapp "github.com/erp/stocksync/internal/application/inventory"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InventoryHandler serves stock level reads, adjustments and the movement log
type InventoryHandler struct {
	BaseHandler
	ledger      *inventoryapp.StockLedger
	fulfillment *inventoryapp.FulfillmentService
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(ledger *inventoryapp.StockLedger, fulfillment *inventoryapp.FulfillmentService) *InventoryHandler {
	return &InventoryHandler{
		ledger:      ledger,
		fulfillment: fulfillment,
	}
}

// movementQuery is the raw movement log query; UUIDs are parsed by hand
// because form binding does not decode them.
type movementQuery struct {
	ProductID  string `form:"product_id" binding:"required,uuid"`
	LocationID string `form:"location_id" binding:"omitempty,uuid"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=200"`
}

// GetStockLevel returns the stock of one product at one location
// GET /inventory/stock/:product_id/:location_id
func (h *InventoryHandler) GetStockLevel(c *gin.Context) {
	productID, ok := h.parseUUIDParam(c, "product_id")
	if !ok {
		return
	}
	locationID, ok := h.parseUUIDParam(c, "location_id")
	if !ok {
		return
	}

	level, err := h.ledger.GetStockLevel(c.Request.Context(), productID, locationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, level)
}

// ListStockLevels returns the stock of a product at every location
// GET /inventory/stock/:product_id
func (h *InventoryHandler) ListStockLevels(c *gin.Context) {
	productID, ok := h.parseUUIDParam(c, "product_id")
	if !ok {
		return
	}

	levels, err := h.ledger.ListStockLevels(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, levels)
}

// AdjustStock adds, subtracts or sets available stock
// POST /inventory/stock/adjust
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	var req inventoryapp.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.ledger.AdjustStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// PopulateStock sets initial quantities for many product/location pairs
// POST /inventory/stock/populate
func (h *InventoryHandler) PopulateStock(c *gin.Context) {
	var req inventoryapp.PopulateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.fulfillment.PopulateStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// ListMovements returns the movement log of a product, newest first
// GET /inventory/movements
func (h *InventoryHandler) ListMovements(c *gin.Context) {
	var query movementQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	filter := inventoryapp.MovementFilter{
		ProductID: uuid.MustParse(query.ProductID),
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	if query.LocationID != "" {
		locationID := uuid.MustParse(query.LocationID)
		filter.LocationID = &locationID
	}

	movements, err := h.ledger.ListMovements(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	page, pageSize := pageOrDefault(query.Page, query.PageSize)
	h.SuccessWithMeta(c, movements, len(movements), page, pageSize)
}

// DeductForOrder deducts the stock of a paid order, clamping short lines
// POST /inventory/orders/:order_id/deduct
func (h *InventoryHandler) DeductForOrder(c *gin.Context) {
	var body struct {
		Items []inventoryapp.OrderLineItem `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.fulfillment.DeductForOrder(c.Request.Context(), inventoryapp.DeductForOrderRequest{
		OrderID: c.Param("order_id"),
		Items:   body.Items,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
