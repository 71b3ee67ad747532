package handler

import (
	inventoryapp "github.com/erp/stocksync/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// ReportHandler serves stock reports
type ReportHandler struct {
	BaseHandler
	reports *inventoryapp.ReportService
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reports *inventoryapp.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// lowStockQuery defaults the threshold to the low alert threshold when absent
type lowStockQuery struct {
	Threshold *int `form:"threshold" binding:"omitempty,min=0"`
	Page      int  `form:"page" binding:"omitempty,min=1"`
	PageSize  int  `form:"page_size" binding:"omitempty,min=1,max=200"`
}

// GetLowStock lists stock levels at or below a threshold, lowest first
// GET /inventory/reports/low-stock
func (h *ReportHandler) GetLowStock(c *gin.Context) {
	var query lowStockQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	threshold := h.reports.DefaultLowThreshold()
	if query.Threshold != nil {
		threshold = *query.Threshold
	}
	page, pageSize := pageOrDefault(query.Page, query.PageSize)

	items, err := h.reports.GetLowStockProducts(c.Request.Context(), threshold, page, pageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, items, len(items), page, pageSize)
}

// GetSummary aggregates stock across every product and location
// GET /inventory/reports/summary
func (h *ReportHandler) GetSummary(c *gin.Context) {
	summary, err := h.reports.GetStockSummary(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}
