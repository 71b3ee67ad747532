package handler

import (
	inventoryapp "github.com/erp/stocksync/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// SyncHandler serves cross-location sync
type SyncHandler struct {
	BaseHandler
	sync *inventoryapp.SyncService
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(sync *inventoryapp.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// Sync reconciles one product across its locations
// POST /inventory/sync
func (h *SyncHandler) Sync(c *gin.Context) {
	var req inventoryapp.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.sync.Sync(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
