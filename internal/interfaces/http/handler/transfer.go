package handler

import (
	"errors"

	inventoryapp "github.com/erp/stocksync/internal/application/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/interfaces/http/dto"
	"github.com/erp/stocksync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// TransferHandler serves inter-location transfer endpoints
type TransferHandler struct {
	BaseHandler
	transfers *inventoryapp.TransferService
}

// NewTransferHandler creates a new TransferHandler
func NewTransferHandler(transfers *inventoryapp.TransferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

// handleTransferError reports an abort together with the still pending
// transfer, whose failure reason says why the source fell short.
func (h *TransferHandler) handleTransferError(c *gin.Context, transfer *inventoryapp.TransferResponse, err error) {
	var domainErr *shared.DomainError
	if transfer == nil || !errors.Is(err, shared.ErrTransferAborted) || !errors.As(err, &domainErr) {
		h.HandleError(c, err)
		return
	}
	code := dto.NormalizeErrorCode(domainErr.Code)
	resp := dto.NewErrorResponseWithRequestID(code, clientMessage(c, domainErr), middleware.GetRequestID(c))
	resp.Data = transfer
	c.JSON(dto.GetHTTPStatus(code), resp)
}

// InitiateTransfer records a transfer and processes it right away.
// An uncoverable source answers 422 with the pending transfer in data.
// POST /inventory/transfers
func (h *TransferHandler) InitiateTransfer(c *gin.Context) {
	var req inventoryapp.InitiateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	transfer, err := h.transfers.InitiateTransfer(c.Request.Context(), req)
	if err != nil {
		h.handleTransferError(c, transfer, err)
		return
	}

	h.Created(c, transfer)
}

// GetTransfer returns a transfer
// GET /inventory/transfers/:id
func (h *TransferHandler) GetTransfer(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	transfer, err := h.transfers.GetTransfer(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, transfer)
}

// ListPending returns pending transfers, oldest first
// GET /inventory/transfers
func (h *TransferHandler) ListPending(c *gin.Context) {
	var query struct {
		Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	transfers, err := h.transfers.ListPendingTransfers(c.Request.Context(), query.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, transfers)
}

// ProcessTransfer moves the stock of a pending transfer in one transaction.
// An uncoverable source answers 422 and leaves the transfer pending.
// POST /inventory/transfers/:id/process
func (h *TransferHandler) ProcessTransfer(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	transfer, err := h.transfers.ProcessTransfer(c.Request.Context(), id)
	if err != nil {
		h.handleTransferError(c, transfer, err)
		return
	}

	h.Success(c, transfer)
}

// CancelTransfer cancels a pending transfer
// POST /inventory/transfers/:id/cancel
func (h *TransferHandler) CancelTransfer(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	transfer, err := h.transfers.CancelTransfer(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, transfer)
}
