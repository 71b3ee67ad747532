package handler

import (
	"errors"
	"io"

	inventoryapp "github.com/erp/stocksync/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// ReservationHandler serves reservation endpoints
type ReservationHandler struct {
	BaseHandler
	reservations *inventoryapp.ReservationService
}

// NewReservationHandler creates a new ReservationHandler
func NewReservationHandler(reservations *inventoryapp.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservations: reservations}
}

// ReleaseRequest selects how a reservation is closed.
// Fulfilled consumes the held stock; otherwise it returns to available.
type ReleaseRequest struct {
	Fulfilled bool `json:"fulfilled"`
}

// bindRelease reads an optional release body; an empty body means cancel.
func (h *ReservationHandler) bindRelease(c *gin.Context) (ReleaseRequest, bool) {
	var req ReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.BindError(c, err)
		return req, false
	}
	return req, true
}

// Reserve holds stock for an order
// POST /inventory/reservations
func (h *ReservationHandler) Reserve(c *gin.Context) {
	var req inventoryapp.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	reservation, err := h.reservations.Reserve(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, reservation)
}

// GetReservation returns a reservation
// GET /inventory/reservations/:id
func (h *ReservationHandler) GetReservation(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	reservation, err := h.reservations.GetReservation(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, reservation)
}

// Release closes a reservation. Releasing a closed reservation returns it unchanged.
// POST /inventory/reservations/:id/release
func (h *ReservationHandler) Release(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	req, ok := h.bindRelease(c)
	if !ok {
		return
	}

	reservation, err := h.reservations.Release(c.Request.Context(), id, req.Fulfilled)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, reservation)
}

// ListByOrder returns every reservation of an order
// GET /inventory/orders/:order_id/reservations
func (h *ReservationHandler) ListByOrder(c *gin.Context) {
	reservations, err := h.reservations.ListByOrder(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, reservations)
}

// ReleaseByOrder closes every active reservation of an order
// POST /inventory/orders/:order_id/release
func (h *ReservationHandler) ReleaseByOrder(c *gin.Context) {
	req, ok := h.bindRelease(c)
	if !ok {
		return
	}

	result, err := h.reservations.ReleaseByOrder(c.Request.Context(), c.Param("order_id"), req.Fulfilled)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
