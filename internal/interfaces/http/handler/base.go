package handler

import (
	"errors"
	"net/http"

	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/logger"
	"github.com/erp/stocksync/internal/interfaces/http/dto"
	"github.com/erp/stocksync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with page meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, count, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, count, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// BindError reports a failed JSON, query or URI bind
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// operationalErrors answer with the generic sentinel message. Their detailed
// messages carry row IDs and versions and only go to the log.
var operationalErrors = map[string]*shared.DomainError{
	shared.ErrNotFound.Code:            shared.ErrNotFound,
	shared.ErrConcurrencyConflict.Code: shared.ErrConcurrencyConflict,
	shared.ErrTransferAborted.Code:     shared.ErrTransferAborted,
}

// clientMessage returns the message a caller sees for a domain error
func clientMessage(c *gin.Context, domainErr *shared.DomainError) string {
	sentinel, ok := operationalErrors[domainErr.Code]
	if !ok {
		return domainErr.Message
	}
	log := logger.L(c.Request.Context())
	fields := []zap.Field{
		zap.String("code", domainErr.Code),
		zap.String("detail", domainErr.Message),
	}
	if domainErr.Code == shared.ErrNotFound.Code {
		log.Info("Resource not found", fields...)
	} else {
		log.Warn("Request rejected", fields...)
	}
	return sentinel.Message
}

// HandleError converts domain errors to HTTP responses.
// Anything else is logged and reported as an internal error without its message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Error(c, dto.GetHTTPStatus(code), code, clientMessage(c, domainErr))
		return
	}

	_ = c.Error(err)
	logger.L(c.Request.Context()).Error("Unhandled error", zap.Error(err))
	h.InternalError(c, "An unexpected error occurred")
}

// parseUUIDParam parses a UUID path parameter, writing a 400 on failure
func (h *BaseHandler) parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}
