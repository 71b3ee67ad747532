package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/interfaces/http/dto"
	"github.com/erp/stocksync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveError(t *testing.T, err error) (int, dto.Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &BaseHandler{}
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/err", func(c *gin.Context) { h.HandleError(c, err) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/err", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	r.ServeHTTP(w, req)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"insufficient stock", shared.Newf(shared.ErrInsufficientStock, "only %d available", 2), http.StatusUnprocessableEntity, dto.ErrCodeInsufficientStock},
		{"transfer aborted", shared.ErrTransferAborted, http.StatusUnprocessableEntity, dto.ErrCodeTransferAborted},
		{"concurrency conflict", shared.ErrConcurrencyConflict, http.StatusConflict, dto.ErrCodeConcurrencyConflict},
		{"wrapped domain error", fmt.Errorf("reserve: %w", shared.ErrNotFound), http.StatusNotFound, dto.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := serveError(t, tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
		})
	}
}

func TestBaseHandler_HandleError_HidesUnknownErrors(t *testing.T) {
	status, resp := serveError(t, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "pq:")
}

func TestBaseHandler_HandleError_Messages(t *testing.T) {
	t.Run("operational errors answer with the generic message", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			want *shared.DomainError
		}{
			{"conflict", shared.Newf(shared.ErrConcurrencyConflict, "stock level 4f1c was modified concurrently (expected version 3)"), shared.ErrConcurrencyConflict},
			{"not found", shared.Newf(shared.ErrNotFound, "no stock level for product 9a2e at location 77b0"), shared.ErrNotFound},
			{"transfer aborted", shared.Newf(shared.ErrTransferAborted, "transfer 51d3 aborted: only 2 available"), shared.ErrTransferAborted},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, resp := serveError(t, tt.err)
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.want.Message, resp.Error.Message)
			})
		}
	})

	t.Run("client errors keep their message", func(t *testing.T) {
		_, resp := serveError(t, shared.Newf(shared.ErrInsufficientStock, "only %d available", 2))
		require.NotNil(t, resp.Error)
		assert.Equal(t, "only 2 available", resp.Error.Message)

		_, resp = serveError(t, shared.Newf(shared.ErrInvalidInput, "quantity must be positive"))
		require.NotNil(t, resp.Error)
		assert.Equal(t, "quantity must be positive", resp.Error.Message)
	})
}
