package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultAlertMinInterval suppresses repeats of the same alert within this window
const DefaultAlertMinInterval = 15 * time.Minute

// StockAlertNotifier is the interface for sending stock alerts
type StockAlertNotifier interface {
	// SendAlert sends a stock alert notification
	SendAlert(ctx context.Context, alert StockAlert) error
}

// StockAlert represents a stock level alert
type StockAlert struct {
	ProductID       string `json:"product_id"`
	LocationID      string `json:"location_id"`
	CurrentStock    int    `json:"current_stock"`
	AlertLevel      string `json:"alert_level"`
	SuggestedAction string `json:"suggested_action"`
}

// LowStockAlertHandler handles LowStockAlert events and forwards them to a
// notifier, at most once per product, location and level within MinInterval
type LowStockAlertHandler struct {
	logger      *zap.Logger
	notifier    StockAlertNotifier
	dedupe      shared.IdempotencyStore
	minInterval time.Duration
}

// NewLowStockAlertHandler creates a new handler for low stock alert events
func NewLowStockAlertHandler(logger *zap.Logger) *LowStockAlertHandler {
	return &LowStockAlertHandler{
		logger:      logger,
		notifier:    NewLoggingStockAlertNotifier(logger),
		minInterval: DefaultAlertMinInterval,
	}
}

// WithNotifier sets the notifier for sending alerts
func (h *LowStockAlertHandler) WithNotifier(notifier StockAlertNotifier) *LowStockAlertHandler {
	h.notifier = notifier
	return h
}

// WithSuppression enables duplicate suppression through the given store
func (h *LowStockAlertHandler) WithSuppression(store shared.IdempotencyStore, minInterval time.Duration) *LowStockAlertHandler {
	h.dedupe = store
	if minInterval > 0 {
		h.minInterval = minInterval
	}
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *LowStockAlertHandler) EventTypes() []string {
	return []string{inventory.EventTypeLowStockAlert}
}

// Handle processes a LowStockAlertEvent
func (h *LowStockAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	alertEvent, ok := event.(*inventory.LowStockAlertEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", inventory.EventTypeLowStockAlert),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			inventory.EventTypeLowStockAlert, event.EventType())
	}

	alert := StockAlert{
		ProductID:       alertEvent.ProductID.String(),
		LocationID:      alertEvent.LocationID.String(),
		CurrentStock:    alertEvent.CurrentStock,
		AlertLevel:      string(alertEvent.AlertLevel),
		SuggestedAction: alertEvent.SuggestedAction,
	}

	if h.dedupe != nil {
		key := fmt.Sprintf("alert:%s:%s:%s", alert.ProductID, alert.LocationID, alert.AlertLevel)
		fresh, err := h.dedupe.MarkProcessed(ctx, key, h.minInterval)
		if err != nil {
			h.logger.Debug("alert suppression store unavailable, sending anyway", zap.Error(err))
		} else if !fresh {
			h.logger.Debug("duplicate stock alert suppressed",
				zap.String("product_id", alert.ProductID),
				zap.String("location_id", alert.LocationID),
				zap.String("alert_level", alert.AlertLevel),
			)
			return nil
		}
	}

	if h.notifier == nil {
		return nil
	}
	if err := h.notifier.SendAlert(ctx, alert); err != nil {
		// notification failure never fails event handling
		h.logger.Error("failed to send stock alert notification",
			zap.String("product_id", alert.ProductID),
			zap.String("location_id", alert.LocationID),
			zap.Error(err),
		)
		return nil
	}
	h.logger.Info("stock alert notification sent",
		zap.String("product_id", alert.ProductID),
		zap.String("location_id", alert.LocationID),
		zap.String("alert_level", alert.AlertLevel),
	)
	return nil
}

var _ shared.EventHandler = (*LowStockAlertHandler)(nil)

// LoggingStockAlertNotifier is a notifier that logs alerts
type LoggingStockAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingStockAlertNotifier creates a new logging notifier
func NewLoggingStockAlertNotifier(logger *zap.Logger) *LoggingStockAlertNotifier {
	return &LoggingStockAlertNotifier{
		logger: logger,
	}
}

// SendAlert logs the stock alert
func (n *LoggingStockAlertNotifier) SendAlert(_ context.Context, alert StockAlert) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("alert_level", alert.AlertLevel),
		zap.String("product_id", alert.ProductID),
		zap.String("location_id", alert.LocationID),
		zap.Int("current_stock", alert.CurrentStock),
		zap.String("suggested_action", alert.SuggestedAction),
	)
	return nil
}

var _ StockAlertNotifier = (*LoggingStockAlertNotifier)(nil)
