package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "stocksync"

// StockMetrics exposes ledger and sweep counters to Prometheus.
type StockMetrics struct {
	writes          *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
	movementFailure prometheus.Counter
	sweepReleased   prometheus.Counter
	sweepFailed     prometheus.Counter
	alerts          *prometheus.CounterVec
	transferAborts  prometheus.Counter
}

// NewStockMetrics registers the stock collectors on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	factory := promauto.With(reg)
	return &StockMetrics{
		writes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ledger_writes_total",
			Help:      "Stock ledger write attempts by operation and outcome.",
		}, []string{"operation", "outcome"}),
		conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ledger_version_conflicts_total",
			Help:      "Optimistic concurrency conflicts that triggered a retry.",
		}, []string{"operation"}),
		movementFailure: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "movement_log_failures_total",
			Help:      "Movement log writes that failed after the stock change committed.",
		}),
		sweepReleased: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sweep_reservations_expired_total",
			Help:      "Reservations released by the expiry sweep.",
		}),
		sweepFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sweep_release_failures_total",
			Help:      "Reservations the expiry sweep failed to release.",
		}),
		alerts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "low_stock_alerts_total",
			Help:      "Low stock alerts raised by level.",
		}, []string{"level"}),
		transferAborts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transfer_aborts_total",
			Help:      "Transfers aborted because the source could not cover them.",
		}),
	}
}

// ObserveWrite counts one ledger write
func (m *StockMetrics) ObserveWrite(operation, outcome string) {
	m.writes.WithLabelValues(operation, outcome).Inc()
}

// ObserveConflict counts one version conflict
func (m *StockMetrics) ObserveConflict(operation string) {
	m.conflicts.WithLabelValues(operation).Inc()
}

// ObserveMovementLogFailure counts a swallowed movement log failure
func (m *StockMetrics) ObserveMovementLogFailure() {
	m.movementFailure.Inc()
}

// ObserveSweep records one sweep run
func (m *StockMetrics) ObserveSweep(released, failed int) {
	m.sweepReleased.Add(float64(released))
	m.sweepFailed.Add(float64(failed))
}

// ObserveAlert counts a low stock alert
func (m *StockMetrics) ObserveAlert(level string) {
	m.alerts.WithLabelValues(level).Inc()
}

// ObserveTransferAbort counts an aborted transfer
func (m *StockMetrics) ObserveTransferAbort() {
	m.transferAborts.Inc()
}
