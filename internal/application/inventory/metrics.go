package inventory

// Metrics receives operational counters from the inventory services.
// telemetry.StockMetrics is the Prometheus implementation.
type Metrics interface {
	ObserveWrite(operation, outcome string)
	ObserveConflict(operation string)
	ObserveMovementLogFailure()
	ObserveSweep(released, failed int)
	ObserveAlert(level string)
	ObserveTransferAbort()
}

type noopMetrics struct{}

func (noopMetrics) ObserveWrite(string, string) {}
func (noopMetrics) ObserveConflict(string) {}
func (noopMetrics) ObserveMovementLogFailure() {}
func (noopMetrics) ObserveSweep(int, int) {}
func (noopMetrics) ObserveAlert(string) {}
func (noopMetrics) ObserveTransferAbort() {}
