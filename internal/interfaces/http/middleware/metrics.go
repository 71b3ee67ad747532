package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// httpDurationBuckets spans fast stock reads up to slow batch deductions
var httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// httpMetrics holds all HTTP-related collectors.
type httpMetrics struct {
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	activeRequests  prometheus.Gauge
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	factory := promauto.With(reg)
	return &httpMetrics{
		requestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stocksync",
			Name:      "http_server_request_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stocksync",
			Name:      "http_server_request_duration_seconds",
			Help:      "HTTP request latency distribution in seconds.",
			Buckets:   httpDurationBuckets,
		}, []string{"method", "route"}),
		responseSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stocksync",
			Name:      "http_server_response_size_bytes",
			Help:      "HTTP response body size distribution in bytes.",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		}, []string{"method", "route"}),
		activeRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stocksync",
			Name:      "http_server_active_requests",
			Help:      "Number of currently active HTTP requests.",
		}),
	}
}

// HTTPMetrics returns a Gin middleware that collects request count, latency,
// response size and in-flight requests on reg. A nil reg disables collection.
func HTTPMetrics(reg prometheus.Registerer) gin.HandlerFunc {
	if reg == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	metrics := newHTTPMetrics(reg)

	return func(c *gin.Context) {
		start := time.Now()
		metrics.activeRequests.Inc()

		c.Next()

		metrics.activeRequests.Dec()
		route := getRoutePattern(c)
		method := c.Request.Method

		metrics.requestTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			metrics.responseSize.WithLabelValues(method, route).Observe(float64(size))
		}
	}
}

// getRoutePattern returns the route pattern (e.g., "/api/v1/inventory/stock/:product_id")
// instead of the actual path to avoid high cardinality issues.
func getRoutePattern(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		return "unknown"
	}
	return route
}
