package router

import (
	"github.com/erp/stocksync/internal/infrastructure/logger"
	"github.com/erp/stocksync/internal/interfaces/http/handler"
	"github.com/erp/stocksync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// EngineConfig configures the gin engine
type EngineConfig struct {
	ServiceName    string
	MaxBodySize    int64
	TrustedProxies []string
	TracingEnabled bool
	// Registry backs HTTP metrics and /metrics; nil disables both
	Registry *prometheus.Registry
}

// NewEngine builds the gin engine with the standard middleware chain,
// /health, /metrics and every registrar under /api/v1.
func NewEngine(cfg EngineConfig, log *zap.Logger, system *handler.SystemHandler, registrars ...RouteRegistrar) (*gin.Engine, error) {
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	var reg prometheus.Registerer
	if cfg.Registry != nil {
		reg = cfg.Registry
	}

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.ServiceName,
			Enabled:     cfg.TracingEnabled,
		}),
		middleware.SpanAttributes(),
		middleware.HTTPMetrics(reg),
		middleware.BodyLimit(cfg.MaxBodySize),
	)

	engine.GET("/health", system.Health)
	if cfg.Registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{
			Registry: cfg.Registry,
		})))
	}

	r := NewRouter(engine)
	for _, registrar := range registrars {
		r.Register(registrar)
	}
	r.Setup()

	return engine, nil
}
