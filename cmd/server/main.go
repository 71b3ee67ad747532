package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	inventoryapp "github.com/erp/stocksync/internal/application/inventory"
	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/cache"
	"github.com/erp/stocksync/internal/infrastructure/config"
	"github.com/erp/stocksync/internal/infrastructure/event"
	"github.com/erp/stocksync/internal/infrastructure/logger"
	"github.com/erp/stocksync/internal/infrastructure/persistence"
	"github.com/erp/stocksync/internal/infrastructure/scheduler"
	"github.com/erp/stocksync/internal/infrastructure/telemetry"
	"github.com/erp/stocksync/internal/interfaces/http/handler"
	"github.com/erp/stocksync/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// sweepLockKey is the Redis key replicas race for before each sweep
const sweepLockKey = "stocksync:sweep:leader"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, cfg.App.Name)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting stock sync engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	stockMetrics := telemetry.NewStockMetrics(registry)

	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		LogLevel:      cfg.Log.Level,
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
		TraceEnabled:  cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	stockRepo := persistence.NewGormStockLevelRepository(db.DB)
	movementRepo := persistence.NewGormMovementRepository(db.DB)
	reservationRepo := persistence.NewGormReservationRepository(db.DB)
	transferRepo := persistence.NewGormTransferRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Application services
	ledger := inventoryapp.NewStockLedger(txScope, stockRepo, movementRepo, productRepo, log, inventoryapp.LedgerConfig{
		MaxAttempts:    cfg.Ledger.MaxAttempts,
		RetryBaseDelay: cfg.Ledger.RetryBaseDelay,
		AlertPolicy: inventory.AlertPolicy{
			Low:      cfg.Alert.LowThreshold,
			Critical: cfg.Alert.CriticalThreshold,
		},
	})
	ledger.SetMetrics(stockMetrics)

	reservationService := inventoryapp.NewReservationService(ledger, reservationRepo, cfg.Reservation.DefaultTTL, log)
	transferService := inventoryapp.NewTransferService(ledger, transferRepo, log)
	syncService := inventoryapp.NewSyncService(ledger, transferService, stockRepo, productRepo, cfg.Sync.DefaultFloor, log)
	fulfillmentService := inventoryapp.NewFulfillmentService(ledger, log)
	reportService := inventoryapp.NewReportService(stockRepo, productRepo, ledger.AlertPolicy(), log)

	// Events: in-process handlers first, then the broker when configured
	eventBus := event.NewInMemoryEventBus(log)

	alertStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).Create(ctx)
	if err != nil {
		log.Fatal("Failed to create alert suppression store", zap.Error(err))
	}
	defer func() {
		_ = alertStore.Close()
	}()
	eventBus.Subscribe(inventoryapp.NewLowStockAlertHandler(log).WithSuppression(alertStore, cfg.Alert.MinInterval))

	publishers := []shared.EventPublisher{eventBus}
	var kafkaQueue *event.AsyncPublisher
	if cfg.Kafka.Enabled {
		writer := event.NewKafkaWriter(event.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			ClientID:     cfg.Kafka.ClientID,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		})
		kafkaPublisher := event.NewKafkaPublisher(writer, event.NewInventorySerializer(), cfg.Kafka.ClientID, log)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Error("Error closing Kafka writer", zap.Error(err))
			}
		}()
		kafkaQueue = event.NewAsyncPublisher(kafkaPublisher, cfg.Kafka.QueueSize, log)
		kafkaQueue.Start()
		publishers = append(publishers, kafkaQueue)
		log.Info("Kafka event publishing enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}
	ledger.SetEventPublisher(event.NewMultiPublisher(publishers...))

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Expiry sweep
	var sweepTrigger *scheduler.SweepTrigger
	if cfg.Sweep.Enabled {
		sweeper := inventoryapp.NewExpirySweeper(reservationService, transferService, inventoryapp.SweepConfig{
			BatchSize:          cfg.Sweep.BatchSize,
			Concurrency:        cfg.Sweep.Concurrency,
			TransferRetryAfter: cfg.Sweep.TransferRetryAfter,
			TransferMaxAge:     cfg.Sweep.TransferMaxAge,
		}, log)
		sweeper.SetMetrics(stockMetrics)

		leaderLock, closeLeaderLock := sweepLeaderLock(ctx, cfg, log)
		defer closeLeaderLock()

		sweepTrigger, err = scheduler.NewSweepTrigger(scheduler.SweepTriggerConfig{
			Interval:   cfg.Sweep.Interval,
			LockTTL:    cfg.Sweep.LockTTL,
			RunOnStart: true,
		}, sweeper, leaderLock, log)
		if err != nil {
			log.Fatal("Failed to create sweep trigger", zap.Error(err))
		}
		if err := sweepTrigger.Start(ctx); err != nil {
			log.Fatal("Failed to start sweep trigger", zap.Error(err))
		}
	}

	// HTTP
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version).
		WithCheck("database", db.Ping)

	inventoryRoutes := router.NewInventoryRoutes(router.InventoryHandlers{
		Stock:        handler.NewInventoryHandler(ledger, fulfillmentService),
		Reservations: handler.NewReservationHandler(reservationService),
		Transfers:    handler.NewTransferHandler(transferService),
		Sync:         handler.NewSyncHandler(syncService),
		Reports:      handler.NewReportHandler(reportService),
	})

	engineCfg := router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		TracingEnabled: cfg.Telemetry.Enabled,
	}
	if cfg.HTTP.MetricsEnabled {
		engineCfg.Registry = registry
	}
	engine, err := router.NewEngine(engineCfg, log, systemHandler, inventoryRoutes)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serverErr:
		log.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if sweepTrigger != nil {
		if err := sweepTrigger.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping sweep trigger", zap.Error(err))
		}
	}
	if kafkaQueue != nil {
		if err := kafkaQueue.Stop(shutdownCtx); err != nil {
			log.Error("Error draining event queue", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// sweepLeaderLock elects one sweeping replica through Redis. Without Redis,
// or when it is unreachable, each process only guards against its own overlap.
// The returned func closes the Redis client once the sweep has stopped.
func sweepLeaderLock(ctx context.Context, cfg *config.Config, log *zap.Logger) (scheduler.LeaderLock, func()) {
	noop := func() {}
	if !cfg.Redis.Enabled {
		return &scheduler.LocalLeaderLock{}, noop
	}
	client, err := cache.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, sweep leader election is per process", zap.Error(err))
		return &scheduler.LocalLeaderLock{}, noop
	}
	return scheduler.NewRedisLeaderLock(client, sweepLockKey), func() {
		if err := client.Close(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}
}
