package inventory

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SweepConfig tunes one sweep pass
type SweepConfig struct {
	// BatchSize caps how many expired reservations one pass releases
	BatchSize int
	// Concurrency caps parallel releases
	Concurrency int
	// TransferRetryAfter is how old a pending transfer must be before the sweep retries it.
	// Zero disables transfer retries.
	TransferRetryAfter time.Duration
	// TransferMaxAge cancels pending transfers older than this instead of retrying them.
	// Zero keeps retrying them forever.
	TransferMaxAge time.Duration
}

// DefaultSweepConfig returns the default sweep configuration
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		BatchSize:          500,
		Concurrency:        4,
		TransferRetryAfter: time.Minute,
		TransferMaxAge:     time.Hour,
	}
}

// ExpiryStats contains statistics about one sweep pass
type ExpiryStats struct {
	TotalExpired       int       `json:"total_expired"`
	Released           int       `json:"released"`
	Failed             int       `json:"failed"`
	TransfersRetried   int       `json:"transfers_retried"`
	TransfersCompleted int       `json:"transfers_completed"`
	TransfersFailed    int       `json:"transfers_failed"`
	TransfersCancelled int       `json:"transfers_cancelled"`
	ProcessedAt        time.Time `json:"processed_at"`
}

// ExpirySweeper releases overdue reservations and retries stuck transfers.
// It only goes through ReservationService and TransferService, so it obeys
// the same version checks as any other writer.
type ExpirySweeper struct {
	reservations *ReservationService
	transfers    *TransferService
	metrics      Metrics
	config       SweepConfig
	logger       *zap.Logger
}

// NewExpirySweeper creates a new ExpirySweeper
func NewExpirySweeper(
	reservations *ReservationService,
	transfers *TransferService,
	config SweepConfig,
	logger *zap.Logger,
) *ExpirySweeper {
	defaults := DefaultSweepConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	return &ExpirySweeper{
		reservations: reservations,
		transfers:    transfers,
		metrics:      noopMetrics{},
		config:       config,
		logger:       logger,
	}
}

// SetMetrics sets the metrics recorder
func (s *ExpirySweeper) SetMetrics(metrics Metrics) {
	if metrics != nil {
		s.metrics = metrics
	}
}

// Sweep runs one pass. A failing reservation is counted and logged, it never
// stops the others.
func (s *ExpirySweeper) Sweep(ctx context.Context) (*ExpiryStats, error) {
	now := time.Now()
	stats := &ExpiryStats{ProcessedAt: now}

	expired, err := s.reservations.reservationRepo.FindExpiredActive(ctx, now, s.config.BatchSize)
	if err != nil {
		s.logger.Error("Failed to find expired reservations", zap.Error(err))
		return nil, err
	}
	stats.TotalExpired = len(expired)

	if len(expired) > 0 {
		s.logger.Info("Found expired reservations", zap.Int("count", len(expired)))

		var released, failed atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.config.Concurrency)
		for _, r := range expired {
			g.Go(func() error {
				if _, err := s.reservations.Expire(gctx, r.ID); err != nil {
					failed.Add(1)
					s.logger.Error("Failed to release expired reservation",
						zap.String("reservation_id", r.ID.String()),
						zap.String("order_id", r.OrderID),
						zap.String("product_id", r.ProductID.String()),
						zap.String("location_id", r.LocationID.String()),
						zap.Error(err),
					)
					return nil
				}
				released.Add(1)
				return nil
			})
		}
		_ = g.Wait()
		stats.Released = int(released.Load())
		stats.Failed = int(failed.Load())
	}
	s.metrics.ObserveSweep(stats.Released, stats.Failed)

	if s.transfers != nil && s.config.TransferMaxAge > 0 {
		cancelled, err := s.transfers.CancelStale(ctx, now.Add(-s.config.TransferMaxAge), s.config.BatchSize)
		if err != nil {
			s.logger.Warn("Failed to cancel stale transfers", zap.Error(err))
		}
		stats.TransfersCancelled = cancelled
	}
	if s.transfers != nil && s.config.TransferRetryAfter > 0 {
		retry, err := s.transfers.RetryPending(ctx, now.Add(-s.config.TransferRetryAfter), s.config.BatchSize)
		if err != nil {
			s.logger.Warn("Failed to retry pending transfers", zap.Error(err))
		} else {
			stats.TransfersRetried = retry.Pending
			stats.TransfersCompleted = retry.Completed
			stats.TransfersFailed = retry.Aborted + retry.Failed
		}
	}

	if stats.TotalExpired > 0 || stats.TransfersRetried > 0 || stats.TransfersCancelled > 0 {
		s.logger.Info("Completed expiry sweep",
			zap.Int("total", stats.TotalExpired),
			zap.Int("released", stats.Released),
			zap.Int("failed", stats.Failed),
			zap.Int("transfers_retried", stats.TransfersRetried),
			zap.Int("transfers_completed", stats.TransfersCompleted),
			zap.Int("transfers_cancelled", stats.TransfersCancelled),
		)
	} else {
		s.logger.Debug("No expired reservations found")
	}
	return stats, nil
}
