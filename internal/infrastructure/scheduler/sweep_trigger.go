package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appinv "github.com/erp/stocksync/internal/application/inventory"
	"go.uber.org/zap"
)

// Sweeper runs one expiry pass
type Sweeper interface {
	Sweep(ctx context.Context) (*appinv.ExpiryStats, error)
}

// SweepTriggerConfig holds configuration for the sweep trigger
type SweepTriggerConfig struct {
	// Interval between sweeps
	Interval time.Duration
	// LockTTL bounds both the leader lock and a single sweep
	LockTTL time.Duration
	// RunOnStart sweeps immediately instead of waiting one interval
	RunOnStart bool
}

// DefaultSweepTriggerConfig returns default sweep trigger configuration
func DefaultSweepTriggerConfig() SweepTriggerConfig {
	return SweepTriggerConfig{
		Interval:   time.Minute,
		LockTTL:    50 * time.Second,
		RunOnStart: true,
	}
}

// Validate checks the configuration
func (c SweepTriggerConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("%w: lock TTL must be positive", ErrInvalidConfig)
	}
	return nil
}

// TriggerStats counts what the trigger has done since Start
type TriggerStats struct {
	Runs      int
	Skipped   int
	Failures  int
	LastRunAt time.Time
}

// SweepTrigger runs the expiry sweeper on a fixed interval.
// With several replicas the leader lock lets only one of them sweep per tick.
type SweepTrigger struct {
	config  SweepTriggerConfig
	sweeper Sweeper
	lock    LeaderLock
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	stats     TriggerStats
}

// NewSweepTrigger creates a new sweep trigger. A nil lock falls back to a process-local one.
func NewSweepTrigger(config SweepTriggerConfig, sweeper Sweeper, lock LeaderLock, logger *zap.Logger) (*SweepTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if lock == nil {
		lock = &LocalLeaderLock{}
	}
	return &SweepTrigger{
		config:  config,
		sweeper: sweeper,
		lock:    lock,
		logger:  logger.Named("sweep_trigger"),
	}, nil
}

// Start starts the trigger loop
func (t *SweepTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Sweep trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Duration("lock_ttl", t.config.LockTTL),
	)
	return nil
}

// Stop stops the loop and waits for an in-flight sweep
func (t *SweepTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Sweep trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the trigger counters
func (t *SweepTrigger) Stats() TriggerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

func (t *SweepTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	if t.config.RunOnStart {
		t.RunOnce(ctx)
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.RunOnce(ctx)
		}
	}
}

// RunOnce sweeps if this replica wins the leader lock
func (t *SweepTrigger) RunOnce(ctx context.Context) {
	release, err := t.lock.Acquire(ctx, t.config.LockTTL)
	if err != nil {
		t.mu.Lock()
		t.stats.Skipped++
		t.mu.Unlock()
		if errors.Is(err, ErrLockNotObtained) {
			t.logger.Debug("Another replica is sweeping, skipping tick")
		} else {
			t.logger.Warn("Failed to acquire sweep lock, skipping tick", zap.Error(err))
		}
		return
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			t.logger.Warn("Failed to release sweep lock", zap.Error(err))
		}
	}()

	sweepCtx, cancel := context.WithTimeout(ctx, t.config.LockTTL)
	defer cancel()

	start := time.Now()
	stats, err := t.sweeper.Sweep(sweepCtx)

	t.mu.Lock()
	t.stats.Runs++
	t.stats.LastRunAt = start
	if err != nil {
		t.stats.Failures++
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Error("Expiry sweep failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	t.logger.Debug("Expiry sweep finished",
		zap.Int("released", stats.Released),
		zap.Int("failed", stats.Failed),
		zap.Int("transfers_completed", stats.TransfersCompleted),
		zap.Duration("elapsed", time.Since(start)),
	)
}
