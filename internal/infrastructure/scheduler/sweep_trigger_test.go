package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	appinv "github.com/erp/stocksync/internal/application/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
	block chan struct{}
}

func (s *countingSweeper) Sweep(ctx context.Context) (*appinv.ExpiryStats, error) {
	s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &appinv.ExpiryStats{Released: 1}, nil
}

type stubLock struct {
	err      error
	acquired atomic.Int32
	released atomic.Int32
}

func (l *stubLock) Acquire(context.Context, time.Duration) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired.Add(1)
	return func(context.Context) error {
		l.released.Add(1)
		return nil
	}, nil
}

func testTriggerConfig() SweepTriggerConfig {
	return SweepTriggerConfig{Interval: time.Hour, LockTTL: time.Second}
}

func TestSweepTriggerConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultSweepTriggerConfig().Validate())

	_, err := NewSweepTrigger(SweepTriggerConfig{LockTTL: time.Second}, &countingSweeper{}, nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewSweepTrigger(SweepTriggerConfig{Interval: time.Second}, &countingSweeper{}, nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSweepTrigger_RunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("sweeps under the lock", func(t *testing.T) {
		sweeper, lock := &countingSweeper{}, &stubLock{}
		trigger, err := NewSweepTrigger(testTriggerConfig(), sweeper, lock, zap.NewNop())
		require.NoError(t, err)

		trigger.RunOnce(ctx)

		assert.Equal(t, int32(1), sweeper.calls.Load())
		assert.Equal(t, int32(1), lock.acquired.Load())
		assert.Equal(t, int32(1), lock.released.Load())
		stats := trigger.Stats()
		assert.Equal(t, 1, stats.Runs)
		assert.False(t, stats.LastRunAt.IsZero())
	})

	t.Run("skips when another replica holds the lock", func(t *testing.T) {
		sweeper := &countingSweeper{}
		trigger, err := NewSweepTrigger(testTriggerConfig(), sweeper, &stubLock{err: ErrLockNotObtained}, zap.NewNop())
		require.NoError(t, err)

		trigger.RunOnce(ctx)

		assert.Zero(t, sweeper.calls.Load())
		assert.Equal(t, 1, trigger.Stats().Skipped)
	})

	t.Run("skips when the lock backend fails", func(t *testing.T) {
		sweeper := &countingSweeper{}
		trigger, err := NewSweepTrigger(testTriggerConfig(), sweeper, &stubLock{err: errors.New("redis: connection refused")}, zap.NewNop())
		require.NoError(t, err)

		trigger.RunOnce(ctx)
		assert.Zero(t, sweeper.calls.Load())
		assert.Equal(t, 1, trigger.Stats().Skipped)
	})

	t.Run("counts failed sweeps and still releases", func(t *testing.T) {
		sweeper, lock := &countingSweeper{err: errors.New("db down")}, &stubLock{}
		trigger, err := NewSweepTrigger(testTriggerConfig(), sweeper, lock, zap.NewNop())
		require.NoError(t, err)

		trigger.RunOnce(ctx)
		assert.Equal(t, 1, trigger.Stats().Failures)
		assert.Equal(t, int32(1), lock.released.Load())
	})
}

func TestSweepTrigger_StartStop(t *testing.T) {
	sweeper := &countingSweeper{}
	cfg := SweepTriggerConfig{Interval: 10 * time.Millisecond, LockTTL: time.Second, RunOnStart: true}
	trigger, err := NewSweepTrigger(cfg, sweeper, nil, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, trigger.Start(context.Background()))
	require.NoError(t, trigger.Start(context.Background()), "start is idempotent")

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, trigger.Stop(context.Background()))
	calls := sweeper.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, sweeper.calls.Load(), "no sweeps after stop")
	require.NoError(t, trigger.Stop(context.Background()))
}

func TestSweepTrigger_StopCancelsInFlightSweep(t *testing.T) {
	sweeper := &countingSweeper{block: make(chan struct{})}
	cfg := SweepTriggerConfig{Interval: time.Hour, LockTTL: time.Minute, RunOnStart: true}
	trigger, err := NewSweepTrigger(cfg, sweeper, nil, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, trigger.Start(context.Background()))
	assert.Eventually(t, func() bool { return sweeper.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(ctx))
	assert.Equal(t, 1, trigger.Stats().Failures)
}

func TestLocalLeaderLock(t *testing.T) {
	ctx := context.Background()
	var lock LocalLeaderLock

	release, err := lock.Acquire(ctx, time.Second)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, time.Second)
	assert.ErrorIs(t, err, ErrLockNotObtained)

	require.NoError(t, release(ctx))

	var wg sync.WaitGroup
	var winners atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := lock.Acquire(ctx, time.Second); err == nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}
