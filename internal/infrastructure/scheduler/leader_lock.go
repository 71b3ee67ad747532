package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// LeaderLock elects one replica per tick. Acquire returns ErrLockNotObtained
// when another replica already holds the lock.
type LeaderLock interface {
	Acquire(ctx context.Context, ttl time.Duration) (release func(context.Context) error, err error)
}

// RedisLeaderLock elects through a Redis key using redislock
type RedisLeaderLock struct {
	locker *redislock.Client
	key    string
}

// NewRedisLeaderLock creates a lock on key in client
func NewRedisLeaderLock(client redis.UniversalClient, key string) *RedisLeaderLock {
	return &RedisLeaderLock{locker: redislock.New(client), key: key}
}

// Acquire obtains the lock for ttl without retrying
func (l *RedisLeaderLock) Acquire(ctx context.Context, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.locker.Obtain(ctx, l.key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", l.key, err)
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}

// LocalLeaderLock only prevents overlapping runs inside one process.
// Used when Redis is not configured.
type LocalLeaderLock struct {
	mu sync.Mutex
}

// Acquire takes the lock if it is free. ttl is ignored.
func (l *LocalLeaderLock) Acquire(_ context.Context, _ time.Duration) (func(context.Context) error, error) {
	if !l.mu.TryLock() {
		return nil, ErrLockNotObtained
	}
	return func(context.Context) error {
		l.mu.Unlock()
		return nil
	}, nil
}
