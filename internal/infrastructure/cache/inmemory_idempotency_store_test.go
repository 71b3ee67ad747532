package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*InMemoryIdempotencyStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := NewInMemoryIdempotencyStore(time.Hour)
	store.now = clock.Now
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)
	key := "alert:p1:l1:LOW"

	fresh, err := store.MarkProcessed(ctx, key, 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.MarkProcessed(ctx, key, 15*time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh, "repeat inside the window is suppressed")

	processed, err := store.IsProcessed(ctx, key)
	require.NoError(t, err)
	assert.True(t, processed)

	clock.Advance(15 * time.Minute)
	processed, err = store.IsProcessed(ctx, key)
	require.NoError(t, err)
	assert.False(t, processed, "mark expires exactly at the ttl")

	fresh, err = store.MarkProcessed(ctx, key, 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestInMemoryIdempotencyStore_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	_, _ = store.MarkProcessed(ctx, "short", time.Minute)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	require.Equal(t, 2, store.Len())

	clock.Advance(2 * time.Minute)
	store.purgeExpired()
	assert.Equal(t, 1, store.Len())

	processed, err := store.IsProcessed(ctx, "long")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryIdempotencyStore_ConcurrentMark(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if fresh, _ := store.MarkProcessed(ctx, "alert:p1:l1:CRITICAL", time.Minute); fresh {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore(0)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
