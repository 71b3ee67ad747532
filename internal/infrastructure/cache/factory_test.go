package cache

import (
	"context"
	"testing"

	"github.com/erp/stocksync/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func unreachableRedis() config.RedisConfig {
	return config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}
}

func TestIdempotencyStoreFactory_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("redis disabled", func(t *testing.T) {
		store, err := NewIdempotencyStoreFactory(config.RedisConfig{}).Create(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("falls back when redis is unreachable", func(t *testing.T) {
		store, err := NewIdempotencyStoreFactory(unreachableRedis(), WithLogger(zap.NewNop())).Create(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("fails without fallback", func(t *testing.T) {
		_, err := NewIdempotencyStoreFactory(unreachableRedis(), WithInMemoryFallback(false)).Create(ctx)
		assert.ErrorContains(t, err, "redis required for idempotency")
	})
}
