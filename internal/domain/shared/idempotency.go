package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys for a bounded window.
// Used to suppress repeated side effects such as duplicate alerts.
type IdempotencyStore interface {
	// MarkProcessed marks a key with a TTL.
	// Returns true if the key was newly marked, false if it was already present
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key is currently marked
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}
