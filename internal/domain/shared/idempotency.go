package shared

import (
	"context"
	"time"
)

// IdempotencyStore records keys of operations that must run at most once
// within a TTL window.
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl.
	// Returns true if the key was newly claimed, false if already held.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether key is currently held
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release drops a claim before its TTL expires
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}
