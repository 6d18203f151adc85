// Package cache provides the byte cache used to keep recorded exchanges: an
// in-process L1 backed by ristretto, a Redis L2, and a Tiered combination of
// both that keeps serving from L1 while Redis is unhealthy.
package cache

import (
	"context"
	"time"
)

// Cache is the storage contract used by the recorder.
type Cache interface {
	// Get retrieves a value by key. The boolean indicates a cache hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value under key with the given TTL. A zero TTL means the
	// entry has no automatic expiration.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// GetOrSet returns the cached value for key. On a cache miss it calls
	// loader exactly once, stores the result, and returns it.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, loader func(context.Context) ([]byte, error)) ([]byte, error)
}

// call deduplicates concurrent loads for the same key.
type call struct {
	done chan struct{}
	val  []byte
	err  error
}
