// Package cache defines the TTL-keyed value store contract (C1) and two
// implementations: an in-process map for tests and a Redis-backed store for
// production. The backend is a plug-in behind a single interface, injected
// at construction — the shape recommended by DESIGN NOTES §9.
package cache

import (
	"context"
	"time"
)

// Producer computes a value on a cache miss for GetOrFetch.
type Producer func(ctx context.Context) ([]byte, error)

// Cache is the contract every backend implements. Values are opaque byte
// blobs; callers own serialisation.
type Cache interface {
	// Get returns the stored value, or ok=false if absent or expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key. ttl of 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// GetOrFetch reads through: on miss it invokes producer exactly once,
	// stores the non-empty result with ttl, and returns it. Concurrent
	// misses may each invoke producer independently — no coalescing is
	// guaranteed.
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, producer Producer) ([]byte, error)
}
