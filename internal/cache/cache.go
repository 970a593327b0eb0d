package cache

import (
	"context"
	"time"
)

// DefaultTTL bounds the staleness of every cache entry.
const DefaultTTL = 3600 * time.Second

// Store is a key-value cache with expiry. A miss is reported through the
// hit flag, not an error; errors mean the cache itself is unavailable and
// callers are expected to fail open.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, hit bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
