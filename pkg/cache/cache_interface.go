package cache

import (
	"context"
	"time"
)

// Cache is the contract of the key/value layer.
// Implementations: Redis (infrastructure/cache) and an in-memory one for tests.
type Cache interface {
	// Get unmarshals the JSON value at key into dest.
	// found=false on a miss, dest is left untouched.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set stores value as JSON. ttl=0 means no expiry.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Delete(ctx context.Context, keys ...string) error

	// SetNX stores value only when key is absent.
	// Returns true when this call created the key.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	Exists(ctx context.Context, key string) (bool, error)

	Ping(ctx context.Context) error
}
