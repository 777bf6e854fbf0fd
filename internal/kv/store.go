package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key does not exist or has expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is the persistence contract shared by all cross-request state.
//
// A zero or negative TTL means the entry does not expire. Implementations
// may keep expired entries around until they are next read; callers must
// not rely on proactive sweeping.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key with the given time-to-live.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
