// Package kvstore is a thin abstraction over a networked key-value backend
// used by the content cache. Every operation degrades to a safe default
// (nil/false/0) instead of returning an error when the backend cannot be
// reached: a cache outage must never turn into a content-serving failure.
//
// Implementations: RedisStore (production), MemoryStore (single process,
// tests) and NullStore (cache disabled).
package kvstore

import (
	"context"
	"time"
)

// Availability is the connection state of the backend.
type Availability int

const (
	Connected   Availability = iota // Backend reachable, operations are effective
	Connecting                      // Initial connect or reconnect in progress
	Unavailable                     // Backend unreachable, store is a pass-through
)

func (a Availability) String() string {
	switch a {
	case Connected:
		return "connected"
	case Connecting:
		return "connecting"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// MarshalText encodes the availability as its name so it can be embedded in
// JSON responses.
func (a Availability) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Store abstracts a key-value backend with TTL support.
// All operations are safe for concurrent use and never block longer than the
// implementation's operation timeout.
type Store interface {
	// Connect establishes the backend connection. It fails soft: on error the
	// store is left Unavailable and behaves as a pass-through. The returned
	// error is informational only.
	Connect(ctx context.Context) error

	// Get returns the value for key. ok is false both when the key is absent
	// and when the backend is unavailable.
	Get(ctx context.Context, key string) (value []byte, ok bool)

	// Set stores value with the given TTL. A zero TTL means no expiration.
	// Returns false when the value was not stored.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool

	// Delete removes a key. Deleting a missing key is effective.
	Delete(ctx context.Context, key string) bool

	// DeletePattern removes every key matching a glob pattern (*, ?, [...]).
	// Matching keys are listed first and then deleted; zero matches is a
	// successful no-op. The sweep is not atomic across keys.
	DeletePattern(ctx context.Context, pattern string) bool

	// Exists reports whether the key exists and has not expired.
	Exists(ctx context.Context, key string) bool

	// Expire resets the TTL of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) bool

	// Increment atomically increments an integer counter and returns the new
	// value, or 0 when the backend is unavailable.
	Increment(ctx context.Context, key string) int64

	// Flush deletes every key in the store's namespace. Destructive.
	Flush(ctx context.Context) bool

	// Availability reports the current backend state.
	Availability() Availability

	// Close releases all resources held by the store.
	Close() error
}
