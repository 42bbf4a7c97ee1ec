// Package secrets provides a scoped, expiring key-value store for
// short-lived credentials such as platform access tokens. Every entry
// carries a mandatory TTL, and one-shot values are consumed through an
// atomic get-and-delete so a secret cannot be replayed by a racing reader.
package secrets

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key is absent or already expired
	ErrNotFound = errors.New("secret not found")
	// ErrInvalidTTL is returned when a TTL of zero or below is supplied
	ErrInvalidTTL = errors.New("ttl must be positive")
)

// Store is an expiring key-value store with atomic consumption semantics
type Store interface {
	// Put stores a value under key for ttl. A non-positive ttl is rejected.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value without consuming it.
	Get(ctx context.Context, key string) (string, error)

	// GetDelete atomically reads and removes the value. At most one caller
	// observes a given value.
	GetDelete(ctx context.Context, key string) (string, error)

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any background resources.
	Close() error
}
