package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or already expired.
var ErrNotFound = errors.New("session entry not found")

// Store is a TTL-bounded key-value store backing sessions and role records.
// Implementations must be safe for concurrent use and must treat expired
// entries as absent.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// SweepExpired removes expired entries eagerly and returns how many were
	// dropped. Backends with native expiry may report zero.
	SweepExpired(ctx context.Context) (int, error)
}
