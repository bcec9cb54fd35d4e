package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session record is absent or expired.
var ErrNotFound = errors.New("store: not found")

// Store persists opaque session blobs keyed by session id.
type Store interface {
	Get(ctx context.Context, id string) ([]byte, error)
	Put(ctx context.Context, id string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes records whose TTL has elapsed. Backends with
	// native expiry treat it as a no-op.
	DeleteExpired(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
