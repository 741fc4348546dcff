package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when the key is absent or its TTL has expired.
var ErrKeyNotFound = errors.New("key not found")

// Store is an abstract key-value store with per-key expiry. It backs the
// login-attempt guard, password-reset codes and the cached analytics report.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
