package memkv

import (
	"context"
	"sync"
	"time"

	"github.com/avmarkin/ledgersvc/internal/kvstore"
)

var _ kvstore.Store = (*Store)(nil)

type entry struct {
	value     string
	expiresAt time.Time
}

// Store is an in-process kvstore.Store with lazy expiry. Used when no Redis
// address is configured and in tests.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

type Option func(s *Store)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		return "", kvstore.ErrKeyNotFound
	}

	if !ent.expiresAt.IsZero() && s.now().After(ent.expiresAt) {
		delete(s.entries, key)

		return "", kvstore.ErrKeyNotFound
	}

	return ent.value, nil
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent := entry{value: value}
	if ttl > 0 {
		ent.expiresAt = s.now().Add(ttl)
	}

	s.entries[key] = ent

	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)

	return nil
}

func (s *Store) Close() error {
	return nil
}
