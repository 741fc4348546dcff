package loginguard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/avmarkin/ledgersvc/internal/kvstore"
)

// ErrTooManyAttempts is returned when the failed-attempt counter for an email
// has reached the configured limit.
var ErrTooManyAttempts = errors.New("too many failed login attempts")

// Guard rate-limits login attempts per email on top of a TTL key-value store.
type Guard struct {
	store    kvstore.Store
	maxTries int
	ttl      time.Duration
}

type Option func(g *Guard)

func WithMaxTries(maxTries int) Option {
	return func(g *Guard) {
		g.maxTries = maxTries
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(g *Guard) {
		g.ttl = ttl
	}
}

func NewGuard(store kvstore.Store, opts ...Option) *Guard {
	g := &Guard{
		store:    store,
		maxTries: 5,
		ttl:      15 * time.Minute,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func attemptsKey(email string) string {
	return "login_attempts:" + email
}

// Check fails with ErrTooManyAttempts when the limit for the email is reached.
// Call before verifying credentials.
func (g *Guard) Check(ctx context.Context, email string) error {
	value, err := g.store.Get(ctx, attemptsKey(email))
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil
		}

		return fmt.Errorf("store.Get: %w", err)
	}

	attempts, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("strconv.Atoi: %w", err)
	}

	if attempts >= g.maxTries {
		return ErrTooManyAttempts
	}

	return nil
}

// Fail records one failed attempt for the email. The counter expires after
// the configured TTL.
func (g *Guard) Fail(ctx context.Context, email string) error {
	key := attemptsKey(email)

	attempts := 0

	value, err := g.store.Get(ctx, key)
	if err != nil && !errors.Is(err, kvstore.ErrKeyNotFound) {
		return fmt.Errorf("store.Get: %w", err)
	}

	if err == nil {
		attempts, err = strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("strconv.Atoi: %w", err)
		}
	}

	if err := g.store.Set(ctx, key, strconv.Itoa(attempts+1), g.ttl); err != nil {
		return fmt.Errorf("store.Set: %w", err)
	}

	return nil
}

// Reset clears the attempt counter after a successful login.
func (g *Guard) Reset(ctx context.Context, email string) error {
	if err := g.store.Delete(ctx, attemptsKey(email)); err != nil {
		return fmt.Errorf("store.Delete: %w", err)
	}

	return nil
}
