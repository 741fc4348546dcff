package rediskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/avmarkin/ledgersvc/internal/kvstore"
)

var _ kvstore.Store = (*Store)(nil)

type Store struct {
	client *redis.Client
}

type Config struct {
	password string
	db       int
}

type Option func(c *Config)

func WithPassword(password string) Option {
	return func(c *Config) {
		c.password = password
	}
}

func WithDB(db int) Option {
	return func(c *Config) {
		c.db = db
	}
}

func NewStore(addr string, opts ...Option) (*Store, error) {
	cfg := &Config{}

	for _, opt := range opts {
		opt(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.password,
		DB:       cfg.db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("client.Ping: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", kvstore.ErrKeyNotFound
		}

		return "", fmt.Errorf("client.Get: %w", err)
	}

	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("client.Set: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("client.Del: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("client.Close: %w", err)
	}

	return nil
}
