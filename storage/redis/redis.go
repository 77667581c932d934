// Package redis provides a Redis implementation of the gomonetize.Storage
// interface.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mihaimyh/gomonetize/pkg/gomonetize"
)

// Storage implements gomonetize.Storage using Redis.
type Storage struct {
	client redis.UniversalClient
	config Config
}

// Config holds Redis storage configuration.
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "gomonetize:").
	KeyPrefix string

	// TTL is the expiration applied to stored keys (0 = no expiration).
	// Monetization state is small and long-lived, so the default is no
	// expiration.
	TTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "gomonetize:",
		TTL:       0,
	}
}

// New creates a new Redis storage adapter.
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring.
func New(client redis.UniversalClient, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "gomonetize:"
	}

	return &Storage{client: client, config: config}, nil
}

// Get implements gomonetize.Storage.
func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.config.KeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", gomonetize.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key: %w", err)
	}
	return value, nil
}

// Set implements gomonetize.Storage.
func (s *Storage) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.config.KeyPrefix+key, value, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// Delete implements gomonetize.Storage. Deleting an absent key is not an
// error.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.config.KeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}
