// Package cache is the shared short-lived key/value store behind
// authorization codes and device codes. Every driver provides an atomic
// Take for single redemption and a compare-and-swap for state transitions.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMiss = errors.New("cache: miss")

	// ErrTTL is returned when a write is attempted with a non-positive TTL.
	ErrTTL = errors.New("cache: ttl must be positive")
)

type Cache interface {
	// Get returns the value under key or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Take atomically returns and deletes the value under key. Of any number
	// of concurrent callers at most one receives the value, the rest ErrMiss.
	Take(ctx context.Context, key string) ([]byte, error)

	// Swap replaces the value under key with next only when the current value
	// equals old. It reports whether the swap happened.
	Swap(ctx context.Context, key string, old, next []byte, ttl time.Duration) (bool, error)

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error
	Close() error
}

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

type Config struct {
	Driver string
	Redis  RedisConfig
}

// New builds the configured driver.
func New(cfg Config) (Cache, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverRedis:
		return NewRedis(cfg.Redis)
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}

// GetJSON decodes the value under key into out.
func GetJSON(ctx context.Context, c Cache, key string, out any) ([]byte, error) {
	raw, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return raw, json.Unmarshal(raw, out)
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, ttl)
}

// TakeJSON atomically removes the value under key and decodes it into out.
func TakeJSON(ctx context.Context, c Cache, key string, out any) error {
	raw, err := c.Take(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// SwapJSON encodes next and swaps it in when the stored bytes still equal
// old, which must be the raw value previously read.
func SwapJSON(ctx context.Context, c Cache, key string, old []byte, next any, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(next)
	if err != nil {
		return false, err
	}
	return c.Swap(ctx, key, old, raw, ttl)
}
