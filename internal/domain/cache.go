package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU for single-node deployments,
// with Redis layered behind it for clusters.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetRules retrieves the cached enabled rule set.
	// Returns nil, nil on a miss.
	GetRules(ctx context.Context) ([]*Rule, error)

	// SetRules caches the enabled rule set used by the scoring pipeline.
	SetRules(ctx context.Context, rules []*Rule, ttl time.Duration) error

	// InvalidateRules drops the cached rule set. Called after any rule
	// mutation so the next evaluation sees fresh rules.
	InvalidateRules(ctx context.Context) error

	// IncrementCounter atomically increments a counter and returns new value.
	// Used for per-account activity tracking.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings
	LocalMaxSize int
	LocalTTL     time.Duration

	// RuleSetTTL bounds how stale the cached rule set may get.
	RuleSetTTL time.Duration

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
