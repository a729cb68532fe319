// ===========================================
// Package database - Redis Connection
// ===========================================
// Redis backs three things:
// 1. Cache-aside copies of links (read on every redirect)
// 2. Per-client request counters for rate limiting
// 3. Per-user daily link-creation quotas for the plan limiter
//
// Cache misses are not errors. Callers treat any Redis failure as
// "no cache" and fall through to PostgreSQL.
// ===========================================

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/user/linkpulse/internal/config"
)

// RedisDB wraps the Redis client with application-specific methods.
type RedisDB struct {
	Client   *redis.Client
	CacheTTL time.Duration
}

// NewRedisDB creates a new Redis connection.
// It validates the connection before returning.
func NewRedisDB(ctx context.Context, cfg config.RedisConfig) (*RedisDB, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Only override what the URL did not already set.
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opt.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opt.MinIdleConns = cfg.MinIdleConns
	}

	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisDB{
		Client:   client,
		CacheTTL: cfg.CacheTTL,
	}, nil
}

// Close gracefully shuts down the Redis connection.
func (r *RedisDB) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Health checks if Redis is responsive.
func (r *RedisDB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.Client.Ping(ctx).Err()
}

// ===========================================
// Key Builders
// ===========================================

// LinkCacheKey is the cache key for a link.
// Pattern: "link:{shortCode}"
func LinkCacheKey(shortCode string) string {
	return fmt.Sprintf("link:%s", shortCode)
}

// RateLimitKey generates a key for rate limiting.
// Pattern: "ratelimit:{identifier}:{minute}"
func RateLimitKey(identifier string, window time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", identifier, window.Unix()/60)
}

// QuotaKey generates the daily link-creation counter key for a subject
// (a user id, or "ip:<addr>" for anonymous callers).
// Pattern: "linkquota:{subject}:{yyyymmdd}"
func QuotaKey(subject string, day time.Time) string {
	return fmt.Sprintf("linkquota:%s:%s", subject, day.Format("20060102"))
}

// ===========================================
// Cache Operations
// ===========================================

// Get retrieves a cached value by key.
// Returns nil, nil on a cache miss.
func (r *RedisDB) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return result, nil
}

// SetWithTTL stores a value with a custom TTL.
func (r *RedisDB) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.Client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete removes a key from the cache.
func (r *RedisDB) Delete(ctx context.Context, key string) error {
	if err := r.Client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// GetJSON retrieves and unmarshals a JSON value.
// The boolean is false on a cache miss.
func (r *RedisDB) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := r.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// SetJSON marshals and stores a value as JSON.
func (r *RedisDB) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return r.SetWithTTL(ctx, key, data, ttl)
}

// SetJSONIfAbsent stores value only when key is unset (SET NX).
// It reports whether the value was written.
func (r *RedisDB) SetJSONIfAbsent(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal value: %w", err)
	}
	written, err := r.Client.SetNX(ctx, key, data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return written, nil
}

// ===========================================
// Counter Operations
// ===========================================
// Fixed-window counters: INCR the key and set the expiry on the
// first hit of the window. Used for rate limits and plan quotas.

// IncrementCounter increments a windowed counter and returns the new count.
func (r *RedisDB) IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("counter incr failed: %w", err)
	}

	if count == 1 {
		if err := r.Client.Expire(ctx, key, window).Err(); err != nil {
			return count, fmt.Errorf("counter expire failed: %w", err)
		}
	}

	return count, nil
}

// DecrementCounter undoes one IncrementCounter, used when the counted
// operation is rejected afterwards.
func (r *RedisDB) DecrementCounter(ctx context.Context, key string) error {
	if err := r.Client.Decr(ctx, key).Err(); err != nil {
		return fmt.Errorf("counter decr failed: %w", err)
	}
	return nil
}
