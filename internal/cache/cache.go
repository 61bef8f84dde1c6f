package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = time.Hour
	}

	return &Cache{client: client, ttl: ttl}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks the connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Language Cache Operations

func languageKey(code string) string {
	return fmt.Sprintf("language:%s", strings.ToLower(strings.TrimSpace(code)))
}

// GetLanguageID returns a cached language id; ok is false on a cache miss
func (c *Cache) GetLanguageID(ctx context.Context, code string) (id int, ok bool, err error) {
	id, err = c.client.Get(ctx, languageKey(code)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil // Cache miss
		}
		return 0, false, fmt.Errorf("failed to get language from cache: %w", err)
	}
	return id, true, nil
}

// SetLanguageID caches a language id for the cache TTL
func (c *Cache) SetLanguageID(ctx context.Context, code string, id int) error {
	return c.client.Set(ctx, languageKey(code), id, c.ttl).Err()
}

// Rate Limiting Operations

// CheckRateLimit counts a hit against key and reports whether it is still
// within limit for the current window
func (c *Cache) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	rateLimitKey := fmt.Sprintf("ratelimit:%s", key)

	// Increment counter
	count, err := c.client.Incr(ctx, rateLimitKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	// Set expiry on first request
	if count == 1 {
		if err := c.client.Expire(ctx, rateLimitKey, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set expiry: %w", err)
		}
	}

	// Check if limit exceeded
	return count <= limit, nil
}

// ClearRateLimit forgets the hits counted against key
func (c *Cache) ClearRateLimit(ctx context.Context, key string) error {
	return c.client.Del(ctx, fmt.Sprintf("ratelimit:%s", key)).Err()
}
