package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// CallbackCache implements ports.CallbackCache using Redis. It is the fast
// path for duplicate gateway callback deliveries; the database remains the
// source of truth when the cache misses.
type CallbackCache struct {
	client *goredis.Client
	prefix string
}

// NewCallbackCache creates a new Redis-backed callback result cache.
func NewCallbackCache(client *goredis.Client) *CallbackCache {
	return &CallbackCache{
		client: client,
		prefix: "wallet:",
	}
}

// Get retrieves a cached callback result by key.
// Returns nil, nil if the key does not exist.
func (c *CallbackCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis callback cache get: %w", err)
	}
	return val, nil
}

// Set stores a callback result with TTL.
func (c *CallbackCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+key, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis callback cache set: %w", err)
	}
	return nil
}
