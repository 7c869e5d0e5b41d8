package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache is a JSON entity cache backed by Redis. A nil *Cache is valid and
// behaves as a permanent miss, so callers don't branch on whether caching
// is configured.
type Cache struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	log       *zerolog.Logger
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr, namespace string, ttl time.Duration, logger *zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Cache{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
		log:       logger,
	}, nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// LobbyKey builds the cache key for a lobby.
func (c *Cache) LobbyKey(id int64) string {
	return c.key(fmt.Sprintf("lobby:%d", id))
}

func (c *Cache) key(suffix string) string {
	if c == nil || c.namespace == "" {
		return suffix
	}
	return c.namespace + ":" + suffix
}

// Get loads the value stored under key into dst. It reports whether the key
// was present. Decode failures count as misses; the stale entry is dropped.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		_ = c.client.Del(ctx, key).Err()
		return false, nil
	}

	return true, nil
}

// Set stores value under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys. Missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}
