package finance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "finance:version"
	bumpChannel     = "finance.bump"
)

// Cache wraps Redis with a version counter so that one bump invalidates
// every cached finance aggregate at once. A nil client disables caching
// and every fetch falls through to its loader.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache generation, initialising it to 1 on
// first use.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	v, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

// BuildKey joins the parts with the current version so stale generations
// simply fall out of rotation.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	version, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	key := "finance"
	for _, p := range parts {
		key += ":" + p
	}
	return fmt.Sprintf("%s:v%d", key, version), nil
}

// FetchJSON reads a cached value into dest, calling loader on a miss and
// storing the result. Cache failures degrade to loader calls.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if c != nil && c.client != nil && key != "" {
		raw, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(raw, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}
	}

	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c != nil && c.client != nil && key != "" {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}

// Bump advances the cache generation and notifies subscribers.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	version, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, version).Err()
}

// Invalidate is the hook mutating services call after writes that change
// financial aggregates.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.Bump(ctx)
}
