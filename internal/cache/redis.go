package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	defaultKeyPrefix = "adspy:search:"
	scanBatch        = 100
)

// RedisCache stores entries in Redis so several server instances can share
// search results.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache wraps an existing client. A zero ttl uses DefaultTTL and a
// nil clock uses time.Now.
func NewRedisCache(client *redis.Client, ttl time.Duration, now func() time.Time) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &RedisCache{
		client: client,
		prefix: defaultKeyPrefix,
		ttl:    ttl,
		now:    now,
	}
}

// Ping checks connectivity to the Redis server.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]models.Ad, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		logrus.Warnf("Discarding corrupt cache entry %s: %v", key, err)
		c.client.Del(ctx, c.prefix+key)
		return nil, false, nil
	}

	if !e.fresh(c.now(), c.ttl) {
		return nil, false, nil
	}

	return e.Ads, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, ads []models.Ad) error {
	data, err := json.Marshal(entry{StoredAt: c.now(), Ads: ads})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	var cursor uint64
	removed := 0

	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
			removed += len(keys)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	logrus.Debugf("Cleared %d cache entries", removed)
	return nil
}
