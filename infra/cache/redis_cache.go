// Package cache provides shared rate table caches.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/fxdate/pkg/exchange/core"
	"github.com/amirasaad/fxdate/pkg/provider/exchange"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces rate table keys.
const DefaultPrefix = "fxdate:rates:"

// RedisRateCache stores rate tables as JSON so several processes can share
// fetched tables.
type RedisRateCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisRateCache wraps client. A zero ttl keeps entries until evicted by
// Redis.
func NewRedisRateCache(
	client *redis.Client,
	prefix string,
	ttl time.Duration,
	logger *slog.Logger,
) *RedisRateCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRateCache{client: client, prefix: prefix, ttl: ttl, logger: logger.With("cache", "redis")}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func (r *RedisRateCache) key(key core.CacheKey) string {
	return r.prefix + key.String()
}

func (r *RedisRateCache) Get(ctx context.Context, key core.CacheKey) (*core.RateTable, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("Redis cache miss", "key", key.String())
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Redis cache get error", "key", key.String(), "error", err)
		return nil, err
	}
	var table core.RateTable
	if err := json.Unmarshal(val, &table); err != nil {
		r.logger.Error("Redis cache unmarshal error", "key", key.String(), "error", err)
		return nil, err
	}
	r.logger.Debug("Redis cache hit", "key", key.String())
	return &table, nil
}

func (r *RedisRateCache) Put(ctx context.Context, key core.CacheKey, table *core.RateTable) error {
	if table == nil {
		return nil
	}
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("marshal rate table: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		r.logger.Error("Redis cache set error", "key", key.String(), "error", err)
		return err
	}
	r.logger.Debug("Redis cache set", "key", key.String(), "ttl", r.ttl)
	return nil
}

// Delete removes one table.
func (r *RedisRateCache) Delete(ctx context.Context, key core.CacheKey) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

var _ exchange.Cache = (*RedisRateCache)(nil)
