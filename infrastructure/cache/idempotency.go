/*
Package cache Redis 幂等快速路径。

缓存只用于减少数据库查询，命中后仍由应用层读取订单；
未命中或 Redis 不可用时回落到持久化的 idempotency.Store。
*/
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ordercore/config"
	"ordercore/domain/idempotency"

	"github.com/redis/go-redis/v9"
)

type IdempotencyCache struct {
	client *redis.Client
	prefix string
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewIdempotencyCache(client *redis.Client, prefix string) *IdempotencyCache {
	if prefix == "" {
		prefix = "ordercore"
	}
	return &IdempotencyCache{client: client, prefix: prefix}
}

func (c *IdempotencyCache) key(idempotencyKey string) string {
	return fmt.Sprintf("%s:idempotency:%s", c.prefix, idempotencyKey)
}

func (c *IdempotencyCache) Get(ctx context.Context, key string) (string, bool, error) {
	orderID, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return orderID, true, nil
}

// Set keeps the mapping for ttl; callers pass what is left of the retention window.
func (c *IdempotencyCache) Set(ctx context.Context, key, orderID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, c.key(key), orderID, ttl).Err()
}

func (c *IdempotencyCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

var _ idempotency.Cache = (*IdempotencyCache)(nil)
