package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	platformredis "normative/internal/platform/redis"
)

// RedisCache fronts the resolve endpoint with Redis. Cache failures are
// logged and treated as misses; the endpoint must keep working when Redis is
// down.
type RedisCache struct {
	client *platformredis.Client
	logger *slog.Logger
}

func NewRedisCache(client *platformredis.Client, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.client.Client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
}

// NoopCache is the pass-through used when Redis is not configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (string, bool)          { return "", false }
func (NoopCache) Set(context.Context, string, string, time.Duration) {}
