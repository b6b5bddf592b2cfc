package payment

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenCache keeps the Daraja OAuth token in Redis so every replica
// shares one token instead of minting one per request.
type RedisTokenCache struct{ RDB *redis.Client }

// NewRedisTokenCache returns nil when rdb is nil, which disables caching.
func NewRedisTokenCache(rdb *redis.Client) TokenCache {
	if rdb == nil {
		return nil
	}
	return &RedisTokenCache{RDB: rdb}
}

func (c *RedisTokenCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.RDB.Get(ctx, key).Result()
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

func (c *RedisTokenCache) Set(ctx context.Context, key, token string, ttl time.Duration) {
	_ = c.RDB.Set(ctx, key, token, ttl).Err()
}
