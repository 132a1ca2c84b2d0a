package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/yoockh/yoochat/internal/utils"
)

const keyPrefix = "yoochat:"

// RedisCache keeps blobs as plain Redis strings without expiry.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, data []byte) error {
	return c.rdb.Set(ctx, keyPrefix+key, data, 0).Err()
}
