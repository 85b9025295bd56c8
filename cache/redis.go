package cache

import (
	"context"
	"errors"
	"time"

	"github.com/chaos-io/removebg/config"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "removebg:"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(cfg config.RedisConfig, ttl time.Duration) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // 缓存未命中
		}
		return nil, false, err
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, redisKeyPrefix+key, value, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
