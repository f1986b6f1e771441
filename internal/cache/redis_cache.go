package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisReportCache struct {
	client *redis.Client
	prefix string
}

func NewRedisReportCache(addr string, password string, db int) *RedisReportCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisReportCache{client: client, prefix: "salesdesk:reports"}
}

func (c *RedisReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisReportCache) Close() error {
	return c.client.Close()
}

func (c *RedisReportCache) versionKey(storeID string) string {
	return fmt.Sprintf("%s:%s:version", c.prefix, storeID)
}

func (c *RedisReportCache) Version(ctx context.Context, storeID string) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey(storeID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (c *RedisReportCache) Bump(ctx context.Context, storeID string) error {
	return c.client.Incr(ctx, c.versionKey(storeID)).Err()
}

func (c *RedisReportCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.client.Get(ctx, c.prefix+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisReportCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+":"+key, payload, ttl).Err()
}
