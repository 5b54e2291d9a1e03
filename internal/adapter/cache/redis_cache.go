package cache

import (
	"context"
	"time"

	"github.com/aq2208/gorder-settlement/internal/usecase"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func statusKey(orderNumber string) string { return "order:status:" + orderNumber }

func (r RedisCache) SetStatus(ctx context.Context, orderNumber string, status string) error {
	return r.rdb.Set(ctx, statusKey(orderNumber), status, r.ttl).Err()
}

func (r RedisCache) GetStatus(ctx context.Context, orderNumber string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, statusKey(orderNumber)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r RedisCache) DeleteStatus(ctx context.Context, orderNumber string) error {
	return r.rdb.Del(ctx, statusKey(orderNumber)).Err()
}

var _ usecase.OrderCache = (*RedisCache)(nil)
