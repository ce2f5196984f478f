package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"veterinaria/backend/internal/domain"
)

type RedisAlertsCache struct {
	client *redis.Client
}

func NewRedisAlertsCache(addr string, password string, db int) *RedisAlertsCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisAlertsCache{client: client}
}

func (c *RedisAlertsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisAlertsCache) Close() error {
	return c.client.Close()
}

func alertsKey(companyID string) string {
	return "inventory_alerts:" + companyID
}

func (c *RedisAlertsCache) Get(ctx context.Context, companyID string) (*domain.InventoryAlerts, bool, error) {
	val, err := c.client.Get(ctx, alertsKey(companyID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var alerts domain.InventoryAlerts
	if err := json.Unmarshal([]byte(val), &alerts); err != nil {
		return nil, false, err
	}
	return &alerts, true, nil
}

func (c *RedisAlertsCache) Set(ctx context.Context, companyID string, value *domain.InventoryAlerts, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, alertsKey(companyID), payload, ttl).Err()
}

func (c *RedisAlertsCache) Invalidate(ctx context.Context, companyID string) error {
	return c.client.Del(ctx, alertsKey(companyID)).Err()
}
