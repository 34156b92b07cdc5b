package payment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cmsledger/models"
	"cmsledger/utils"

	"github.com/go-redis/redis/v8"
)

// RedisCompletionCache keeps completion aggregates so callback replays skip the store.
type RedisCompletionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCompletionCache(client *redis.Client, ttl time.Duration) *RedisCompletionCache {
	return &RedisCompletionCache{client: client, ttl: ttl}
}

func (c *RedisCompletionCache) Get(ctx context.Context, orderID string) (*models.CompletionResult, bool, error) {
	data, err := c.client.Get(ctx, utils.CompletionCachePrefix+orderID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var result models.CompletionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, err
	}
	return &result, true, nil
}

func (c *RedisCompletionCache) Set(ctx context.Context, orderID string, result *models.CompletionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, utils.CompletionCachePrefix+orderID, data, c.ttl).Err()
}
