// File: utils/cache.go
package utils

import (
	"context"
	"log"
	"time"

	"cmsledger/config"

	"github.com/go-redis/redis/v8"
)

// CacheClient is the Redis client for the completion result cache.
var CacheClient *redis.Client

// InitCache initializes the Redis cache client (REDIS_CACHE_DB).
func InitCache() {
	CacheClient = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisCacheDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := CacheClient.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis (Cache): %v", err)
	}
}

// GetCacheClient returns the cache client, connecting on first use.
func GetCacheClient() *redis.Client {
	if CacheClient == nil {
		InitCache()
	}
	return CacheClient
}

// QueueRedisOptions returns the connection settings for the asynq queue DB.
func QueueRedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}
