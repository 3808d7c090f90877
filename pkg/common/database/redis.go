package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mediconnect/platform/pkg/common/config"
	"github.com/mediconnect/platform/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// GetRedis returns nil when REDIS_HOST is unset; callers treat that as
// "caching disabled".
func GetRedis(cfg *config.Config) *redis.Client {
	if !cfg.RedisEnabled() {
		return nil
	}

	redisOnce.Do(func() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Log.WithError(err).Warn("Redis unreachable, directory cache will fall through to PostgreSQL")
		} else {
			logger.Log.Info("Connected to Redis")
		}
	})

	return redisClient
}

func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
