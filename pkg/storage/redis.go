package storage

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/knowted/knowted/pkg/config"
)

// ConnectRedis opens and verifies the Redis client used by the rate
// limiter. Returns nil when Redis is disabled in the configuration.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}
