package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/driftline/journey/pkg/scheduler"
)

// NewJobStore connects to Redis and returns the shared job store.
func NewJobStore(ctx context.Context, redisURL string) (*scheduler.RedisJobStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return scheduler.NewRedisJobStore(client), nil
}
