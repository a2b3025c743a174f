// Package redisbus connects the conversion service to a Redis message bus: requests
// arrive on a stream read through a consumer group, outcomes and rate changes leave
// over pub/sub channels.
package redisbus

import (
	"context"
	"fmt"

	"fxcalc/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewClient creates a client and pings it to verify connectivity.
func NewClient(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}
