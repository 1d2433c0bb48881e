// Package redis backs the Cache port and the job-event bus with
// redis/go-redis/v9, grounded on backend's
// internal/infrastructure/cache/memory_cache.go Get/Set/Delete/Clear shape
// for the cache half and on the Redis pub/sub idiom used throughout the
// example pack's messaging packages for the event-bus half.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config configures the shared Redis connection (spec.md §6.3 hot view and
// grounding cache, §4.7 job event fan-out).
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps a *redis.Client shared by Cache and EventBus.
type Client struct {
	rdb *redis.Client
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error { return c.rdb.Close() }
