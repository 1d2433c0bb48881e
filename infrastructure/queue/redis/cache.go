package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/groundgraph/engine/application/ports"
)

// Cache implements ports.Cache over a single Redis key space, used for both
// the polarity axis cache and the per-concept grounding cache (spec.md
// §4.4, §6.3).
type Cache struct {
	client *Client
}

func NewCache(client *Client) *Cache { return &Cache{client: client} }

var _ ports.Cache = (*Cache)(nil)

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.rdb.Del(ctx, key).Err()
}

// Clear scans for keys matching pattern and deletes them in batches,
// mirroring memory_cache.go's Clear wildcard semantics but against Redis's
// own glob-style SCAN MATCH instead of the teacher's hand-rolled matcher.
func (c *Cache) Clear(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
