package ports

import (
	"context"
	"time"
)

// Cache is the generic byte-value cache port backing the engine's two-tier
// grounding cache (axis cache + per-concept grounding cache, spec.md §4.4)
// and the job-event hot views. Grounded on backend's
// internal/infrastructure/cache/memory_cache.go Get/Set/Delete/Clear
// shape; the production adapter is Redis (redis/go-redis/v9), fulfilling
// spec.md §6.3's "hot view and grounding cache" requirement.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context, pattern string) error
}
