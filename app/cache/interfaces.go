package cache

import (
	"context"
	"time"
)

// CacheInterface is the key/value store behind the canonical listing cache.
type CacheInterface interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Health(ctx context.Context) map[string]any
	Close() error
}
