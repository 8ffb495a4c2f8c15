package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/fractional-comb/app/listing"
)

const DefaultCanonicalTTL = 7 * 24 * time.Hour

type Canonicalizer interface {
	Run(raw listing.RawRecord) listing.CanonicalListing
}

// CanonicalCache memoizes canonicalization per raw record content. The
// observation time is not part of the key, so a listing seen unchanged on
// consecutive runs is classified once. Store errors fall back to computing
// the listing directly. A nil store disables caching.
type CanonicalCache struct {
	store     CacheInterface
	canon     Canonicalizer
	namespace string
	ttl       time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func NewCanonicalCache(store CacheInterface, canon Canonicalizer, namespace string, ttl time.Duration) *CanonicalCache {
	if ttl <= 0 {
		ttl = DefaultCanonicalTTL
	}
	return &CanonicalCache{
		store:     store,
		canon:     canon,
		namespace: namespace,
		ttl:       ttl,
	}
}

func (c *CanonicalCache) Run(ctx context.Context, raw listing.RawRecord) listing.CanonicalListing {
	if c.store == nil {
		return c.canon.Run(raw)
	}

	key, err := c.Key(raw)
	if err != nil {
		return c.canon.Run(raw)
	}

	if data, err := c.store.Get(ctx, key); err != nil {
		slog.Debug("Canonical cache read failed", "key", key, "error", err)
	} else if data != "" {
		var cached listing.CanonicalListing
		if err := json.Unmarshal([]byte(data), &cached); err == nil {
			c.hits.Add(1)
			cached.ObservedAt = raw.ObservedAt.UTC()
			return cached
		}
		_ = c.store.Delete(ctx, key)
	}

	c.misses.Add(1)
	out := c.canon.Run(raw)
	if err := c.store.Set(ctx, key, out, c.ttl); err != nil {
		slog.Debug("Canonical cache write failed", "key", key, "error", err)
	}
	return out
}

// RunAll canonicalizes a batch, preserving order.
func (c *CanonicalCache) RunAll(ctx context.Context, raws []listing.RawRecord) []listing.CanonicalListing {
	out := make([]listing.CanonicalListing, len(raws))
	for i, raw := range raws {
		out[i] = c.Run(ctx, raw)
	}
	return out
}

// Key hashes the raw record without its observation time.
func (c *CanonicalCache) Key(raw listing.RawRecord) (string, error) {
	raw.ObservedAt = time.Time{}
	raw.DatePosted = raw.DatePosted.UTC()

	data, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("failed to encode raw record: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("canonical:%s:%x", c.namespace, sum[:16]), nil
}

func (c *CanonicalCache) Stats() (int64, int64) {
	return c.hits.Load(), c.misses.Load()
}
