package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/linklytics/gateway/internal/metrics"
	"github.com/linklytics/gateway/internal/model"
)

// LinkStore is the storage the resolution cache reads through to.
type LinkStore interface {
	GetActiveBySlug(ctx context.Context, domainID uuid.UUID, slug string) (*model.Link, error)
}

// CachedLinkRepository resolves (domain, slug) pairs through a Redis
// cache-aside layer. Cache failures degrade to storage reads; a nil cache
// client disables caching entirely. Misses are never cached, so a miss
// always reaches storage.
type CachedLinkRepository struct {
	db      LinkStore
	cache   *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
}

// NewCachedLinkRepository wraps a link store with the resolution cache.
// m may be nil to skip hit/miss counting.
func NewCachedLinkRepository(db LinkStore, cache *redis.Client, ttl time.Duration, m *metrics.Metrics) *CachedLinkRepository {
	return &CachedLinkRepository{db: db, cache: cache, ttl: ttl, metrics: m}
}

func cacheKey(domainID uuid.UUID, slug string) string {
	return fmt.Sprintf("link:%s:%s", domainID, slug)
}

// ResolveActive returns the active link snapshot for (domain, slug),
// populating the cache on a storage hit.
func (r *CachedLinkRepository) ResolveActive(ctx context.Context, domainID uuid.UUID, slug string) (*model.Link, error) {
	key := cacheKey(domainID, slug)

	// Cache errors (including unavailability) degrade to a storage read.
	if r.cache != nil {
		cached, err := r.cache.Get(ctx, key).Result()
		if err == nil {
			var link model.Link
			if err := json.Unmarshal([]byte(cached), &link); err == nil {
				r.metrics.CountCacheHit(ctx)
				return &link, nil
			}
			// Corrupt entry; drop it and fall through to storage.
			r.cache.Del(ctx, key)
		}
	}
	r.metrics.CountCacheMiss(ctx)

	// Collapse concurrent misses for the same key into one storage lookup.
	v, err, _ := r.group.Do(key, func() (any, error) {
		link, err := r.db.GetActiveBySlug(ctx, domainID, slug)
		if err != nil {
			return nil, err
		}
		if r.cache != nil {
			if data, merr := json.Marshal(link); merr == nil {
				r.cache.Set(ctx, key, data, r.ttl)
			}
		}
		return link, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Link), nil
}

// Invalidate drops the cache entry for (domain, slug). Callers invoke this
// on every mutation of the underlying link.
func (r *CachedLinkRepository) Invalidate(ctx context.Context, domainID uuid.UUID, slug string) {
	if r.cache == nil {
		return
	}
	r.cache.Del(ctx, cacheKey(domainID, slug))
}
