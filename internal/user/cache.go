package user

import (
	"context"
	"fmt"

	"chainrelay/internal/platform/cache"
	"chainrelay/internal/platform/metrics"
	"chainrelay/pkg/domain"
)

// Cache memoizes user lookups for one processing invocation. It is the
// specialized invocation-cache variant: besides get/set it supports bulk
// population from a batch read, keyed by the record's contact hash.
type Cache struct {
	store   Store
	lru     *cache.Cache[domain.ContactHash, User]
	metrics *metrics.Metrics
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// NewCache builds a fresh per-invocation cache over store.
func NewCache(store Store, size int, opts ...CacheOption) *Cache {
	c := &Cache{store: store, lru: cache.New[domain.ContactHash, User](size)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) count(outcome string) {
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues("user", outcome).Inc()
	}
}

// PopulateFromBatch bulk-reads the given hashes from the store and seeds
// the cache, skipping hashes already cached.
func (c *Cache) PopulateFromBatch(ctx context.Context, hashes []domain.ContactHash) error {
	missing := make([]domain.ContactHash, 0, len(hashes))
	for _, h := range hashes {
		if _, ok := c.lru.Get(h); !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	users, err := c.store.FindByContactHashes(ctx, missing)
	if err != nil {
		return fmt.Errorf("populate user cache: %w", err)
	}
	for _, u := range users {
		c.lru.Set(u.ContactHash, u)
	}
	return nil
}

// Get returns the cached user record, falling back to a single store read
// on miss. The bool result reports whether a record exists at all.
func (c *Cache) Get(ctx context.Context, h domain.ContactHash) (User, bool, error) {
	if u, ok := c.lru.Get(h); ok {
		c.count("hit")
		return u, true, nil
	}
	c.count("miss")
	users, err := c.store.FindByContactHashes(ctx, []domain.ContactHash{h})
	if err != nil {
		return User{}, false, fmt.Errorf("lookup user: %w", err)
	}
	if len(users) == 0 {
		return User{}, false, nil
	}
	c.lru.Set(h, users[0])
	return users[0], true, nil
}
