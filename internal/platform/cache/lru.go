// Package cache provides the bounded key/value cache used inside one
// report-processing invocation. Instances are constructed fresh per
// invocation and discarded with it; staleness across invocations is ruled
// out by construction, not by TTL.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize bounds an invocation cache when no explicit size is given.
const DefaultSize = 1000

// Cache is a bounded LRU. Not safe for use across invocations; within an
// invocation the underlying LRU handles concurrent hop fan-out.
type Cache[K comparable, V any] struct {
	lru *lru.Cache[K, V]
}

// New builds a cache bounded at size entries, evicting least-recently-used.
func New[K comparable, V any](size int) *Cache[K, V] {
	if size <= 0 {
		size = DefaultSize
	}
	// lru.New only fails on a non-positive size, which is ruled out above.
	c, _ := lru.New[K, V](size)
	return &Cache[K, V]{lru: c}
}

// Get returns the cached value for key and whether it was present.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.lru.Get(key)
}

// Set stores value under key, evicting the least-recently-used entry when
// the bound is exceeded.
func (c *Cache[K, V]) Set(key K, value V) {
	c.lru.Add(key, value)
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}
