// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package cache provides a read-through LRU for ledger queries.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// ReadThrough caches fetched values by key. Badge records only change on
// invalidation, so callers invalidate the affected key and otherwise serve
// reads from the cache.
type ReadThrough[K comparable, V any] struct {
	cache *lru.Cache
	fetch func(K) (V, error)
}

// NewReadThrough creates a cache of the given size over the fetch function.
func NewReadThrough[K comparable, V any](size int, fetch func(K) (V, error)) (*ReadThrough[K, V], error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &ReadThrough[K, V]{
		cache: c,
		fetch: fetch,
	}, nil
}

// Get returns the cached value for the key, fetching and caching it on a
// miss. Fetch errors are returned without caching.
func (c *ReadThrough[K, V]) Get(key K) (V, error) {
	if value, ok := c.cache.Get(key); ok {
		return value.(V), nil
	}

	value, err := c.fetch(key)
	if err != nil {
		var zero V
		return zero, err
	}

	c.cache.Add(key, value)
	return value, nil
}

// Invalidate drops the cached value for the key.
func (c *ReadThrough[K, V]) Invalidate(key K) {
	c.cache.Remove(key)
}

// Len returns the number of cached entries.
func (c *ReadThrough[K, V]) Len() int {
	return c.cache.Len()
}
