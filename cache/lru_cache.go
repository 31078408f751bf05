// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
)

var errInvalidSize = errors.New("cache size must be positive")

// LRUCache is a bounded cache for immutable data, such as delivered message
// keys or sealed blocks.
type LRUCache[K comparable, V any] struct {
	cache *lru.Cache[K, V]
}

func NewLRUCache[K comparable, V any](size int) (*LRUCache[K, V], error) {
	if size <= 0 {
		return nil, errInvalidSize
	}
	c, err := lru.New[K, V](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache[K, V]{cache: c}, nil
}

// Get returns the cached value for key, fetching and caching it on a miss.
// If [invalidate] is true the cached value is dropped before fetching.
func (c *LRUCache[K, V]) Get(key K, fetchFunc func(K) (V, error), invalidate bool) (V, error) {
	if invalidate {
		c.cache.Remove(key)
	} else if value, ok := c.cache.Get(key); ok {
		return value, nil
	}

	value, err := fetchFunc(key)
	if err != nil {
		var zero V
		return zero, err
	}
	c.cache.Add(key, value)
	return value, nil
}

// Add stores value under key.
func (c *LRUCache[K, V]) Add(key K, value V) {
	c.cache.Add(key, value)
}

// Contains reports whether key is cached without touching its recency.
func (c *LRUCache[K, V]) Contains(key K) bool {
	return c.cache.Contains(key)
}

// Len returns the number of cached entries.
func (c *LRUCache[K, V]) Len() int {
	return c.cache.Len()
}
