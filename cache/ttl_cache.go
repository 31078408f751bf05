// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type ttlEntry[V any] struct {
	value   V
	expires time.Time
}

// TTLCache caches values that go stale, such as the height of a remote chain.
// Concurrent fetches of the same key are collapsed into one.
type TTLCache[K comparable, V any] struct {
	ttl     time.Duration
	now     func() time.Time
	lock    sync.RWMutex
	data    map[K]ttlEntry[V]
	sfGroup singleflight.Group
}

func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		ttl:  ttl,
		now:  time.Now,
		data: make(map[K]ttlEntry[V]),
	}
}

// Get returns the value for key if it has not expired, otherwise fetches it.
// If [invalidate] is true the cached value is dropped first so that no caller
// reads it while the refetch is in flight.
func (c *TTLCache[K, V]) Get(key K, fetchFunc func(K) (V, error), invalidate bool) (V, error) {
	if invalidate {
		c.Invalidate(key)
	} else {
		c.lock.RLock()
		entry, ok := c.data[key]
		c.lock.RUnlock()
		if ok && c.now().Before(entry.expires) {
			return entry.value, nil
		}
	}

	v, err, _ := c.sfGroup.Do(keyToString(key), func() (interface{}, error) {
		value, err := fetchFunc(key)
		if err != nil {
			return nil, err
		}
		c.lock.Lock()
		c.data[key] = ttlEntry[V]{value: value, expires: c.now().Add(c.ttl)}
		c.lock.Unlock()
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Invalidate drops the cached value for key.
func (c *TTLCache[K, V]) Invalidate(key K) {
	c.lock.Lock()
	delete(c.data, key)
	c.lock.Unlock()
}

// keyToString supports both fmt.Stringer and primitive keys.
func keyToString[K comparable](key K) string {
	if s, ok := any(key).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", key)
}
