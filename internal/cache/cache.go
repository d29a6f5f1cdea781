// Package cache provides the small TTL caches behind the dashboard
// aggregates, so an open dashboard does not re-run the summary queries on
// every partial load. Entries expire on their own and are dropped
// explicitly when a label changes the underlying data.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value   T
	addedAt time.Time
}

// TTL is a bounded key-value cache whose entries expire after a fixed
// duration. Reading an expired entry misses and drops it. Safe for
// concurrent use.
type TTL[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

func NewTTL[T any](maxSize int, ttl time.Duration) *TTL[T] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &TTL[T]{
		entries: make(map[string]entry[T]),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value when present and fresh.
func (c *TTL[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.addedAt) >= c.ttl {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Set stores a value, evicting the oldest entry when the cache is full.
func (c *TTL[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldestAt time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.addedAt.Before(oldestAt) {
				oldestKey, oldestAt = k, e.addedAt
			}
		}
		delete(c.entries, oldestKey)
	}
	c.entries[key] = entry[T]{value: value, addedAt: c.now()}
}

// Delete drops a key.
func (c *TTL[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Purge drops every expired entry.
func (c *TTL[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if c.now().Sub(e.addedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *TTL[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
