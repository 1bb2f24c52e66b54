// Package cache provides a small bounded in-memory map with per-entry
// expiry. It backs the chat service's short-lived working state: pending
// prompts, sent-response links, removal memos and per-channel compose flags.
package cache

import (
	"sync"
	"time"
)

type item[V any] struct {
	value   V
	expires time.Time
}

// TTL is a concurrency-safe map whose entries expire after a fixed duration.
// When the map is full, inserting evicts expired entries first and then the
// entry closest to expiry. A zero ttl means entries never expire on their
// own and eviction picks an arbitrary entry.
type TTL[K comparable, V any] struct {
	mu       sync.Mutex
	items    map[K]item[V]
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// NewTTL builds a cache holding at most capacity entries, each living for
// ttl. A capacity of 0 means unbounded.
func NewTTL[K comparable, V any](capacity int, ttl time.Duration) *TTL[K, V] {
	return &TTL[K, V]{
		items:    make(map[K]item[V]),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
}

// Get returns the live value for key.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok || c.expired(it) {
		var zero V
		return zero, false
	}
	return it.value, true
}

// Set stores value under key, refreshing its expiry.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; !ok && c.capacity > 0 && len(c.items) >= c.capacity {
		c.evictLocked()
	}
	var expires time.Time
	if c.ttl > 0 {
		expires = c.now().Add(c.ttl)
	}
	c.items[key] = item[V]{value: value, expires: expires}
}

// Delete removes key if present.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len reports the number of live entries.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, it := range c.items {
		if !c.expired(it) {
			n++
		}
	}
	return n
}

// Keys returns the keys of all live entries, in no particular order.
func (c *TTL[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.items))
	for k, it := range c.items {
		if !c.expired(it) {
			keys = append(keys, k)
		}
	}
	return keys
}

// FindKey returns the first key whose value satisfies match. Used for
// reverse lookups over small maps.
func (c *TTL[K, V]) FindKey(match func(V) bool) (K, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, it := range c.items {
		if !c.expired(it) && match(it.value) {
			return k, true
		}
	}
	var zero K
	return zero, false
}

// Sweep drops every expired entry and reports how many were removed.
func (c *TTL[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, it := range c.items {
		if c.expired(it) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

func (c *TTL[K, V]) expired(it item[V]) bool {
	return !it.expires.IsZero() && !c.now().Before(it.expires)
}

// evictLocked frees one slot. Callers hold the lock.
func (c *TTL[K, V]) evictLocked() {
	var victim K
	var found bool
	var soonest time.Time
	for k, it := range c.items {
		if c.expired(it) {
			delete(c.items, k)
			return
		}
		if !found || it.expires.Before(soonest) {
			victim, soonest, found = k, it.expires, true
		}
	}
	if found {
		delete(c.items, victim)
	}
}
