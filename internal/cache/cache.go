// Package cache provides two small, concurrency-safe in-memory memoization
// structures shared across the application:
//
//   - TTL: a bounded map whose entries expire after a fixed duration. Expired
//     entries are invisible to readers even before they are evicted. When the
//     capacity is exceeded, the oldest entry (by insertion) is dropped first.
//   - LRU: a bounded map with least-recently-used eviction and no expiry.
//
// Both caches are advisory: a miss must always fall through to the
// authoritative computation. The library does no logging; callers decide
// what to record.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// now is a seam for tests; production code always uses time.Now.
var now = time.Now

// entry is a single TTL cache slot.
type entry[V any] struct {
	key       string
	value     V
	createdAt time.Time
}

// TTL is a capacity- and time-bounded cache keyed by string.
// The zero value is not usable; construct with NewTTL.
type TTL[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List // front = oldest insertion
}

// NewTTL constructs a TTL cache. Capacity values < 1 are coerced to 1.
func NewTTL[V any](capacity int, ttl time.Duration) *TTL[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &TTL[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the live value for key. Entries past their TTL are treated as
// absent and removed on the way out.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[V])
	if c.expired(e) {
		c.remove(el)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, resetting its TTL clock. Inserting beyond
// capacity evicts the oldest entry first.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
	c.insert(key, value)
}

// GetOrSet returns the live value for key if present; otherwise it stores
// value and returns it. The check and the insert happen under one lock, so
// concurrent callers for the same key observe exactly one winner
// (loaded=false). This is the atomic put-if-absent the dedup guard relies on.
func (c *TTL[V]) GetOrSet(key string, value V) (actual V, loaded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		if !c.expired(e) {
			return e.value, true
		}
		c.remove(el)
	}
	c.insert(key, value)
	return value, false
}

// Remove deletes key if present.
func (c *TTL[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// Len reports the number of stored entries, including any not-yet-evicted
// expired ones.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *TTL[V]) expired(e *entry[V]) bool {
	return c.ttl > 0 && now().Sub(e.createdAt) >= c.ttl
}

// insert assumes the lock is held and key is absent.
func (c *TTL[V]) insert(key string, value V) {
	// Make room: drop expired entries from the oldest end first, then the
	// oldest live entry if still over capacity.
	for c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.remove(oldest)
	}
	el := c.order.PushBack(&entry[V]{key: key, value: value, createdAt: now()})
	c.items[key] = el
}

// remove assumes the lock is held.
func (c *TTL[V]) remove(el *list.Element) {
	e := el.Value.(*entry[V])
	delete(c.items, e.key)
	c.order.Remove(el)
}

// lruEntry is a single LRU cache slot.
type lruEntry[V any] struct {
	key   string
	value V
}

// LRU is a capacity-bounded cache with least-recently-used eviction.
// The zero value is not usable; construct with NewLRU.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used
}

// NewLRU constructs an LRU cache. Capacity values < 1 are coerced to 1.
func NewLRU[V any](capacity int) *LRU[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[V]{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry[V]).value, true
}

// Set stores value under key, evicting the least recently used entry when
// the capacity is exceeded.
func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*lruEntry[V]).value = value
		c.order.MoveToFront(el)
		return
	}
	if c.order.Len() >= c.capacity {
		last := c.order.Back()
		if last != nil {
			delete(c.items, last.Value.(*lruEntry[V]).key)
			c.order.Remove(last)
		}
	}
	c.items[key] = c.order.PushFront(&lruEntry[V]{key: key, value: value})
}

// Len reports the number of stored entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
