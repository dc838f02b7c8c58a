// Package cache provides a small TTL + LRU cache keyed by market ticker.
//
// The trading loop analyzes the same tickers every cycle; caching the
// last result within a short window avoids redundant recomputation and
// redundant upstream fetches. Entries expire after the cache TTL, and
// when the cache is full the least-recently-accessed entry is evicted.
// All methods are safe for concurrent use.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Config holds cache settings.
type Config struct {
	TTL      time.Duration // Entry lifetime from insertion
	Capacity int           // Max entries before LRU eviction
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Size    int
	Evicted int64
}

// HitRate returns the fraction of lookups served from cache.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry[V any] struct {
	key        string
	value      V
	insertedAt time.Time
}

// Cache is a TTL + LRU cache. The zero value is not usable; use New.
type Cache[V any] struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*list.Element
	order   *list.List // Front = most recently used
	stats   Stats

	now func() time.Time // Injectable for tests
}

// New creates a cache with the given TTL and capacity.
func New[V any](cfg Config) *Cache[V] {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	return &Cache[V]{
		cfg:     cfg,
		entries: make(map[string]*list.Element, cfg.Capacity),
		order:   list.New(),
		now:     time.Now,
	}
}

// Get returns the cached value for key if it is present and fresh.
// An expired entry is removed and reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V

	elem, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}

	e := elem.Value.(*entry[V])
	if c.now().Sub(e.insertedAt) >= c.cfg.TTL {
		c.removeLocked(elem)
		c.stats.Misses++
		return zero, false
	}

	c.order.MoveToFront(elem)
	c.stats.Hits++
	return e.value, true
}

// Put inserts or overwrites the value for key. Overwriting resets the
// entry's TTL. If the cache is over capacity the least-recently-used
// entries are evicted.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = value
		e.insertedAt = c.now()
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&entry[V]{
		key:        key,
		value:      value,
		insertedAt: c.now(),
	})
	c.entries[key] = elem

	for c.order.Len() > c.cfg.Capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		c.stats.Evicted++
	}
}

// Delete removes the entry for key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
}

// Len returns the current number of entries, including not-yet-collected
// expired ones.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.order.Len()
	return s
}

func (c *Cache[V]) removeLocked(elem *list.Element) {
	e := elem.Value.(*entry[V])
	delete(c.entries, e.key)
	c.order.Remove(elem)
}
