// Package querycache holds the bounded result and page caches of the query executor.
package querycache

import (
	"container/list"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache result labels.
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultEvict = "evict"
)

type entry[K comparable, V any] struct {
	key   K
	value V
}

// FIFO is a bounded map that evicts strictly by insertion order.
// Reads never change eviction order.
type FIFO[K comparable, V any] struct {
	mu       sync.Mutex
	name     string
	capacity int
	order    *list.List
	items    map[K]*list.Element
	total    *prometheus.CounterVec
}

// NewFIFO creates a cache holding at most capacity entries (minimum 1).
// total is a counter vec with labels "cache" and "result" ("hit"/"miss"/"evict"); may be nil.
func NewFIFO[K comparable, V any](name string, capacity int, total *prometheus.CounterVec) *FIFO[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &FIFO[K, V]{
		name:     name,
		capacity: capacity,
		order:    list.New(),
		items:    make(map[K]*list.Element, capacity),
		total:    total,
	}
}

// Get returns the value stored under key.
func (c *FIFO[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	el, ok := c.items[key]
	var v V
	if ok {
		v = el.Value.(*entry[K, V]).value
	}
	c.mu.Unlock()

	if ok {
		c.inc(resultHit)
	} else {
		c.inc(resultMiss)
	}
	return v, ok
}

// Peek is Get without counting a hit or miss.
func (c *FIFO[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var v V
	el, ok := c.items[key]
	if ok {
		v = el.Value.(*entry[K, V]).value
	}
	return v, ok
}

// Contains reports whether key is present without counting a hit or miss.
func (c *FIFO[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Put stores value under key. An existing key is updated in place and keeps
// its position; a new key at capacity evicts the oldest entry first.
// It reports whether an entry was evicted.
func (c *FIFO[K, V]) Put(key K, value V) bool {
	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K, V]).value = value
		c.mu.Unlock()
		return false
	}

	evicted := false
	if c.order.Len() >= c.capacity {
		if oldest := c.order.Front(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*entry[K, V]).key)
			evicted = true
		}
	}
	c.items[key] = c.order.PushBack(&entry[K, V]{key: key, value: value})
	c.mu.Unlock()

	if evicted {
		c.inc(resultEvict)
	}
	return evicted
}

// Update applies fn to the value under key in place and reports whether key was present.
func (c *FIFO[K, V]) Update(key K, fn func(v *V)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false
	}
	fn(&el.Value.(*entry[K, V]).value)
	return true
}

// Remove deletes key and reports whether it was present.
func (c *FIFO[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.order.Remove(el)
	delete(c.items, key)
	return true
}

// RemoveFunc deletes every entry for which fn returns true and returns how many were removed.
func (c *FIFO[K, V]) RemoveFunc(fn func(key K, value V) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry[K, V])
		if fn(e.key, e.value) {
			c.order.Remove(el)
			delete(c.items, e.key)
			removed++
		}
		el = next
	}
	return removed
}

// Len returns the number of entries.
func (c *FIFO[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns the keys oldest first.
func (c *FIFO[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]K, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return keys
}

// Clear drops every entry.
func (c *FIFO[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	clear(c.items)
}

func (c *FIFO[K, V]) inc(result string) {
	if c.total != nil {
		c.total.WithLabelValues(c.name, result).Inc()
	}
}
