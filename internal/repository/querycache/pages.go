package querycache

import (
	"slices"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/imgdex/internal/domain/search/page"
)

// PageKey identifies one page window of a query.
type PageKey struct {
	Fingerprint string
	Offset      int
	Limit       int
}

// Page is a materialized id window.
type Page struct {
	IDs    []string
	Scopes []string
}

// PageCache maps page windows to id lists.
type PageCache struct {
	fifo *FIFO[PageKey, Page]
}

// NewPageCache creates a page cache with the given capacity.
func NewPageCache(capacity int, total *prometheus.CounterVec) *PageCache {
	return &PageCache{fifo: NewFIFO[PageKey, Page]("page", capacity, total)}
}

// Get returns a copy of the ids cached for key.
func (c *PageCache) Get(key PageKey) ([]string, bool) {
	p, ok := c.fifo.Get(key)
	if !ok {
		return nil, false
	}
	return slices.Clone(p.IDs), true
}

// Put stores a copy of ids under key.
func (c *PageCache) Put(key PageKey, scopes, ids []string) bool {
	return c.fifo.Put(key, Page{IDs: slices.Clone(ids), Scopes: slices.Clone(scopes)})
}

// PutChunks splits an overfetched window starting at baseOffset into
// limit-sized pages and caches each one not already present.
// It returns the number of pages inserted.
func (c *PageCache) PutChunks(fingerprint string, scopes []string, baseOffset, limit int, ids []string) int {
	inserted := 0
	for _, ch := range page.Split(baseOffset, limit, ids) {
		key := PageKey{Fingerprint: fingerprint, Offset: ch.Offset, Limit: limit}
		if c.fifo.Contains(key) {
			continue
		}
		c.fifo.Put(key, Page{IDs: ch.IDs, Scopes: slices.Clone(scopes)})
		inserted++
	}
	return inserted
}

// InvalidateFingerprint drops every page of one query.
func (c *PageCache) InvalidateFingerprint(fingerprint string) int {
	return c.fifo.RemoveFunc(func(k PageKey, _ Page) bool {
		return k.Fingerprint == fingerprint
	})
}

// InvalidateScope drops every page restricted to scope id.
func (c *PageCache) InvalidateScope(id string) int {
	return c.fifo.RemoveFunc(func(_ PageKey, p Page) bool {
		return slices.Contains(p.Scopes, id)
	})
}

// InvalidateWrites drops every page a write to records in scopes could change.
func (c *PageCache) InvalidateWrites(scopes []string) int {
	return c.fifo.RemoveFunc(func(_ PageKey, p Page) bool {
		return affected(p.Scopes, scopes)
	})
}

func affected(entry, written []string) bool {
	if len(entry) == 0 {
		return true
	}
	for _, id := range entry {
		if slices.Contains(written, id) {
			return true
		}
	}
	return false
}

// Len returns the number of cached pages.
func (c *PageCache) Len() int { return c.fifo.Len() }

// Clear drops every page.
func (c *PageCache) Clear() { c.fifo.Clear() }
