package querycache

import (
	"slices"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/imgdex/internal/domain/search/request"
)

// Plan is a compiled, filtered and sorted query ready to be paged.
type Plan struct {
	Fingerprint string
	Query       request.Description
	// Ranked holds the full ordered id list when the executor ordered results
	// itself (similarity and random order). Nil means the store pages the query.
	Ranked []string
	Total  int
}

// Scopes returns the scope ids the plan was restricted to.
func (p *Plan) Scopes() []string { return p.Query.Scopes() }

func (p *Plan) clone() Plan {
	cp := *p
	if p.Ranked != nil {
		cp.Ranked = slices.Clone(p.Ranked)
	}
	return cp
}

// ResultCache maps fingerprints to plans.
type ResultCache struct {
	fifo *FIFO[string, Plan]
}

// NewResultCache creates a result cache with the given capacity.
func NewResultCache(capacity int, total *prometheus.CounterVec) *ResultCache {
	return &ResultCache{fifo: NewFIFO[string, Plan]("result", capacity, total)}
}

// Get returns a copy of the plan stored for fingerprint.
func (c *ResultCache) Get(fingerprint string) (Plan, bool) {
	p, ok := c.fifo.Get(fingerprint)
	if !ok {
		return Plan{}, false
	}
	return p.clone(), true
}

// Put stores a copy of p under its fingerprint.
func (c *ResultCache) Put(p Plan) bool {
	return c.fifo.Put(p.Fingerprint, p.clone())
}

// SetTotal updates the known count of a cached plan.
func (c *ResultCache) SetTotal(fingerprint string, total int) bool {
	return c.fifo.Update(fingerprint, func(p *Plan) { p.Total = total })
}

// Total returns the known count of a cached plan.
func (c *ResultCache) Total(fingerprint string) (int, bool) {
	p, ok := c.fifo.Peek(fingerprint)
	if !ok {
		return 0, false
	}
	return p.Total, true
}

// Remove drops the plan for fingerprint.
func (c *ResultCache) Remove(fingerprint string) bool { return c.fifo.Remove(fingerprint) }

// InvalidateScope drops every plan restricted to scope id.
func (c *ResultCache) InvalidateScope(id string) int {
	return c.fifo.RemoveFunc(func(_ string, p Plan) bool {
		return p.Query.InScope(id)
	})
}

// InvalidateWrites drops every plan a write to records in scopes could change:
// plans restricted to one of scopes and plans with no scope restriction.
func (c *ResultCache) InvalidateWrites(scopes []string) int {
	return c.fifo.RemoveFunc(func(_ string, p Plan) bool {
		return affected(p.Scopes(), scopes)
	})
}

// Len returns the number of cached plans.
func (c *ResultCache) Len() int { return c.fifo.Len() }

// Clear drops every plan.
func (c *ResultCache) Clear() { c.fifo.Clear() }
