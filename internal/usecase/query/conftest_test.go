package query

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/scope"
	"github.com/kailas-cloud/imgdex/internal/domain/search/count"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/page"
	"github.com/kailas-cloud/imgdex/internal/domain/search/request"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
	"github.com/kailas-cloud/imgdex/internal/domain/search/sortkey"
	"github.com/kailas-cloud/imgdex/internal/repository/querycache"
)

// mockStore filters an in-memory record slice and counts calls.
type mockStore struct {
	mu      sync.Mutex
	records []*image.Record
	err     error
	// gate, when set, blocks Find until a value is received.
	gate chan struct{}

	finds      atomic.Int32
	counts     atomic.Int32
	candidates atomic.Int32
}

func (m *mockStore) matches(d *request.Description) []*image.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*image.Record
	for _, r := range m.records {
		if !d.Filter.Match(r.HasTag) || !r.InRanges(d.Ranges) {
			continue
		}
		inScope := true
		for _, s := range d.Scopes() {
			inScope = inScope && r.InScope(s)
		}
		if inScope {
			out = append(out, r)
		}
	}
	return out
}

func (m *mockStore) Find(_ context.Context, d *request.Description, offset, limit int) ([]string, error) {
	m.finds.Add(1)
	if m.gate != nil {
		<-m.gate
	}
	if m.err != nil {
		return nil, m.err
	}
	recs := m.matches(d)
	key, dir := d.Sort, d.Direction
	if key.Kind == sortkey.Random {
		key, dir = sortkey.Default, sortkey.Asc
	}
	sortkey.Sort(recs, key, dir, nil)
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return page.Slice(ids, offset, limit), nil
}

func (m *mockStore) Count(_ context.Context, d *request.Description) (int, error) {
	m.counts.Add(1)
	if m.err != nil {
		return 0, m.err
	}
	return len(m.matches(d)), nil
}

func (m *mockStore) Candidates(_ context.Context, d *request.Description) ([]similarity.Candidate, error) {
	m.candidates.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	recs := m.matches(d)
	out := make([]similarity.Candidate, len(recs))
	for i, r := range recs {
		out[i] = r.Candidate()
	}
	return out, nil
}

func (m *mockStore) Get(_ context.Context, ids []string) ([]*image.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*image.Record
	for _, r := range m.records {
		if slices.Contains(ids, r.ID) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// mockScopes implements ScopeRegistry.
type mockScopes struct {
	scopes map[string]scope.Scope
	err    error
}

func (m *mockScopes) Resolve(_ context.Context, id string) (scope.Scope, error) {
	if m.err != nil {
		return scope.Scope{}, m.err
	}
	if sc, ok := m.scopes[id]; ok {
		return sc, nil
	}
	return scope.Empty(id), nil
}

type harness struct {
	exec    *Executor
	store   *mockStore
	scopes  *mockScopes
	results *querycache.ResultCache
	pages   *querycache.PageCache
}

func newHarness(t *testing.T, records []*image.Record, cfg Config) *harness {
	t.Helper()
	h := &harness{
		store: &mockStore{records: records},
		scopes: &mockScopes{scopes: map[string]scope.Scope{
			"imp": {ID: "imp", Kind: scope.KindImport, SuccessCount: len(records), Known: true},
		}},
		results: querycache.NewResultCache(16, nil),
		pages:   querycache.NewPageCache(64, nil),
	}
	if cfg.CountPolicy == "" {
		cfg.CountPolicy = count.Auto
	}
	h.exec = New(h.store, h.scopes, h.results, h.pages, cfg, nil)
	return h
}

// numbered builds n records in scope "imp"; even ones are tagged cat, odd ones dog.
func numbered(n int) []*image.Record {
	out := make([]*image.Record, n)
	for i := range out {
		tag := "cat"
		if i%2 == 1 {
			tag = "dog"
		}
		out[i] = &image.Record{
			ID:     fmt.Sprintf("%04d", i),
			Width:  i,
			Tags:   filter.NewTagSet(tag),
			Scopes: []string{"imp"},
		}
	}
	return out
}
