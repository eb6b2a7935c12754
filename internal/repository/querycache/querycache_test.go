package querycache

import (
	"fmt"
	"testing"

	"github.com/kailas-cloud/imgdex/internal/domain/search/bounds"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/request"
	"github.com/kailas-cloud/imgdex/internal/domain/search/sortkey"
)

func plan(t *testing.T, fp, importID string) Plan {
	t.Helper()
	d, err := request.New(importID, "", filter.Compiled{}, bounds.OpenRanges(), "", sortkey.Asc, nil, false, 0)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return Plan{Fingerprint: fp, Query: d, Total: 1}
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("img-%03d", i)
	}
	return out
}

func TestResultCache_EvictionExactness(t *testing.T) {
	const n = 5
	c := NewResultCache(n, nil)
	for i := range n + 1 {
		c.Put(plan(t, fmt.Sprintf("q%d", i), "imp"))
	}

	if _, ok := c.Get("q0"); ok {
		t.Error("first-inserted plan survived")
	}
	for i := 1; i <= n; i++ {
		if _, ok := c.Get(fmt.Sprintf("q%d", i)); !ok {
			t.Errorf("q%d evicted", i)
		}
	}
}

func TestResultCache_CopiesRanked(t *testing.T) {
	c := NewResultCache(2, nil)
	p := plan(t, "q", "imp")
	p.Ranked = []string{"a", "b"}
	c.Put(p)
	p.Ranked[0] = "x"

	got, _ := c.Get("q")
	if got.Ranked[0] != "a" {
		t.Error("cache aliased caller slice on Put")
	}
	got.Ranked[1] = "y"
	again, _ := c.Get("q")
	if again.Ranked[1] != "b" {
		t.Error("cache aliased caller slice on Get")
	}
}

func TestResultCache_SetTotal(t *testing.T) {
	c := NewResultCache(2, nil)
	if c.SetTotal("q", 5) {
		t.Error("SetTotal on missing plan")
	}
	c.Put(plan(t, "q", "imp"))
	c.SetTotal("q", 42)
	if p, _ := c.Get("q"); p.Total != 42 {
		t.Errorf("Total = %d", p.Total)
	}
	if n, ok := c.Total("q"); !ok || n != 42 {
		t.Errorf("Total(q) = %d, %v", n, ok)
	}
	if _, ok := c.Total("other"); ok {
		t.Error("Total on missing plan")
	}
}

func TestResultCache_InvalidateScope(t *testing.T) {
	c := NewResultCache(10, nil)
	c.Put(plan(t, "q1", "imp-a"))
	c.Put(plan(t, "q2", "imp-b"))
	c.Put(plan(t, "q3", "imp-a"))

	if n := c.InvalidateScope("imp-a"); n != 2 {
		t.Errorf("removed %d", n)
	}
	if _, ok := c.Get("q2"); !ok {
		t.Error("unrelated plan removed")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d", c.Len())
	}
}

func TestPageCache_PutChunks250(t *testing.T) {
	c := NewPageCache(10, nil)
	all := ids(250)

	if n := c.PutChunks("q", nil, 0, 100, all); n != 3 {
		t.Fatalf("inserted %d, want 3", n)
	}

	wants := []struct{ offset, n int }{{0, 100}, {100, 100}, {200, 50}}
	var covered []string
	for _, w := range wants {
		got, ok := c.Get(PageKey{Fingerprint: "q", Offset: w.offset, Limit: 100})
		if !ok {
			t.Fatalf("page %d not cached", w.offset)
		}
		if len(got) != w.n {
			t.Errorf("page %d len = %d, want %d", w.offset, len(got), w.n)
		}
		covered = append(covered, got...)
	}
	for i, id := range covered {
		if id != all[i] {
			t.Fatalf("gap or overlap at %d: %s != %s", i, id, all[i])
		}
	}
}

func TestPageCache_PutChunksSkipsPresent(t *testing.T) {
	c := NewPageCache(10, nil)
	key := PageKey{Fingerprint: "q", Offset: 0, Limit: 2}
	c.Put(key, nil, []string{"keep", "me"})

	if n := c.PutChunks("q", nil, 0, 2, []string{"a", "b", "c", "d"}); n != 1 {
		t.Errorf("inserted %d, want 1", n)
	}
	got, _ := c.Get(key)
	if got[0] != "keep" {
		t.Errorf("existing page overwritten: %v", got)
	}
}

func TestPageCache_GetReturnsCopy(t *testing.T) {
	c := NewPageCache(2, nil)
	key := PageKey{Fingerprint: "q", Offset: 0, Limit: 1}
	c.Put(key, nil, []string{"a"})
	got, _ := c.Get(key)
	got[0] = "z"
	again, _ := c.Get(key)
	if again[0] != "a" {
		t.Error("page cache returned aliased slice")
	}
}

func TestPageCache_Invalidate(t *testing.T) {
	c := NewPageCache(10, nil)
	c.Put(PageKey{Fingerprint: "q1", Limit: 1}, []string{"imp"}, []string{"a"})
	c.Put(PageKey{Fingerprint: "q1", Offset: 1, Limit: 1}, []string{"imp"}, []string{"b"})
	c.Put(PageKey{Fingerprint: "q2", Limit: 1}, []string{"grp"}, []string{"c"})

	if n := c.InvalidateScope("grp"); n != 1 {
		t.Errorf("InvalidateScope removed %d", n)
	}
	if n := c.InvalidateFingerprint("q1"); n != 2 {
		t.Errorf("InvalidateFingerprint removed %d", n)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d", c.Len())
	}
}

func TestInvalidateWrites_IncludesUnscoped(t *testing.T) {
	rc := NewResultCache(10, nil)
	rc.Put(plan(t, "q1", "imp-a"))
	rc.Put(plan(t, "q2", "imp-b"))
	rc.Put(plan(t, "q3", ""))

	if n := rc.InvalidateWrites([]string{"imp-a"}); n != 2 {
		t.Errorf("results removed %d, want 2", n)
	}
	if _, ok := rc.Get("q2"); !ok {
		t.Error("plan of untouched scope removed")
	}

	pc := NewPageCache(10, nil)
	pc.Put(PageKey{Fingerprint: "q1", Limit: 1}, []string{"imp-a", "grp"}, []string{"a"})
	pc.Put(PageKey{Fingerprint: "q2", Limit: 1}, []string{"imp-b"}, []string{"b"})
	pc.Put(PageKey{Fingerprint: "q3", Limit: 1}, nil, []string{"c"})

	if n := pc.InvalidateWrites([]string{"grp"}); n != 2 {
		t.Errorf("pages removed %d, want 2", n)
	}
	if pc.Len() != 1 {
		t.Errorf("Len() = %d", pc.Len())
	}
}
