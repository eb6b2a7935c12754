// Package dbtest holds a shared fixture and conformance checks for catalog backends.
package dbtest

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/kailas-cloud/imgdex/internal/db"
	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/scope"
	"github.com/kailas-cloud/imgdex/internal/domain/search/bounds"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
	"github.com/kailas-cloud/imgdex/internal/domain/search/sortkey"
)

// Scope ids used by the fixture.
const (
	ImportA = "import-a"
	ImportB = "import-b"
	GroupX  = "group-x"
)

var tagPool = []string{"cat", "dog", "photo", "sketch", "bird", "night"}

// Fixture returns n deterministic records spread over two imports and one group.
func Fixture(n int) []*image.Record {
	out := make([]*image.Record, n)
	base := time.Unix(1_700_000_000, 0)
	for i := range n {
		var tags []string
		for j, t := range tagPool {
			if (i>>j)&1 == 1 {
				tags = append(tags, t)
			}
		}
		scopes := []string{ImportA}
		if i%2 == 1 {
			scopes = []string{ImportB}
		}
		if i%3 == 0 {
			scopes = append(scopes, GroupX)
		}
		r := &image.Record{
			ID:         fmt.Sprintf("%064x", i*7919),
			Path:       fmt.Sprintf("/photos/%03d.jpg", n-i),
			Name:       fmt.Sprintf("img-%03d.jpg", i%17),
			Size:       int64(1000 + (i*37)%500),
			UploadedAt: base.Add(time.Duration(i) * time.Hour),
			CreatedAt:  base.Add(-time.Duration(i) * time.Minute),
			ModifiedAt: base,
			EditedAt:   base.Add(time.Duration(i%5) * time.Second),
			Width:      100 + (i*13)%300,
			Height:     100 + (i*29)%200,
			Tags:       filter.NewTagSet(tags...),
			Scopes:     scopes,
			Hashes: &similarity.Hashes{
				Average:    uint64(i),
				Difference: uint64(i) << 3,
				Wavelet:    ^uint64(i),
				Perceptual: uint64(i * i),
				Color:      uint64(i % 7),
			},
			Buckets: []uint8{uint8(i % 4), uint8(i % 3)},
		}
		if i%4 != 0 {
			r.Ratings = map[string]float64{"quality": float64(i % 6)}
		}
		out[i] = r
	}
	return out
}

// Case is a named query of the conformance suite.
type Case struct {
	Name  string
	Query db.ImageQuery
}

// Cases returns queries covering scopes, tag branches, ranges and sorting.
func Cases() []Case {
	open := bounds.OpenRanges()
	width := bounds.OpenRanges()
	width.Width = bounds.Between(150, 300)
	rating := bounds.OpenRanges()
	rating.Rating = bounds.Between(2, bounds.Unbounded)
	rating.RatingName = "quality"

	return []Case{
		{"everything", db.ImageQuery{Ranges: open}},
		{"import scope", db.ImageQuery{Scopes: []string{ImportA}, Ranges: open}},
		{"import and group", db.ImageQuery{Scopes: []string{ImportB, GroupX}, Ranges: open}},
		{"unknown scope", db.ImageQuery{Scopes: []string{"missing"}, Ranges: open}},
		{"all tags", db.ImageQuery{Filter: filter.Compile([]string{"cat", "photo"}, nil, nil, nil), Ranges: open}},
		{"any tags", db.ImageQuery{Filter: filter.Compile(nil, []string{"bird", "night"}, nil, nil), Ranges: open}},
		{"none tags", db.ImageQuery{Filter: filter.Compile(nil, nil, []string{"cat"}, nil), Ranges: open}},
		{"branches", db.ImageQuery{
			Filter: filter.Compile([]string{"cat"}, nil, []string{"sketch"}, []string{"dog,%,%"}),
			Ranges: open,
		}},
		{"branch with any", db.ImageQuery{
			Filter: filter.Compile(nil, nil, nil, []string{"cat%bird,night%dog", "photo%%cat"}),
			Ranges: open,
		}},
		{"width range", db.ImageQuery{Ranges: width, Sort: sortkey.MustParse("width"), Direction: sortkey.Desc}},
		{"rating range", db.ImageQuery{Ranges: rating, Sort: sortkey.MustParse("rating:quality")}},
		{"sort path", db.ImageQuery{Ranges: open, Sort: sortkey.MustParse("path")}},
		{"sort size desc", db.ImageQuery{Ranges: open, Sort: sortkey.MustParse("size"), Direction: sortkey.Desc}},
		{"sort area", db.ImageQuery{Ranges: open, Sort: sortkey.MustParse("area")}},
		{"sort uploaded desc window", db.ImageQuery{
			Ranges: open, Sort: sortkey.MustParse("uploaded"), Direction: sortkey.Desc, Offset: 5, Limit: 10,
		}},
		{"random lists by id", db.ImageQuery{Ranges: open, Sort: sortkey.Key{Kind: sortkey.Random}}},
	}
}

// Expected evaluates q over records with the domain matchers.
func Expected(records []*image.Record, q *db.ImageQuery) []string {
	var matches []*image.Record
	for _, r := range records {
		ok := true
		for _, s := range q.Scopes {
			if !r.InScope(s) {
				ok = false
				break
			}
		}
		if ok && q.Filter.Match(r.HasTag) && r.InRanges(q.Ranges) {
			matches = append(matches, r)
		}
	}
	key, dir := q.SortOrStable()
	sortkey.Sort(matches, key, dir, nil)

	ids := make([]string, 0, len(matches))
	for _, r := range matches {
		ids = append(ids, r.ID)
	}
	if q.Offset >= len(ids) {
		return []string{}
	}
	ids = ids[q.Offset:]
	if q.Limit > 0 && q.Limit < len(ids) {
		ids = ids[:q.Limit]
	}
	return ids
}

// RunConformance loads the fixture into c and checks every case against Expected.
func RunConformance(t *testing.T, c db.Catalog) {
	t.Helper()
	ctx := context.Background()
	records := Fixture(64)
	if err := c.SaveImages(ctx, records); err != nil {
		t.Fatalf("SaveImages: %v", err)
	}

	for _, tc := range Cases() {
		t.Run(tc.Name, func(t *testing.T) {
			q := tc.Query
			want := Expected(records, &q)

			got, err := c.FindImages(ctx, &q)
			if err != nil {
				t.Fatalf("FindImages: %v", err)
			}
			if !slices.Equal(got, want) && !(len(got) == 0 && len(want) == 0) {
				t.Errorf("FindImages mismatch\n got  %v\n want %v", got, want)
			}

			n, err := c.CountImages(ctx, &q)
			if err != nil {
				t.Fatalf("CountImages: %v", err)
			}
			if wantN := len(Expected(records, q.Unpaged())); n != wantN {
				t.Errorf("CountImages = %d, want %d", n, wantN)
			}
		})
	}

	t.Run("candidates", func(t *testing.T) {
		q := db.ImageQuery{Scopes: []string{GroupX}, Ranges: bounds.OpenRanges()}
		cands, err := c.LoadCandidates(ctx, &q)
		if err != nil {
			t.Fatalf("LoadCandidates: %v", err)
		}
		want := Expected(records, &q)
		if len(cands) != len(want) {
			t.Fatalf("LoadCandidates len = %d, want %d", len(cands), len(want))
		}
		for i, cd := range cands {
			if cd.ID != want[i] || cd.Hashes == nil {
				t.Errorf("candidate %d = %+v", i, cd)
			}
		}
	})

	t.Run("load and delete", func(t *testing.T) {
		ids := []string{records[3].ID, "missing", records[1].ID}
		got, err := c.LoadImages(ctx, ids)
		if err != nil {
			t.Fatalf("LoadImages: %v", err)
		}
		if len(got) != 2 || got[0].ID != records[3].ID || got[1].ID != records[1].ID {
			t.Fatalf("LoadImages returned %d records", len(got))
		}
		if !got[0].Tags.Equal(records[3].Tags) || got[0].Width != records[3].Width {
			t.Errorf("record round trip mismatch: %+v", got[0])
		}

		if err := c.DeleteImages(ctx, []string{records[3].ID}); err != nil {
			t.Fatalf("DeleteImages: %v", err)
		}
		q := db.ImageQuery{Ranges: bounds.OpenRanges()}
		n, err := c.CountImages(ctx, &q)
		if err != nil {
			t.Fatalf("CountImages: %v", err)
		}
		if n != len(records)-1 {
			t.Errorf("count after delete = %d", n)
		}
	})

	t.Run("scopes", func(t *testing.T) {
		if _, err := c.LoadScope(ctx, "nope"); err == nil {
			t.Error("expected not found for unknown scope")
		}
		sc := scope.Scope{ID: ImportA, Kind: scope.KindImport, SuccessCount: 32}
		if err := c.SaveScope(ctx, sc); err != nil {
			t.Fatalf("SaveScope: %v", err)
		}
		got, err := c.LoadScope(ctx, ImportA)
		if err != nil {
			t.Fatalf("LoadScope: %v", err)
		}
		if got.SuccessCount != 32 || got.Kind != scope.KindImport || !got.Known {
			t.Errorf("LoadScope = %+v", got)
		}
	})
}
