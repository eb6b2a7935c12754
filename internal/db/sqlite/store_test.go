package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kailas-cloud/imgdex/internal/db"
	"github.com/kailas-cloud/imgdex/internal/db/dbtest"
	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/search/bounds"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
	"github.com/kailas-cloud/imgdex/internal/domain/search/sortkey"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(context.Background(), Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestConformance(t *testing.T) {
	dbtest.RunConformance(t, newTestStore(t))
}

func TestNewStore_RequiresPath(t *testing.T) {
	if _, err := NewStore(context.Background(), Config{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := NewStore(context.Background(), Config{Path: path})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestRoundTrip_Hashes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &image.Record{
		ID:      "a",
		Tags:    filter.NewTagSet("cat"),
		Hashes:  &similarity.Hashes{Average: ^uint64(0), Color: 1 << 63},
		Buckets: []uint8{3, 1, 4},
		Ratings: map[string]float64{"quality": 4.5},
		Colors:  map[string]float64{"red": 0.25},
		Scopes:  []string{"imp"},
	}
	if err := s.SaveImages(ctx, []*image.Record{rec}); err != nil {
		t.Fatalf("SaveImages: %v", err)
	}
	got, err := s.LoadImages(ctx, []string{"a"})
	if err != nil || len(got) != 1 {
		t.Fatalf("LoadImages = %v, %v", got, err)
	}
	r := got[0]
	if r.Hashes == nil || r.Hashes.Average != ^uint64(0) || r.Hashes.Color != 1<<63 {
		t.Errorf("hashes = %+v", r.Hashes)
	}
	if len(r.Buckets) != 3 || r.Buckets[2] != 4 {
		t.Errorf("buckets = %v", r.Buckets)
	}
	if r.Ratings["quality"] != 4.5 || r.Colors["red"] != 0.25 {
		t.Errorf("scores = %v %v", r.Ratings, r.Colors)
	}
	if len(r.Scopes) != 1 || r.Scopes[0] != "imp" {
		t.Errorf("scopes = %v", r.Scopes)
	}
}

func TestRoundTrip_NoHashes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.SaveImages(ctx, []*image.Record{{ID: "a"}}); err != nil {
		t.Fatalf("SaveImages: %v", err)
	}
	got, _ := s.LoadImages(ctx, []string{"a"})
	if got[0].Hashes != nil {
		t.Errorf("Hashes = %+v, want nil", got[0].Hashes)
	}
}

func TestBuildWhere_Empty(t *testing.T) {
	where, args := buildWhere(&db.ImageQuery{Ranges: bounds.OpenRanges()})
	if where != "1" || len(args) != 0 {
		t.Errorf("buildWhere = %q %v", where, args)
	}
}

func TestBuildWhere_Branches(t *testing.T) {
	q := &db.ImageQuery{
		Scopes: []string{"imp"},
		Filter: filter.Compile([]string{"cat"}, nil, []string{"sketch"}, []string{"dog,%,%"}),
		Ranges: bounds.OpenRanges(),
	}
	where, args := buildWhere(q)
	if !strings.Contains(where, " OR ") {
		t.Errorf("expected OR of branches, got %q", where)
	}
	if args[0] != "imp" {
		t.Errorf("scope arg first, got %v", args)
	}
	if strings.Count(where, "?") != len(args) {
		t.Errorf("placeholders %d != args %d", strings.Count(where, "?"), len(args))
	}
}

func TestBuildWhere_Ranges(t *testing.T) {
	r := bounds.OpenRanges()
	r.Time = bounds.Between(10, bounds.Unbounded)
	r.Rating = bounds.Between(1, 3)
	r.RatingName = "quality"

	where, args := buildWhere(&db.ImageQuery{Ranges: r})
	if !strings.Contains(where, "i.uploaded_at >= ?") {
		t.Errorf("missing time bound: %q", where)
	}
	if strings.Count(where, "?") != len(args) || len(args) != 5 {
		t.Errorf("args = %v for %q", args, where)
	}
}

func TestBuildOrder(t *testing.T) {
	tests := []struct {
		key  string
		dir  sortkey.Direction
		want string
	}{
		{"id", sortkey.Desc, "i.id DESC"},
		{"size", sortkey.Desc, "i.size DESC, i.id ASC"},
		{"area", sortkey.Asc, "(i.width * i.height) ASC, i.id ASC"},
		{"random", sortkey.Desc, "i.id ASC"},
	}
	for _, tt := range tests {
		k, _ := sortkey.Parse(tt.key)
		got, _ := buildOrder(&db.ImageQuery{Sort: k, Direction: tt.dir})
		if got != tt.want {
			t.Errorf("buildOrder(%s) = %q, want %q", tt.key, got, tt.want)
		}
	}

	got, args := buildOrder(&db.ImageQuery{Sort: sortkey.MustParse("color:red"), Direction: sortkey.Asc})
	if !strings.Contains(got, "image_colors") || len(args) != 1 || args[0] != "red" {
		t.Errorf("color order = %q %v", got, args)
	}
}

func TestLoadScope_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadScope(context.Background(), "nope")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("err = %v, want ErrKeyNotFound", err)
	}
}
