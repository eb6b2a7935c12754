package memory

import (
	"context"
	"testing"

	"github.com/kailas-cloud/imgdex/internal/db"
	"github.com/kailas-cloud/imgdex/internal/db/dbtest"
	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/search/bounds"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
)

func TestConformance(t *testing.T) {
	dbtest.RunConformance(t, NewStore())
}

func TestSaveImages_ReplacesPostings(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	rec := &image.Record{ID: "a", Tags: filter.NewTagSet("cat"), Scopes: []string{"imp"}}
	if err := s.SaveImages(ctx, []*image.Record{rec}); err != nil {
		t.Fatalf("SaveImages: %v", err)
	}
	rec.Tags = filter.NewTagSet("dog")
	if err := s.SaveImages(ctx, []*image.Record{rec}); err != nil {
		t.Fatalf("SaveImages: %v", err)
	}

	cat := db.ImageQuery{Filter: filter.Compile([]string{"cat"}, nil, nil, nil), Ranges: bounds.OpenRanges()}
	if n, _ := s.CountImages(ctx, &cat); n != 0 {
		t.Errorf("stale cat posting: %d", n)
	}
	dog := db.ImageQuery{Filter: filter.Compile([]string{"dog"}, nil, nil, nil), Ranges: bounds.OpenRanges()}
	if n, _ := s.CountImages(ctx, &dog); n != 1 {
		t.Errorf("dog count = %d", n)
	}
	if len(s.tags) != 1 {
		t.Errorf("empty postings not dropped: %v", s.tags)
	}
}

func TestDeleteImages_ReusesRows(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_ = s.SaveImages(ctx, []*image.Record{{ID: "a"}, {ID: "b"}})
	_ = s.DeleteImages(ctx, []string{"a", "unknown"})
	_ = s.SaveImages(ctx, []*image.Record{{ID: "c"}})

	if len(s.rows) != 2 {
		t.Errorf("rows = %d, want slot reuse", len(s.rows))
	}
	got, _ := s.LoadImages(ctx, []string{"a", "b", "c"})
	if len(got) != 2 {
		t.Errorf("LoadImages = %d records", len(got))
	}
}

func TestSaveImages_Invalid(t *testing.T) {
	s := NewStore()
	if err := s.SaveImages(context.Background(), []*image.Record{{ID: ""}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadImages_ReturnsCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.SaveImages(ctx, []*image.Record{{ID: "a", Tags: filter.NewTagSet("cat")}})

	got, _ := s.LoadImages(ctx, []string{"a"})
	got[0].Tags[0] = "dog"

	again, _ := s.LoadImages(ctx, []string{"a"})
	if again[0].Tags[0] != "cat" {
		t.Error("LoadImages leaked internal record")
	}
}

func TestPingAfterClose(t *testing.T) {
	s := NewStore()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	s.Close()
	if err := s.Ping(context.Background()); err == nil {
		t.Error("expected error after Close")
	}
}
