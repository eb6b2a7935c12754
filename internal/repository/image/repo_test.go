package image

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/kailas-cloud/imgdex/internal/db"
	"github.com/kailas-cloud/imgdex/internal/db/memory"
	"github.com/kailas-cloud/imgdex/internal/domain"
	domimage "github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/search/bounds"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/request"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
	"github.com/kailas-cloud/imgdex/internal/domain/search/sortkey"
)

func testDescription(t *testing.T) request.Description {
	t.Helper()
	d, err := request.New("imp", "grp",
		filter.Compile([]string{"cat"}, nil, nil, nil),
		bounds.OpenRanges(), "width", sortkey.Desc, nil, false, 0)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return d
}

func TestFind_TranslatesDescription(t *testing.T) {
	repo, mc := newTestRepo(t)
	var got *db.ImageQuery
	mc.findFn = func(_ context.Context, q *db.ImageQuery) ([]string, error) {
		got = q
		return []string{"a", "b"}, nil
	}

	d := testDescription(t)
	ids, err := repo.Find(context.Background(), &d, 10, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(ids, []string{"a", "b"}) {
		t.Errorf("ids = %v", ids)
	}
	if !slices.Equal(got.Scopes, []string{"imp", "grp"}) {
		t.Errorf("scopes = %v", got.Scopes)
	}
	if got.Offset != 10 || got.Limit != 20 {
		t.Errorf("window = %d/%d", got.Offset, got.Limit)
	}
	if got.Sort.Kind != sortkey.Width || got.Direction != sortkey.Desc {
		t.Errorf("sort = %v %v", got.Sort, got.Direction)
	}
	if !got.Filter.Equal(d.Filter) {
		t.Errorf("filter = %+v", got.Filter)
	}
}

func TestCount_StoreErrorWrapped(t *testing.T) {
	repo, mc := newTestRepo(t)
	mc.countFn = func(context.Context, *db.ImageQuery) (int, error) {
		return 0, &db.Error{Op: db.OpSearch, Err: errors.New("connection reset")}
	}

	d := testDescription(t)
	_, err := repo.Count(context.Background(), &d)
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Error("expected db.Error in chain")
	}
}

func TestFind_UnsupportedQueryIsInvalid(t *testing.T) {
	repo, mc := newTestRepo(t)
	mc.findFn = func(context.Context, *db.ImageQuery) ([]string, error) {
		return nil, db.ErrUnsupportedQuery
	}

	d := testDescription(t)
	_, err := repo.Find(context.Background(), &d, 0, 10)
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
	if errors.Is(err, domain.ErrStoreUnavailable) {
		t.Error("unsupported query is not a store outage")
	}
}

func TestCandidates_Unpaged(t *testing.T) {
	repo, mc := newTestRepo(t)
	mc.candidatesFn = func(_ context.Context, q *db.ImageQuery) ([]similarity.Candidate, error) {
		if q.Offset != 0 || q.Limit != 0 {
			t.Errorf("candidates must be unpaged, got %d/%d", q.Offset, q.Limit)
		}
		return []similarity.Candidate{{ID: "x"}}, nil
	}

	d := testDescription(t)
	cands, err := repo.Candidates(context.Background(), &d)
	if err != nil || len(cands) != 1 {
		t.Fatalf("got %v, %v", cands, err)
	}
}

func TestRepo_MemoryBackend(t *testing.T) {
	store := memory.NewStore()
	repo := New(store, "memory")
	ctx := context.Background()

	records := []*domimage.Record{
		{ID: "a", Width: 10, Tags: filter.NewTagSet("cat"), Scopes: []string{"imp", "grp"}},
		{ID: "b", Width: 30, Tags: filter.NewTagSet("cat"), Scopes: []string{"imp", "grp"}},
		{ID: "c", Width: 20, Tags: filter.NewTagSet("dog"), Scopes: []string{"imp", "grp"}},
		{ID: "d", Width: 40, Tags: filter.NewTagSet("cat"), Scopes: []string{"imp"}},
	}
	if err := repo.Save(ctx, records); err != nil {
		t.Fatalf("save: %v", err)
	}

	d := testDescription(t)
	ids, err := repo.Find(ctx, &d, 0, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !slices.Equal(ids, []string{"b", "a"}) {
		t.Errorf("ids = %v, want [b a]", ids)
	}

	if err := repo.Delete(ctx, []string{"b"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	n, err := repo.Count(ctx, &d)
	if err != nil || n != 1 {
		t.Errorf("count = %d, %v", n, err)
	}

	got, err := repo.Get(ctx, []string{"a", "zz"})
	if err != nil || len(got) != 1 || got[0].ID != "a" {
		t.Errorf("get = %v, %v", got, err)
	}
}
