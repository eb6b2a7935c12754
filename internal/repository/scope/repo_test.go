package scope

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/imgdex/internal/domain"
	domscope "github.com/kailas-cloud/imgdex/internal/domain/scope"
)

func TestResolve_Known(t *testing.T) {
	repo := New(&mockStore{})
	ctx := context.Background()
	if err := repo.Save(ctx, domscope.Scope{ID: "imp", Kind: domscope.KindImport, SuccessCount: 42}); err != nil {
		t.Fatalf("save: %v", err)
	}

	sc, err := repo.Resolve(ctx, "imp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sc.Known || sc.SuccessCount != 42 || sc.Kind != domscope.KindImport {
		t.Errorf("unexpected scope: %+v", sc)
	}
}

func TestResolve_UnknownIsEmpty(t *testing.T) {
	repo := New(&mockStore{})
	for _, id := range []string{"", "missing"} {
		sc, err := repo.Resolve(context.Background(), id)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", id, err)
		}
		if sc != domscope.Empty(id) {
			t.Errorf("Resolve(%q) = %+v, want empty", id, sc)
		}
	}
}

func TestResolve_StoreError(t *testing.T) {
	repo := New(&mockStore{err: errors.New("boom")})
	_, err := repo.Resolve(context.Background(), "imp")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestSave_RequiresID(t *testing.T) {
	repo := New(&mockStore{})
	if err := repo.Save(context.Background(), domscope.Scope{}); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}
