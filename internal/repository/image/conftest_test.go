package image

import (
	"context"
	"testing"

	"github.com/kailas-cloud/imgdex/internal/db"
	domimage "github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
)

// mockCatalog implements the consumer interface for tests.
type mockCatalog struct {
	findFn       func(ctx context.Context, q *db.ImageQuery) ([]string, error)
	countFn      func(ctx context.Context, q *db.ImageQuery) (int, error)
	candidatesFn func(ctx context.Context, q *db.ImageQuery) ([]similarity.Candidate, error)
	loadFn       func(ctx context.Context, ids []string) ([]*domimage.Record, error)
	saveFn       func(ctx context.Context, records []*domimage.Record) error
	deleteFn     func(ctx context.Context, ids []string) error
}

func (m *mockCatalog) FindImages(ctx context.Context, q *db.ImageQuery) ([]string, error) {
	if m.findFn != nil {
		return m.findFn(ctx, q)
	}
	return nil, nil
}

func (m *mockCatalog) CountImages(ctx context.Context, q *db.ImageQuery) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, q)
	}
	return 0, nil
}

func (m *mockCatalog) LoadCandidates(ctx context.Context, q *db.ImageQuery) ([]similarity.Candidate, error) {
	if m.candidatesFn != nil {
		return m.candidatesFn(ctx, q)
	}
	return nil, nil
}

func (m *mockCatalog) LoadImages(ctx context.Context, ids []string) ([]*domimage.Record, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockCatalog) SaveImages(ctx context.Context, records []*domimage.Record) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, records)
	}
	return nil
}

func (m *mockCatalog) DeleteImages(ctx context.Context, ids []string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, ids)
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *mockCatalog) {
	t.Helper()
	mc := &mockCatalog{}
	return New(mc, "test"), mc
}
