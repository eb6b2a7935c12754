package image

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/imgdex/internal/db"
	"github.com/kailas-cloud/imgdex/internal/domain"
	domimage "github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/search/request"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
	"github.com/kailas-cloud/imgdex/internal/metrics"
)

// catalog is the consumer interface for image records (ISP).
type catalog interface {
	FindImages(ctx context.Context, q *db.ImageQuery) ([]string, error)
	CountImages(ctx context.Context, q *db.ImageQuery) (int, error)
	LoadCandidates(ctx context.Context, q *db.ImageQuery) ([]similarity.Candidate, error)
	LoadImages(ctx context.Context, ids []string) ([]*domimage.Record, error)
	SaveImages(ctx context.Context, records []*domimage.Record) error
	DeleteImages(ctx context.Context, ids []string) error
}

// Repo implements usecase/query.Store over a db.Catalog backend.
type Repo struct {
	store   catalog
	backend string
}

// New creates an image repository. backend labels store metrics.
func New(s catalog, backend string) *Repo {
	return &Repo{store: s, backend: backend}
}

// Find returns the ids matching d in d's order, windowed by offset and limit (limit <= 0 = all).
func (r *Repo) Find(ctx context.Context, d *request.Description, offset, limit int) ([]string, error) {
	q := toImageQuery(d)
	q.Offset, q.Limit = offset, limit

	var ids []string
	err := r.observe("find", func() error {
		var err error
		ids, err = r.store.FindImages(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Count returns the exact number of records matching d.
func (r *Repo) Count(ctx context.Context, d *request.Description) (int, error) {
	var n int
	err := r.observe("count", func() error {
		var err error
		n, err = r.store.CountImages(ctx, toImageQuery(d))
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Candidates returns the similarity fields of every record matching d's tag and range filters.
func (r *Repo) Candidates(ctx context.Context, d *request.Description) ([]similarity.Candidate, error) {
	var out []similarity.Candidate
	err := r.observe("candidates", func() error {
		var err error
		out, err = r.store.LoadCandidates(ctx, toImageQuery(d))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get loads records by id; unknown ids are skipped.
func (r *Repo) Get(ctx context.Context, ids []string) ([]*domimage.Record, error) {
	var out []*domimage.Record
	err := r.observe("get", func() error {
		var err error
		out, err = r.store.LoadImages(ctx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save creates or replaces records.
func (r *Repo) Save(ctx context.Context, records []*domimage.Record) error {
	return r.observe("save", func() error {
		return r.store.SaveImages(ctx, records)
	})
}

// Delete removes records by id.
func (r *Repo) Delete(ctx context.Context, ids []string) error {
	return r.observe("delete", func() error {
		return r.store.DeleteImages(ctx, ids)
	})
}

func (r *Repo) observe(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.StoreOperationDuration.WithLabelValues(r.backend, op).Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.StoreOperationsTotal.WithLabelValues(r.backend, op, status).Inc()

	if err == nil {
		return nil
	}
	if errors.Is(err, db.ErrUnsupportedQuery) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrInvalidQuery, err)
	}
	return domain.NewStoreError(op, err)
}

func toImageQuery(d *request.Description) *db.ImageQuery {
	return &db.ImageQuery{
		Scopes:    d.Scopes(),
		Filter:    d.Filter,
		Ranges:    d.Ranges,
		Sort:      d.Sort,
		Direction: d.Direction,
	}
}
