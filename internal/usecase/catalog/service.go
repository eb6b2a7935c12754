package catalog

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/imgdex/internal/domain"
	dombatch "github.com/kailas-cloud/imgdex/internal/domain/batch"
	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/scope"
)

// MaxBatchSize is the maximum number of records per batch request.
const MaxBatchSize = 100

// Service writes catalog records and keeps the query caches consistent with them.
type Service struct {
	records      RecordStore
	scopes       ScopeStore
	cache        Invalidator
	logger       *zap.Logger
	maxBatchSize int
}

// New creates a catalog service.
func New(records RecordStore, scopes ScopeStore, cache Invalidator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		records: records, scopes: scopes, cache: cache,
		logger:       logger,
		maxBatchSize: MaxBatchSize,
	}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// Get returns one record by id.
func (s *Service) Get(ctx context.Context, id string) (*image.Record, error) {
	recs, err := s.records.Get(ctx, []string{id})
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("image %s: %w", id, domain.ErrNotFound)
	}
	return recs[0], nil
}

// Upsert creates or replaces records. Invalid records fail individually;
// a store failure fails every valid record of the batch.
func (s *Service) Upsert(ctx context.Context, items []*image.Record) []dombatch.Result {
	if len(items) > s.maxBatchSize {
		return dombatch.Fail(recordIDs(items),
			fmt.Errorf("batch size exceeds %d: %w", s.maxBatchSize, domain.ErrInvalidRecord))
	}

	results := make([]dombatch.Result, len(items))
	valid := make([]*image.Record, 0, len(items))
	validIdx := make([]int, 0, len(items))
	for i, item := range items {
		if item == nil {
			results[i] = dombatch.NewError("", fmt.Errorf("empty record: %w", domain.ErrInvalidRecord))
			continue
		}
		if err := item.Validate(); err != nil {
			results[i] = dombatch.NewError(item.ID, err)
			continue
		}
		valid = append(valid, item)
		validIdx = append(validIdx, i)
	}
	if len(valid) == 0 {
		return results
	}

	ids := recordIDs(valid)
	prev, err := s.records.Get(ctx, ids)
	if err == nil {
		err = s.records.Save(ctx, valid)
	}
	if err != nil {
		s.logger.Warn("catalog upsert failed", zap.Int("records", len(valid)), zap.Error(err))
		for _, i := range validIdx {
			results[i] = dombatch.NewError(items[i].ID, fmt.Errorf("upsert: %w", err))
		}
		return results
	}

	for _, i := range validIdx {
		results[i] = dombatch.NewOK(items[i].ID)
	}
	s.invalidate(append(prev, valid...))
	return results
}

// Delete removes records by id. Unknown ids fail with ErrNotFound.
func (s *Service) Delete(ctx context.Context, ids []string) []dombatch.Result {
	if len(ids) > s.maxBatchSize {
		return dombatch.Fail(ids, fmt.Errorf("batch size exceeds %d: %w", s.maxBatchSize, domain.ErrInvalidRecord))
	}
	if len(ids) == 0 {
		return nil
	}

	prev, err := s.records.Get(ctx, ids)
	if err != nil {
		return dombatch.Fail(ids, fmt.Errorf("load images: %w", err))
	}
	found := make([]string, 0, len(prev))
	for _, r := range prev {
		found = append(found, r.ID)
	}

	if len(found) > 0 {
		if err := s.records.Delete(ctx, found); err != nil {
			s.logger.Warn("catalog delete failed", zap.Int("records", len(found)), zap.Error(err))
			return dombatch.Fail(ids, fmt.Errorf("delete: %w", err))
		}
	}

	results := make([]dombatch.Result, len(ids))
	for i, id := range ids {
		if slices.Contains(found, id) {
			results[i] = dombatch.NewOK(id)
			continue
		}
		results[i] = dombatch.NewError(id, fmt.Errorf("image %s: %w", id, domain.ErrNotFound))
	}
	s.invalidate(prev)
	return results
}

// SaveScope stores import or group metadata and drops queries counted against it.
func (s *Service) SaveScope(ctx context.Context, sc scope.Scope) error {
	if sc.ID == "" {
		return fmt.Errorf("scope id is required: %w", domain.ErrInvalidRecord)
	}
	if sc.Kind != scope.KindImport && sc.Kind != scope.KindGroup {
		return fmt.Errorf("scope kind %q: %w", sc.Kind, domain.ErrInvalidRecord)
	}
	if sc.SuccessCount < 0 {
		return fmt.Errorf("scope success count must be non-negative: %w", domain.ErrInvalidRecord)
	}
	if err := s.scopes.Save(ctx, sc); err != nil {
		return fmt.Errorf("save scope: %w", err)
	}
	s.cache.InvalidateScope(sc.ID)
	return nil
}

func (s *Service) invalidate(records []*image.Record) {
	var scopes []string
	for _, r := range records {
		for _, id := range r.Scopes {
			if !slices.Contains(scopes, id) {
				scopes = append(scopes, id)
			}
		}
	}
	n := s.cache.InvalidateWrites(scopes)
	s.logger.Debug("query caches invalidated", zap.Strings("scopes", scopes), zap.Int("entries", n))
}

func recordIDs(records []*image.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		if r != nil {
			out[i] = r.ID
		}
	}
	return out
}
