// Package memory is an in-process catalog backed by roaring posting bitmaps.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kailas-cloud/imgdex/internal/db"
	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/scope"
)

// Compile-time check: Store implements db.Catalog.
var _ db.Catalog = (*Store)(nil)

// Store keeps image records in slots addressed by uint32 row ids.
// Tags and scopes are indexed as posting bitmaps over those rows.
type Store struct {
	mu     sync.RWMutex
	rows   []*image.Record
	byID   map[string]uint32
	free   []uint32
	live   *roaring.Bitmap
	tags   map[string]*roaring.Bitmap
	scopes map[string]*roaring.Bitmap
	info   map[string]scope.Scope
	closed bool
}

// NewStore creates an empty in-memory catalog.
func NewStore() *Store {
	return &Store{
		byID:   make(map[string]uint32),
		live:   roaring.New(),
		tags:   make(map[string]*roaring.Bitmap),
		scopes: make(map[string]*roaring.Bitmap),
		info:   make(map[string]scope.Scope),
	}
}

// Ping reports whether the store is still open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("ping: store closed")
	}
	return nil
}

// Close marks the store closed. Data stays readable for in-flight callers.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// SaveImages inserts or replaces records by id.
func (s *Store) SaveImages(_ context.Context, records []*image.Record) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return &db.Error{Op: db.OpInsert, Err: err}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		rec := r.Clone()
		rec.Normalize()

		row, ok := s.byID[rec.ID]
		if ok {
			s.unindex(row)
		} else {
			row = s.allocRow()
			s.byID[rec.ID] = row
		}
		s.rows[row] = rec
		s.index(row)
	}
	return nil
}

// DeleteImages removes records by id. Unknown ids are ignored.
func (s *Store) DeleteImages(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		row, ok := s.byID[id]
		if !ok {
			continue
		}
		s.unindex(row)
		s.rows[row] = nil
		delete(s.byID, id)
		s.free = append(s.free, row)
	}
	return nil
}

// LoadImages returns copies of the records for ids in request order, skipping unknown ids.
func (s *Store) LoadImages(_ context.Context, ids []string) ([]*image.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*image.Record, 0, len(ids))
	for _, id := range ids {
		if row, ok := s.byID[id]; ok {
			out = append(out, s.rows[row].Clone())
		}
	}
	return out, nil
}

// LoadScope returns scope metadata, or db.ErrKeyNotFound.
func (s *Store) LoadScope(_ context.Context, id string) (scope.Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.info[id]
	if !ok {
		return scope.Scope{}, db.ErrKeyNotFound
	}
	return sc, nil
}

// SaveScope stores scope metadata.
func (s *Store) SaveScope(_ context.Context, sc scope.Scope) error {
	if sc.ID == "" {
		return &db.Error{Op: db.OpInsert, Err: fmt.Errorf("scope id is required")}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sc.Known = true
	s.info[sc.ID] = sc
	return nil
}

func (s *Store) allocRow() uint32 {
	if n := len(s.free); n > 0 {
		row := s.free[n-1]
		s.free = s.free[:n-1]
		return row
	}
	s.rows = append(s.rows, nil)
	return uint32(len(s.rows) - 1) //nolint:gosec // row count stays far below 2^32
}

func (s *Store) index(row uint32) {
	r := s.rows[row]
	s.live.Add(row)
	for _, t := range r.Tags {
		posting(s.tags, t).Add(row)
	}
	for _, sc := range r.Scopes {
		posting(s.scopes, sc).Add(row)
	}
}

func (s *Store) unindex(row uint32) {
	r := s.rows[row]
	s.live.Remove(row)
	for _, t := range r.Tags {
		drop(s.tags, t, row)
	}
	for _, sc := range r.Scopes {
		drop(s.scopes, sc, row)
	}
}

func posting(m map[string]*roaring.Bitmap, key string) *roaring.Bitmap {
	bm, ok := m[key]
	if !ok {
		bm = roaring.New()
		m[key] = bm
	}
	return bm
}

func drop(m map[string]*roaring.Bitmap, key string, row uint32) {
	bm, ok := m[key]
	if !ok {
		return
	}
	bm.Remove(row)
	if bm.IsEmpty() {
		delete(m, key)
	}
}
