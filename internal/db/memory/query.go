package memory

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kailas-cloud/imgdex/internal/db"
	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/page"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
	"github.com/kailas-cloud/imgdex/internal/domain/search/sortkey"
)

// FindImages returns matching ids in the requested order and window.
func (s *Store) FindImages(_ context.Context, q *db.ImageQuery) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := s.match(q)
	key, dir := q.SortOrStable()
	sortkey.Sort(matches, key, dir, nil)

	ids := make([]string, len(matches))
	for i, r := range matches {
		ids[i] = r.ID
	}
	return page.Slice(ids, q.Offset, q.Limit), nil
}

// CountImages returns the number of matches, ignoring the window.
func (s *Store) CountImages(_ context.Context, q *db.ImageQuery) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.match(q)), nil
}

// LoadCandidates returns the similarity fields of every match, in id order.
func (s *Store) LoadCandidates(_ context.Context, q *db.ImageQuery) ([]similarity.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := s.match(q)
	sortkey.Sort(matches, sortkey.Default, sortkey.Asc, nil)
	out := make([]similarity.Candidate, len(matches))
	for i, r := range matches {
		out[i] = r.Clone().Candidate()
	}
	return out, nil
}

// match narrows rows with bitmaps first, then checks branches and ranges per record.
func (s *Store) match(q *db.ImageQuery) []*image.Record {
	rows := s.prefilter(q)
	if rows.IsEmpty() {
		return nil
	}

	out := make([]*image.Record, 0, rows.GetCardinality())
	it := rows.Iterator()
	for it.HasNext() {
		r := s.rows[it.Next()]
		if !q.Filter.Match(r.HasTag) {
			continue
		}
		if !r.InRanges(q.Ranges) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *Store) prefilter(q *db.ImageQuery) *roaring.Bitmap {
	rows := s.live.Clone()

	for _, id := range q.Scopes {
		bm, ok := s.scopes[id]
		if !ok {
			return roaring.New()
		}
		rows.And(bm)
	}

	g := q.Filter.Global()
	for _, t := range g.All {
		bm, ok := s.tags[t]
		if !ok {
			return roaring.New()
		}
		rows.And(bm)
	}
	if len(g.Any) > 0 {
		rows.And(s.union(g.Any))
	}
	if len(g.None) > 0 {
		rows.AndNot(s.union(g.None))
	}
	return rows
}

func (s *Store) union(tags filter.TagSet) *roaring.Bitmap {
	bms := make([]*roaring.Bitmap, 0, len(tags))
	for _, t := range tags {
		if bm, ok := s.tags[t]; ok {
			bms = append(bms, bm)
		}
	}
	return roaring.FastOr(bms...)
}
