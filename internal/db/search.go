package db

import (
	"github.com/kailas-cloud/imgdex/internal/domain/search/bounds"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/sortkey"
)

// ListQuery is the input for a sorted, paginated FT.SEARCH.
type ListQuery struct {
	Index     string
	Query     string
	Offset    int
	Limit     int
	SortBy    string
	SortDesc  bool
	Fields    []string
	NoContent bool
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Fields map[string]string
}

// ImageQuery is a filtered, sorted window over image records.
type ImageQuery struct {
	// Scopes must all contain the image.
	Scopes    []string
	Filter    filter.Compiled
	Ranges    bounds.Ranges
	Sort      sortkey.Key
	Direction sortkey.Direction
	Offset    int
	// Limit <= 0 returns every match from Offset on.
	Limit int
}

// Unpaged returns a copy of q without offset and limit.
func (q *ImageQuery) Unpaged() *ImageQuery {
	cp := *q
	cp.Offset, cp.Limit = 0, 0
	return &cp
}

// SortOrStable returns the sort key a backend should apply. Random order is
// resolved by the caller, so backends list those ids by identity.
func (q *ImageQuery) SortOrStable() (sortkey.Key, sortkey.Direction) {
	if q.Sort.Kind == sortkey.Random || !q.Sort.IsValid() {
		return sortkey.Default, sortkey.Asc
	}
	return q.Sort, q.Direction
}
