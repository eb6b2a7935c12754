package request

import (
	"fmt"

	"github.com/kailas-cloud/imgdex/internal/domain/search/bounds"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
	"github.com/kailas-cloud/imgdex/internal/domain/search/sortkey"
)

// Pagination limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Type distinguishes plain tag queries from similarity queries.
type Type string

// Query types.
const (
	TypeTags       Type = "tags"
	TypeSimilarity Type = "similarity"
)

// Description is a fully specified query. It is immutable once built.
type Description struct {
	ImportID    string
	GroupID     string
	Filter      filter.Compiled
	Ranges      bounds.Ranges
	Sort        sortkey.Key
	Direction   sortkey.Direction
	Similarity  *similarity.Target
	PreferSpeed bool
	BaseCount   int
}

// New validates and normalizes a description.
// An unknown or empty sort key falls back to identity hash ascending.
func New(
	importID, groupID string,
	f filter.Compiled,
	ranges bounds.Ranges,
	sortKey string,
	dir sortkey.Direction,
	target *similarity.Target,
	preferSpeed bool,
	baseCount int,
) (Description, error) {
	if err := ranges.Validate(); err != nil {
		return Description{}, fmt.Errorf("ranges: %w", err)
	}
	if target != nil {
		if err := target.Validate(); err != nil {
			return Description{}, fmt.Errorf("similarity: %w", err)
		}
		t := *target
		t.Buckets = append([]uint8(nil), target.Buckets...)
		target = &t
	}
	if baseCount < 0 {
		baseCount = 0
	}

	key, ok := sortkey.Parse(sortKey)
	if !ok {
		dir = sortkey.Asc
	}
	if dir != sortkey.Desc {
		dir = sortkey.Asc
	}

	return Description{
		ImportID:    importID,
		GroupID:     groupID,
		Filter:      f,
		Ranges:      ranges,
		Sort:        key,
		Direction:   dir,
		Similarity:  target,
		PreferSpeed: preferSpeed,
		BaseCount:   baseCount,
	}, nil
}

// Type reports whether the query ranks by similarity.
func (d *Description) Type() Type {
	if d.Similarity != nil {
		return TypeSimilarity
	}
	return TypeTags
}

// Scopes returns the non-empty scope ids the query is restricted to.
func (d *Description) Scopes() []string {
	var out []string
	if d.ImportID != "" {
		out = append(out, d.ImportID)
	}
	if d.GroupID != "" {
		out = append(out, d.GroupID)
	}
	return out
}

// InScope reports whether the query is restricted to scope id.
func (d *Description) InScope(id string) bool {
	return id != "" && (d.ImportID == id || d.GroupID == id)
}

// PrimaryScope is the scope whose precomputed count describes an unfiltered query.
// A group narrows an import, so it wins when both are set.
func (d *Description) PrimaryScope() string {
	if d.GroupID != "" {
		return d.GroupID
	}
	return d.ImportID
}

// IsUnfiltered reports whether nothing narrows the scope: no tags, no ranges, no similarity.
func (d *Description) IsUnfiltered() bool {
	return d.Filter.IsEmpty() && d.Ranges.IsOpen() && d.Similarity == nil
}

// ClampPage normalizes offset and limit.
func ClampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return offset, limit
}
