package image

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/imgdex/internal/domain"
	"github.com/kailas-cloud/imgdex/internal/domain/search/bounds"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
)

// Record is a catalog entry keyed by the content hash of the image file.
type Record struct {
	ID         string
	Path       string
	Name       string
	Size       int64
	UploadedAt time.Time
	CreatedAt  time.Time
	ModifiedAt time.Time
	EditedAt   time.Time
	Width      int
	Height     int
	Tags       filter.TagSet
	Ratings    map[string]float64
	Colors     map[string]float64
	Hashes     *similarity.Hashes
	Buckets    []uint8
	Scopes     []string
}

// Validate checks the fields a store needs to index the record.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record id is required: %w", domain.ErrInvalidRecord)
	}
	if r.Width < 0 || r.Height < 0 || r.Size < 0 {
		return fmt.Errorf("record %s: dimensions and size must be non-negative: %w", r.ID, domain.ErrInvalidRecord)
	}
	for _, t := range r.Tags {
		if strings.ContainsAny(t, ",%") {
			return fmt.Errorf("record %s: tag %q contains a reserved character: %w", r.ID, t, domain.ErrInvalidRecord)
		}
	}
	return nil
}

// Area returns width times height.
func (r *Record) Area() int64 { return int64(r.Width) * int64(r.Height) }

// TagCount returns the number of distinct tags.
func (r *Record) TagCount() int { return len(r.Tags) }

// HasTag reports whether the record carries tag.
func (r *Record) HasTag(tag string) bool { return r.Tags.Contains(tag) }

// InScope reports whether the record belongs to scope id.
func (r *Record) InScope(id string) bool {
	for _, s := range r.Scopes {
		if s == id {
			return true
		}
	}
	return false
}

// Numeric returns the value a range filter on field compares against.
// A missing rating reads as -1 so it never satisfies a lower bound.
func (r *Record) Numeric(f bounds.Field, ratingName string) float64 {
	switch f {
	case bounds.Width:
		return float64(r.Width)
	case bounds.Height:
		return float64(r.Height)
	case bounds.Size:
		return float64(r.Size)
	case bounds.Time:
		return float64(r.UploadedAt.Unix())
	case bounds.TagCount:
		return float64(r.TagCount())
	case bounds.Rating:
		if v, ok := r.Ratings[ratingName]; ok {
			return v
		}
		return -1
	default:
		return 0
	}
}

// InRanges reports whether every bound of rs holds for the record.
func (r *Record) InRanges(rs bounds.Ranges) bool {
	for _, f := range bounds.Fields {
		b := rs.Get(f)
		if b.IsOpen() {
			continue
		}
		if !b.Contains(r.Numeric(f, rs.RatingName)) {
			return false
		}
	}
	return true
}

// Candidate projects the record onto the fields similarity ranking needs.
func (r *Record) Candidate() similarity.Candidate {
	return similarity.Candidate{ID: r.ID, Hashes: r.Hashes, Buckets: r.Buckets}
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Tags = slices.Clone(r.Tags)
	cp.Ratings = maps.Clone(r.Ratings)
	cp.Colors = maps.Clone(r.Colors)
	cp.Buckets = slices.Clone(r.Buckets)
	cp.Scopes = slices.Clone(r.Scopes)
	if r.Hashes != nil {
		h := *r.Hashes
		cp.Hashes = &h
	}
	return &cp
}

// Normalize canonicalizes tags and de-duplicates scope ids in place.
func (r *Record) Normalize() {
	r.Tags = filter.NewTagSet(r.Tags...)
	scopes := slices.Clone(r.Scopes)
	slices.Sort(scopes)
	r.Scopes = slices.DeleteFunc(slices.Compact(scopes), func(s string) bool { return s == "" })
}
