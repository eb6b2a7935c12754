package imgdex

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/imgdex/internal/domain"
	"github.com/kailas-cloud/imgdex/internal/domain/search/bounds"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/request"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
	"github.com/kailas-cloud/imgdex/internal/domain/search/sortkey"
	queryuc "github.com/kailas-cloud/imgdex/internal/usecase/query"
)

// RangeField names a numeric image attribute that can be range-filtered.
type RangeField string

// Range-filterable fields. Uploaded compares unix seconds.
const (
	RangeWidth    RangeField = "width"
	RangeHeight   RangeField = "height"
	RangeSize     RangeField = "size"
	RangeUploaded RangeField = "time"
	RangeTagCount RangeField = "tag_count"
)

// Unbounded leaves one side of a range open.
const Unbounded = bounds.Unbounded

// QueryBuilder is a fluent builder for image queries.
type QueryBuilder struct {
	exec *queryuc.Executor

	importID, groupID string
	all, anyOf, none  []string
	complex           []string
	ranges            bounds.Ranges

	sort string
	dir  sortkey.Direction

	target      *similarity.Target
	preferSpeed bool
	baseCount   int

	offset, limit int
	force         bool

	errs []error
}

func newQueryBuilder(exec *queryuc.Executor) *QueryBuilder {
	return &QueryBuilder{
		exec:   exec,
		ranges: bounds.OpenRanges(),
		dir:    sortkey.Asc,
	}
}

// Import restricts results to one import.
func (b *QueryBuilder) Import(id string) *QueryBuilder {
	b.importID = id
	return b
}

// Group restricts results to one user group.
func (b *QueryBuilder) Group(id string) *QueryBuilder {
	b.groupID = id
	return b
}

// All requires every tag.
func (b *QueryBuilder) All(tags ...string) *QueryBuilder {
	b.all = append(b.all, tags...)
	return b
}

// Any requires at least one of the tags.
func (b *QueryBuilder) Any(tags ...string) *QueryBuilder {
	b.anyOf = append(b.anyOf, tags...)
	return b
}

// None excludes every tag.
func (b *QueryBuilder) None(tags ...string) *QueryBuilder {
	b.none = append(b.none, tags...)
	return b
}

// Or adds an alternative branch. All/Any/None together form one more branch,
// and a record matches when it satisfies any branch in full.
func (b *QueryBuilder) Or(all, anyOf, none []string) *QueryBuilder {
	b.complex = append(b.complex, filter.NewBranch(all, anyOf, none).String())
	return b
}

// Complex adds branches in the "all%any%none" text form with comma-separated tags.
// Malformed entries are dropped.
func (b *QueryBuilder) Complex(branches ...string) *QueryBuilder {
	b.complex = append(b.complex, branches...)
	return b
}

// Range bounds a numeric field inclusively. Pass Unbounded to leave a side open.
func (b *QueryBuilder) Range(f RangeField, lo, hi int64) *QueryBuilder {
	bound := bounds.Between(lo, hi)
	switch f {
	case RangeWidth:
		b.ranges.Width = bound
	case RangeHeight:
		b.ranges.Height = bound
	case RangeSize:
		b.ranges.Size = bound
	case RangeUploaded:
		b.ranges.Time = bound
	case RangeTagCount:
		b.ranges.TagCount = bound
	default:
		b.errs = append(b.errs, fmt.Errorf("unknown range field %q", f))
	}
	return b
}

// Rating bounds a named rating inclusively.
func (b *QueryBuilder) Rating(name string, lo, hi int64) *QueryBuilder {
	b.ranges.Rating = bounds.Between(lo, hi)
	b.ranges.RatingName = name
	return b
}

// SortBy orders results by key ("uploaded", "rating:quality", "color:red", ...).
// Unknown keys fall back to id ascending.
func (b *QueryBuilder) SortBy(key string, desc bool) *QueryBuilder {
	b.sort = key
	b.dir = sortkey.Asc
	if desc {
		b.dir = sortkey.Desc
	}
	return b
}

// Random shuffles matches once; later pages of the same query keep that order.
func (b *QueryBuilder) Random() *QueryBuilder {
	return b.SortBy(string(sortkey.Random), false)
}

// SimilarTo ranks matches by perceptual-hash similarity to h. mode is one of
// "average", "difference", "wavelet", "perceptual", "color" or "all" (default).
// Only matches scoring above minSimilarity (0..100) are returned.
func (b *QueryBuilder) SimilarTo(h Hashes, mode string, minSimilarity float64) *QueryBuilder {
	m, err := similarity.ParseMode(mode)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	t := similarity.Target{
		Hashes:         h.internal(),
		MinSimilarity:  minSimilarity,
		Mode:           m,
		BucketVariance: similarity.NoBucketVariance,
	}
	if b.target != nil {
		t.Buckets, t.BucketVariance = b.target.Buckets, b.target.BucketVariance
	}
	b.target = &t
	return b
}

// Buckets skips candidates whose colour buckets differ from buckets by more
// than variance in any position. Requires SimilarTo.
func (b *QueryBuilder) Buckets(buckets []uint8, variance int) *QueryBuilder {
	if b.target == nil {
		b.errs = append(b.errs, errors.New("buckets require a similarity target"))
		return b
	}
	b.target.Buckets = append([]uint8(nil), buckets...)
	b.target.BucketVariance = variance
	return b
}

// PreferSpeed estimates the total instead of counting when the count policy allows.
func (b *QueryBuilder) PreferSpeed() *QueryBuilder {
	b.preferSpeed = true
	return b
}

// BaseCount is the total reported for an unfiltered query over an unknown scope.
func (b *QueryBuilder) BaseCount(n int) *QueryBuilder {
	b.baseCount = n
	return b
}

// Page selects the window of ids to return. limit <= 0 uses the default page size.
func (b *QueryBuilder) Page(offset, limit int) *QueryBuilder {
	b.offset = offset
	b.limit = limit
	return b
}

// Force bypasses cached plans and pages for this query.
func (b *QueryBuilder) Force() *QueryBuilder {
	b.force = true
	return b
}

// Fingerprint returns the cache identity of the query.
func (b *QueryBuilder) Fingerprint() (string, error) {
	d, err := b.build()
	if err != nil {
		return "", err
	}
	return b.exec.Fingerprint(&d), nil
}

// Do runs the query and waits for the page.
func (b *QueryBuilder) Do(ctx context.Context) (Page, error) {
	return b.Start(ctx).Wait(ctx)
}

// Start runs the query in the background.
func (b *QueryBuilder) Start(ctx context.Context) *Pending {
	d, err := b.build()
	if err != nil {
		return failed(err)
	}
	return &Pending{inner: b.exec.Execute(ctx, d, b.offset, b.limit, b.force)}
}

// Submit runs the query for view v, superseding the view's earlier queries.
func (b *QueryBuilder) Submit(ctx context.Context, v *View) *Pending {
	d, err := b.build()
	if err != nil {
		return failed(err)
	}
	return &Pending{inner: v.inner.Submit(ctx, d, b.offset, b.limit, b.force)}
}

func (b *QueryBuilder) build() (request.Description, error) {
	if err := errors.Join(b.errs...); err != nil {
		return request.Description{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}
	f := b.exec.CompileTagFilter(b.all, b.anyOf, b.none, b.complex)
	d, err := request.New(b.importID, b.groupID, f, b.ranges, b.sort, b.dir, b.target, b.preferSpeed, b.baseCount)
	if err != nil {
		return request.Description{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}
	return d, nil
}

func failed(err error) *Pending {
	return &Pending{inner: queryuc.Failed(err)}
}
