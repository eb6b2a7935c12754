package imgdex

import (
	"context"
	"time"

	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/result"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
	queryuc "github.com/kailas-cloud/imgdex/internal/usecase/query"
)

// Hashes holds the five 64-bit perceptual hashes of an image.
type Hashes struct {
	Average    uint64
	Difference uint64
	Wavelet    uint64
	Perceptual uint64
	Color      uint64
}

func (h Hashes) internal() similarity.Hashes {
	return similarity.Hashes(h)
}

// Image is a catalog entry keyed by the content hash of the file.
type Image struct {
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
	Tags       []string
	Ratings    map[string]float64
	Colors     map[string]float64
	// Hashes is nil for images that have not been hashed.
	Hashes  *Hashes
	Buckets []uint8
	// Scopes lists the imports and groups the image belongs to.
	Scopes []string
}

func (i *Image) toRecord() *image.Record {
	r := &image.Record{
		ID:         i.ID,
		Path:       i.Path,
		Name:       i.Name,
		Size:       i.Size,
		UploadedAt: i.UploadedAt,
		CreatedAt:  i.CreatedAt,
		ModifiedAt: i.ModifiedAt,
		EditedAt:   i.EditedAt,
		Width:      i.Width,
		Height:     i.Height,
		Tags:       filter.TagSet(i.Tags),
		Ratings:    i.Ratings,
		Colors:     i.Colors,
		Buckets:    i.Buckets,
		Scopes:     i.Scopes,
	}
	if i.Hashes != nil {
		h := i.Hashes.internal()
		r.Hashes = &h
	}
	return r.Clone()
}

func imageFromRecord(r *image.Record) *Image {
	cp := r.Clone()
	out := &Image{
		ID:         cp.ID,
		Path:       cp.Path,
		Name:       cp.Name,
		Size:       cp.Size,
		UploadedAt: cp.UploadedAt,
		CreatedAt:  cp.CreatedAt,
		ModifiedAt: cp.ModifiedAt,
		EditedAt:   cp.EditedAt,
		Width:      cp.Width,
		Height:     cp.Height,
		Tags:       []string(cp.Tags),
		Ratings:    cp.Ratings,
		Colors:     cp.Colors,
		Buckets:    cp.Buckets,
		Scopes:     cp.Scopes,
	}
	if cp.Hashes != nil {
		h := Hashes(*cp.Hashes)
		out.Hashes = &h
	}
	return out
}

// ScopeKind distinguishes imports from user groups.
type ScopeKind string

// Scope kinds.
const (
	ScopeImport ScopeKind = "import"
	ScopeGroup  ScopeKind = "group"
)

// Scope is an import or group with the number of images it holds.
type Scope struct {
	ID           string
	Kind         ScopeKind
	SuccessCount int
}

// ItemResult is the outcome of writing or deleting one image.
type ItemResult struct {
	ID  string
	OK  bool
	Err error
}

// Page is one window of matching image ids.
type Page struct {
	Fingerprint string
	IDs         []string
	Offset      int
	Limit       int
	// Total is exact or estimated depending on the count policy.
	Total  int
	Cached bool
}

// HasMore reports whether ids exist past this page.
func (p Page) HasMore() bool { return p.Offset+len(p.IDs) < p.Total }

func pageFromResult(r result.Result) Page {
	return Page{
		Fingerprint: r.Fingerprint(),
		IDs:         r.IDs(),
		Offset:      r.Offset(),
		Limit:       r.Limit(),
		Total:       r.Total(),
		Cached:      r.Cached(),
	}
}

// Pending is a query running in the background.
type Pending struct {
	inner *queryuc.Future
}

// Done is closed once the page is available.
func (p *Pending) Done() <-chan struct{} { return p.inner.Done() }

// Wait blocks until the query finishes or ctx ends. Cancelling ctx abandons
// the wait; the query itself still completes and fills the caches.
func (p *Pending) Wait(ctx context.Context) (Page, error) {
	r, err := p.inner.Wait(ctx)
	if err != nil {
		return Page{}, err
	}
	return pageFromResult(r), nil
}

// View is a result slot, such as a gallery pane. A query submitted to a view
// supersedes the ones submitted before it; their Wait returns ErrSuperseded.
type View struct {
	inner *queryuc.View
}

// ID returns the view identifier.
func (v *View) ID() string { return v.inner.ID() }

// Current returns the last page committed to the view.
func (v *View) Current() (Page, bool) {
	r, ok := v.inner.Current()
	if !ok {
		return Page{}, false
	}
	return pageFromResult(r), true
}
