package chi

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/imgdex/internal/domain"
	dombatch "github.com/kailas-cloud/imgdex/internal/domain/batch"
	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/search/bounds"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/result"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
)

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeInvalidQuery     ErrorCode = "invalid_query"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeNotFound         ErrorCode = "not_found"
	CodeSuperseded       ErrorCode = "superseded"
	CodeStoreUnavailable ErrorCode = "store_unavailable"
	CodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// TagConditions holds the four tag inputs of a query.
// Complex entries use the "all%any%none" encoding with comma-separated tags.
type TagConditions struct {
	All     []string `json:"all,omitempty"`
	Any     []string `json:"any,omitempty"`
	None    []string `json:"none,omitempty"`
	Complex []string `json:"complex,omitempty"`
}

// RangeBound is an inclusive range; a nil side is open.
type RangeBound struct {
	Min *int64 `json:"min,omitempty"`
	Max *int64 `json:"max,omitempty"`
}

// RangeSet groups the numeric range filters.
type RangeSet struct {
	Width    *RangeBound `json:"width,omitempty"`
	Height   *RangeBound `json:"height,omitempty"`
	Size     *RangeBound `json:"size,omitempty"`
	Time     *RangeBound `json:"time,omitempty"`
	TagCount *RangeBound `json:"tag_count,omitempty"`
	Rating   *RangeBound `json:"rating,omitempty"`
	// RatingName selects the rating Rating applies to.
	RatingName string `json:"rating_name,omitempty"`
}

// HashSet carries the five perceptual hashes as hex strings.
type HashSet struct {
	Average    string `json:"average,omitempty"`
	Difference string `json:"difference,omitempty"`
	Wavelet    string `json:"wavelet,omitempty"`
	Perceptual string `json:"perceptual,omitempty"`
	Color      string `json:"color,omitempty"`
}

// SimilarityRequest anchors a similarity query.
type SimilarityRequest struct {
	Hashes  HashSet `json:"hashes"`
	Buckets []int   `json:"buckets,omitempty"`
	// BucketVariance defaults to -1 (prefilter off).
	BucketVariance *int    `json:"bucket_variance,omitempty"`
	MinSimilarity  float64 `json:"min_similarity"`
	Mode           string  `json:"mode,omitempty"`
}

// QueryRequest is the body of POST /v1/queries.
type QueryRequest struct {
	ImportID    string             `json:"import_id,omitempty"`
	GroupID     string             `json:"group_id,omitempty"`
	Tags        TagConditions      `json:"tags"`
	Ranges      *RangeSet          `json:"ranges,omitempty"`
	Sort        string             `json:"sort,omitempty"`
	Direction   string             `json:"direction,omitempty"`
	Similarity  *SimilarityRequest `json:"similarity,omitempty"`
	PreferSpeed bool               `json:"prefer_speed,omitempty"`
	BaseCount   int                `json:"base_count,omitempty"`
	Offset      int                `json:"offset,omitempty"`
	Limit       int                `json:"limit,omitempty"`
	Force       bool               `json:"force,omitempty"`
}

// QueryResponse is one page of query results.
type QueryResponse struct {
	Fingerprint string   `json:"fingerprint"`
	IDs         []string `json:"ids"`
	Offset      int      `json:"offset"`
	Limit       int      `json:"limit"`
	Total       int      `json:"total"`
	HasMore     bool     `json:"has_more"`
	Cached      bool     `json:"cached"`
}

// BranchResponse is one compiled alternative.
type BranchResponse struct {
	All  []string `json:"all"`
	Any  []string `json:"any"`
	None []string `json:"none"`
}

// CompileResponse describes how a query compiles without running it.
type CompileResponse struct {
	Fingerprint string           `json:"fingerprint"`
	Type        string           `json:"type"`
	Global      BranchResponse   `json:"global"`
	Branches    []BranchResponse `json:"branches"`
}

// CountResponse is the last known total of a query.
type CountResponse struct {
	Fingerprint string `json:"fingerprint"`
	Count       int    `json:"count"`
}

// InvalidateResponse reports how many cache entries were dropped.
type InvalidateResponse struct {
	Scope       string `json:"scope"`
	Invalidated int    `json:"invalidated"`
}

// ImageBody is the wire form of an image record.
type ImageBody struct {
	ID         string             `json:"id"`
	Path       string             `json:"path,omitempty"`
	Name       string             `json:"name,omitempty"`
	Size       int64              `json:"size"`
	UploadedAt *time.Time         `json:"uploaded_at,omitempty"`
	CreatedAt  *time.Time         `json:"created_at,omitempty"`
	ModifiedAt *time.Time         `json:"modified_at,omitempty"`
	EditedAt   *time.Time         `json:"edited_at,omitempty"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Tags       []string           `json:"tags,omitempty"`
	Ratings    map[string]float64 `json:"ratings,omitempty"`
	Colors     map[string]float64 `json:"colors,omitempty"`
	Hashes     *HashSet           `json:"hashes,omitempty"`
	Buckets    []int              `json:"buckets,omitempty"`
	Scopes     []string           `json:"scopes,omitempty"`
}

// BatchUpsertRequest is the body of PUT /v1/images.
type BatchUpsertRequest struct {
	Images []ImageBody `json:"images"`
}

// BatchDeleteRequest is the body of DELETE /v1/images.
type BatchDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BatchResultItem is the outcome of one batch item.
type BatchResultItem struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// BatchResponse summarizes a batch write.
type BatchResponse struct {
	Items     []BatchResultItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// ScopeRequest is the body of PUT /v1/scopes/{id}.
type ScopeRequest struct {
	Kind         string `json:"kind"`
	SuccessCount int    `json:"success_count"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Caches map[string]int    `json:"caches,omitempty"`
	Build  string            `json:"build"`
}

func queryToResponse(r *result.Result) QueryResponse {
	ids := r.IDs()
	if ids == nil {
		ids = []string{}
	}
	return QueryResponse{
		Fingerprint: r.Fingerprint(),
		IDs:         ids,
		Offset:      r.Offset(),
		Limit:       r.Limit(),
		Total:       r.Total(),
		HasMore:     r.HasMore(),
		Cached:      r.Cached(),
	}
}

func branchToResponse(b filter.Branch) BranchResponse {
	return BranchResponse{All: nonNil(b.All), Any: nonNil(b.Any), None: nonNil(b.None)}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (b *RangeBound) toBound() bounds.Bound {
	if b == nil {
		return bounds.Open()
	}
	out := bounds.Open()
	if b.Min != nil {
		out.Min = *b.Min
	}
	if b.Max != nil {
		out.Max = *b.Max
	}
	return out
}

func (rs *RangeSet) toRanges() bounds.Ranges {
	if rs == nil {
		return bounds.OpenRanges()
	}
	return bounds.Ranges{
		Width:      rs.Width.toBound(),
		Height:     rs.Height.toBound(),
		Size:       rs.Size.toBound(),
		Time:       rs.Time.toBound(),
		TagCount:   rs.TagCount.toBound(),
		Rating:     rs.Rating.toBound(),
		RatingName: rs.RatingName,
	}
}

func (h HashSet) toHashes() (similarity.Hashes, error) {
	var out similarity.Hashes
	fields := []struct {
		name string
		raw  string
		dst  *uint64
	}{
		{"average", h.Average, &out.Average},
		{"difference", h.Difference, &out.Difference},
		{"wavelet", h.Wavelet, &out.Wavelet},
		{"perceptual", h.Perceptual, &out.Perceptual},
		{"color", h.Color, &out.Color},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := strconv.ParseUint(f.raw, 16, 64)
		if err != nil {
			return similarity.Hashes{}, fmt.Errorf("%s hash %q: not a 64-bit hex value", f.name, f.raw)
		}
		*f.dst = v
	}
	return out, nil
}

func hashesToWire(h *similarity.Hashes) *HashSet {
	if h == nil {
		return nil
	}
	hex := func(v uint64) string { return strconv.FormatUint(v, 16) }
	return &HashSet{
		Average:    hex(h.Average),
		Difference: hex(h.Difference),
		Wavelet:    hex(h.Wavelet),
		Perceptual: hex(h.Perceptual),
		Color:      hex(h.Color),
	}
}

func bucketsFromWire(in []int) ([]uint8, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]uint8, len(in))
	for i, v := range in {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("bucket %d out of range: %d", i, v)
		}
		out[i] = uint8(v)
	}
	return out, nil
}

func bucketsToWire(in []uint8) []int {
	if len(in) == 0 {
		return nil
	}
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}

func (s *SimilarityRequest) toTarget() (*similarity.Target, error) {
	if s == nil {
		return nil, nil
	}
	hashes, err := s.Hashes.toHashes()
	if err != nil {
		return nil, err
	}
	buckets, err := bucketsFromWire(s.Buckets)
	if err != nil {
		return nil, err
	}
	mode, err := similarity.ParseMode(s.Mode)
	if err != nil {
		return nil, err
	}
	variance := similarity.NoBucketVariance
	if s.BucketVariance != nil {
		variance = *s.BucketVariance
	}
	return &similarity.Target{
		Hashes:         hashes,
		Buckets:        buckets,
		BucketVariance: variance,
		MinSimilarity:  s.MinSimilarity,
		Mode:           mode,
	}, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func timeVal(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func imageToBody(r *image.Record) ImageBody {
	return ImageBody{
		ID:         r.ID,
		Path:       r.Path,
		Name:       r.Name,
		Size:       r.Size,
		UploadedAt: timePtr(r.UploadedAt),
		CreatedAt:  timePtr(r.CreatedAt),
		ModifiedAt: timePtr(r.ModifiedAt),
		EditedAt:   timePtr(r.EditedAt),
		Width:      r.Width,
		Height:     r.Height,
		Tags:       r.Tags,
		Ratings:    r.Ratings,
		Colors:     r.Colors,
		Hashes:     hashesToWire(r.Hashes),
		Buckets:    bucketsToWire(r.Buckets),
		Scopes:     r.Scopes,
	}
}

func imageFromBody(b *ImageBody) (*image.Record, error) {
	r := &image.Record{
		ID:         b.ID,
		Path:       b.Path,
		Name:       b.Name,
		Size:       b.Size,
		UploadedAt: timeVal(b.UploadedAt),
		CreatedAt:  timeVal(b.CreatedAt),
		ModifiedAt: timeVal(b.ModifiedAt),
		EditedAt:   timeVal(b.EditedAt),
		Width:      b.Width,
		Height:     b.Height,
		Tags:       filter.NewTagSet(b.Tags...),
		Ratings:    b.Ratings,
		Colors:     b.Colors,
		Scopes:     b.Scopes,
	}
	if b.Hashes != nil {
		h, err := b.Hashes.toHashes()
		if err != nil {
			return nil, fmt.Errorf("image %s: %w: %w", b.ID, domain.ErrInvalidRecord, err)
		}
		r.Hashes = &h
	}
	buckets, err := bucketsFromWire(b.Buckets)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w: %w", b.ID, domain.ErrInvalidRecord, err)
	}
	r.Buckets = buckets
	return r, nil
}

func batchToResponse(results []dombatch.Result) BatchResponse {
	items := make([]BatchResultItem, len(results))
	for i, r := range results {
		items[i] = BatchResultItem{ID: r.ID(), Status: string(r.Status())}
		if r.Err() != nil {
			items[i].Error = &ErrorResponse{Code: batchErrorCode(r.Err()), Message: safeDomainMessage(r.Err())}
		}
	}
	ok, failed := dombatch.Tally(results)
	return BatchResponse{Items: items, Succeeded: ok, Failed: failed}
}
