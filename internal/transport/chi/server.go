package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/imgdex/internal/domain"
	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/scope"
	"github.com/kailas-cloud/imgdex/internal/domain/search/request"
	"github.com/kailas-cloud/imgdex/internal/domain/search/sortkey"
	logpkg "github.com/kailas-cloud/imgdex/internal/logger"
	cataloguc "github.com/kailas-cloud/imgdex/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/imgdex/internal/usecase/health"
	queryuc "github.com/kailas-cloud/imgdex/internal/usecase/query"
	"github.com/kailas-cloud/imgdex/internal/version"
)

const maxBatchSize = cataloguc.MaxBatchSize

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the query and catalog HTTP API.
type Server struct {
	query           *queryuc.Executor
	catalog         *cataloguc.Service
	health          *healthuc.Service
	logger          *zap.Logger
	defaultPageSize int
	maxPageSize     int
	errorHandlers   []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	query *queryuc.Executor,
	catalog *cataloguc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		query:           query,
		catalog:         catalog,
		health:          health,
		logger:          logger,
		defaultPageSize: request.DefaultLimit,
		maxPageSize:     request.MaxLimit,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery),
		sentinelHandler(domain.ErrInvalidRecord, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrSuperseded, http.StatusConflict, CodeSuperseded),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, CodeStoreUnavailable),
	}
	return s
}

// WithPagination configures the default and maximum page size.
func (s *Server) WithPagination(defaultSize, maxSize int) *Server {
	if maxSize > 0 {
		s.maxPageSize = maxSize
	}
	if defaultSize > 0 {
		s.defaultPageSize = min(defaultSize, s.maxPageSize)
	}
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chirouter.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chirouter.Router) {
		r.Get("/images", s.ListImages)
		r.Put("/images", s.BatchUpsert)
		r.Delete("/images", s.BatchDelete)
		r.Get("/images/{id}", s.GetImage)

		r.Post("/queries", s.RunQuery)
		r.Post("/queries/compile", s.CompileQuery)
		r.Get("/queries/{fingerprint}/count", s.GetQueryCount)

		r.Put("/scopes/{id}", s.PutScope)
		r.Post("/scopes/{id}/invalidate", s.InvalidateScope)
	})
}

// ListImagesParams mirrors the query string of GET /v1/images.
type ListImagesParams struct {
	Import      *string
	Group       *string
	All         *[]string
	Any         *[]string
	None        *[]string
	Complex     *[]string
	Sort        *string
	Direction   *string
	Offset      *int
	Limit       *int
	PreferSpeed *bool
	Force       *bool
	BaseCount   *int
	WidthMin    *int64
	WidthMax    *int64
	HeightMin   *int64
	HeightMax   *int64
	SizeMin     *int64
	SizeMax     *int64
	TimeMin     *int64
	TimeMax     *int64
	TagCountMin *int64
	TagCountMax *int64
	RatingMin   *int64
	RatingMax   *int64
	RatingName  *string
}

func bindListImagesParams(r *http.Request) (ListImagesParams, error) {
	var p ListImagesParams
	q := r.URL.Query()
	binds := []struct {
		name string
		dest any
	}{
		{"import", &p.Import}, {"group", &p.Group},
		{"all", &p.All}, {"any", &p.Any}, {"none", &p.None}, {"complex", &p.Complex},
		{"sort", &p.Sort}, {"direction", &p.Direction},
		{"offset", &p.Offset}, {"limit", &p.Limit},
		{"prefer_speed", &p.PreferSpeed}, {"force", &p.Force}, {"base_count", &p.BaseCount},
		{"width_min", &p.WidthMin}, {"width_max", &p.WidthMax},
		{"height_min", &p.HeightMin}, {"height_max", &p.HeightMax},
		{"size_min", &p.SizeMin}, {"size_max", &p.SizeMax},
		{"time_min", &p.TimeMin}, {"time_max", &p.TimeMax},
		{"tag_count_min", &p.TagCountMin}, {"tag_count_max", &p.TagCountMax},
		{"rating_min", &p.RatingMin}, {"rating_max", &p.RatingMax},
		{"rating_name", &p.RatingName},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			return ListImagesParams{}, fmt.Errorf("invalid format for parameter %s: %w", b.name, err)
		}
	}
	return p, nil
}

func (p *ListImagesParams) toRequest() QueryRequest {
	bound := func(lo, hi *int64) *RangeBound {
		if lo == nil && hi == nil {
			return nil
		}
		return &RangeBound{Min: lo, Max: hi}
	}
	req := QueryRequest{
		ImportID:    deref(p.Import),
		GroupID:     deref(p.Group),
		Sort:        deref(p.Sort),
		Direction:   deref(p.Direction),
		Offset:      deref(p.Offset),
		Limit:       deref(p.Limit),
		PreferSpeed: deref(p.PreferSpeed),
		Force:       deref(p.Force),
		BaseCount:   deref(p.BaseCount),
		Tags: TagConditions{
			All:     deref(p.All),
			Any:     deref(p.Any),
			None:    deref(p.None),
			Complex: deref(p.Complex),
		},
		Ranges: &RangeSet{
			Width:      bound(p.WidthMin, p.WidthMax),
			Height:     bound(p.HeightMin, p.HeightMax),
			Size:       bound(p.SizeMin, p.SizeMax),
			Time:       bound(p.TimeMin, p.TimeMax),
			TagCount:   bound(p.TagCountMin, p.TagCountMax),
			Rating:     bound(p.RatingMin, p.RatingMax),
			RatingName: deref(p.RatingName),
		},
	}
	return req
}

// ListImages handles GET /v1/images: a tag query expressed as query parameters.
func (s *Server) ListImages(w http.ResponseWriter, r *http.Request) {
	params, err := bindListImagesParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	s.runQuery(w, r, params.toRequest())
}

// RunQuery handles POST /v1/queries.
func (s *Server) RunQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s.runQuery(w, r, req)
}

func (s *Server) runQuery(w http.ResponseWriter, r *http.Request, req QueryRequest) {
	d, err := s.describe(&req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	limit = min(limit, s.maxPageSize)

	res, err := s.query.Query(r.Context(), d, req.Offset, limit, req.Force)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logpkg.FromContext(r.Context(), s.logger).Debug("client went away before the query finished")
			return
		}
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queryToResponse(&res))
}

// CompileQuery handles POST /v1/queries/compile: reports the compiled filter and fingerprint.
func (s *Server) CompileQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	d, err := s.describe(&req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	branches := make([]BranchResponse, len(d.Filter.Branches))
	for i, b := range d.Filter.Branches {
		branches[i] = branchToResponse(b)
	}
	writeJSON(w, http.StatusOK, CompileResponse{
		Fingerprint: s.query.Fingerprint(&d),
		Type:        string(d.Type()),
		Global:      branchToResponse(d.Filter.Global()),
		Branches:    branches,
	})
}

// GetQueryCount handles GET /v1/queries/{fingerprint}/count.
func (s *Server) GetQueryCount(w http.ResponseWriter, r *http.Request) {
	var fp string
	if !bindPath(w, r, "fingerprint", &fp) {
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Fingerprint: fp, Count: s.query.GetLastCount(fp)})
}

// GetImage handles GET /v1/images/{id}.
func (s *Server) GetImage(w http.ResponseWriter, r *http.Request) {
	var id string
	if !bindPath(w, r, "id", &id) {
		return
	}
	rec, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, imageToBody(rec))
}

// BatchUpsert handles PUT /v1/images.
func (s *Server) BatchUpsert(w http.ResponseWriter, r *http.Request) {
	var req BatchUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Images) == 0 || len(req.Images) > maxBatchSize {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("images count must be between 1 and %d", maxBatchSize))
		return
	}

	records := make([]*image.Record, 0, len(req.Images))
	for i := range req.Images {
		rec, err := imageFromBody(&req.Images[i])
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
			return
		}
		records = append(records, rec)
	}

	writeJSON(w, http.StatusOK, batchToResponse(s.catalog.Upsert(r.Context(), records)))
}

// BatchDelete handles DELETE /v1/images.
func (s *Server) BatchDelete(w http.ResponseWriter, r *http.Request) {
	var req BatchDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.IDs) == 0 || len(req.IDs) > maxBatchSize {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("ids count must be between 1 and %d", maxBatchSize))
		return
	}

	writeJSON(w, http.StatusOK, batchToResponse(s.catalog.Delete(r.Context(), req.IDs)))
}

// PutScope handles PUT /v1/scopes/{id}.
func (s *Server) PutScope(w http.ResponseWriter, r *http.Request) {
	var id string
	if !bindPath(w, r, "id", &id) {
		return
	}
	var req ScopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	sc := scope.Scope{ID: id, Kind: scope.Kind(req.Kind), SuccessCount: req.SuccessCount, Known: true}
	if err := s.catalog.SaveScope(r.Context(), sc); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InvalidateScope handles POST /v1/scopes/{id}/invalidate.
func (s *Server) InvalidateScope(w http.ResponseWriter, r *http.Request) {
	var id string
	if !bindPath(w, r, "id", &id) {
		return
	}
	writeJSON(w, http.StatusOK, InvalidateResponse{Scope: id, Invalidated: s.query.InvalidateScope(id)})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
		Caches: report.Caches,
		Build:  version.String(),
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) describe(req *QueryRequest) (request.Description, error) {
	f := s.query.CompileTagFilter(req.Tags.All, req.Tags.Any, req.Tags.None, req.Tags.Complex)
	target, err := req.Similarity.toTarget()
	if err != nil {
		return request.Description{}, fmt.Errorf("similarity: %w: %w", domain.ErrInvalidQuery, err)
	}
	d, err := request.New(
		req.ImportID, req.GroupID, f, req.Ranges.toRanges(),
		req.Sort, sortkey.ParseDirection(req.Direction),
		target, req.PreferSpeed, req.BaseCount,
	)
	if err != nil {
		return request.Description{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}
	return d, nil
}

func bindPath(w http.ResponseWriter, r *http.Request, name string, dest *string) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, chirouter.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest,
			fmt.Sprintf("Invalid format for parameter %s: %s", name, err))
		return false
	}
	return true
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
// Validation errors carry the offending input, so their full text is returned.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidQuery) || errors.Is(err, domain.ErrInvalidRecord) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrSuperseded,
		domain.ErrStoreUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func batchErrorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrInvalidRecord):
		return CodeValidationFailed
	case errors.Is(err, domain.ErrStoreUnavailable):
		return CodeStoreUnavailable
	default:
		return CodeInternalError
	}
}
