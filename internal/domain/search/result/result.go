package result

// Result is one served page of a query.
type Result struct {
	fingerprint string
	ids         []string
	offset      int
	limit       int
	total       int
	cached      bool
}

// New creates a query result. ids is copied.
func New(fingerprint string, ids []string, offset, limit, total int, cached bool) Result {
	return Result{
		fingerprint: fingerprint,
		ids:         append([]string(nil), ids...),
		offset:      offset, limit: limit,
		total: total, cached: cached,
	}
}

// Fingerprint returns the query fingerprint.
func (r *Result) Fingerprint() string { return r.fingerprint }

// IDs returns the ordered image ids of the page.
func (r *Result) IDs() []string { return r.ids }

// Offset returns the page offset.
func (r *Result) Offset() int { return r.offset }

// Limit returns the page size.
func (r *Result) Limit() int { return r.limit }

// Total returns the last known match count.
func (r *Result) Total() int { return r.total }

// Cached reports whether the page was served from the page cache.
func (r *Result) Cached() bool { return r.cached }

// HasMore reports whether more matches follow this page.
func (r *Result) HasMore() bool { return r.offset+len(r.ids) < r.total }
