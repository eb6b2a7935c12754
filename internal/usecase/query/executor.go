package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/imgdex/internal/domain/search/count"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/fingerprint"
	"github.com/kailas-cloud/imgdex/internal/domain/search/page"
	"github.com/kailas-cloud/imgdex/internal/domain/search/request"
	"github.com/kailas-cloud/imgdex/internal/domain/search/result"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
	"github.com/kailas-cloud/imgdex/internal/domain/search/sortkey"
	logpkg "github.com/kailas-cloud/imgdex/internal/logger"
	"github.com/kailas-cloud/imgdex/internal/metrics"
	"github.com/kailas-cloud/imgdex/internal/repository/querycache"
)

// Defaults applied by New for zero config values.
const (
	DefaultLookaheadPages = 3
	DefaultWorkers        = 4
)

// unknownTotal marks a plan whose count is estimated page by page.
const unknownTotal = -1

// Config tunes query execution.
type Config struct {
	// LookaheadPages is how many pages past the requested one a store fetch covers.
	LookaheadPages int
	// Workers bounds concurrent store operations.
	Workers     int
	CountPolicy count.Policy
}

// Executor runs queries against the store with result and page caching.
type Executor struct {
	store   Store
	scopes  ScopeRegistry
	results *querycache.ResultCache
	pages   *querycache.PageCache
	cfg     Config
	logger  *zap.Logger

	sem     *semaphore.Weighted
	group   singleflight.Group
	shuffle func([]string)

	// epoch advances on every invalidation; a run only commits to the
	// caches if no invalidation happened since it started.
	commitMu sync.RWMutex
	epoch    uint64
}

// New creates an executor. The caches are owned by the caller and may be shared.
func New(
	store Store, scopes ScopeRegistry,
	results *querycache.ResultCache, pages *querycache.PageCache,
	cfg Config, logger *zap.Logger,
) *Executor {
	if cfg.LookaheadPages < 0 {
		cfg.LookaheadPages = DefaultLookaheadPages
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if !cfg.CountPolicy.IsValid() {
		cfg.CountPolicy = count.Auto
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		store:   store,
		scopes:  scopes,
		results: results,
		pages:   pages,
		cfg:     cfg,
		logger:  logger,
		sem:     semaphore.NewWeighted(int64(cfg.Workers)),
		shuffle: func(ids []string) { sortkey.Shuffle(ids, nil) },
	}
}

// CompileTagFilter compiles raw tag lists and legacy branch strings.
// Malformed branch strings are dropped and logged.
func (e *Executor) CompileTagFilter(all, anyOf, none, complex []string) filter.Compiled {
	return filter.Compile(all, anyOf, none, complex, filter.OnMalformed(func(raw string, err error) {
		e.logger.Debug("dropped malformed branch", zap.String("raw", raw), zap.Error(err))
	}))
}

// Fingerprint returns the cache identity of d.
func (e *Executor) Fingerprint(d *request.Description) string {
	return fingerprint.Of(d)
}

// GetLastCount returns the last known match count for fingerprint, or 0.
func (e *Executor) GetLastCount(fp string) int {
	n, ok := e.results.Total(fp)
	if !ok || n == unknownTotal {
		return 0
	}
	return n
}

// InvalidateScope drops cached plans and pages restricted to scope id.
func (e *Executor) InvalidateScope(id string) int {
	e.commitMu.Lock()
	e.epoch++
	n := e.results.InvalidateScope(id) + e.pages.InvalidateScope(id)
	e.commitMu.Unlock()
	e.logger.Debug("scope invalidated", zap.String("scope", id), zap.Int("entries", n))
	return n
}

// InvalidateWrites drops cached state that a write to records of the given
// scopes could make stale, including every unscoped query.
func (e *Executor) InvalidateWrites(scopes []string) int {
	e.commitMu.Lock()
	e.epoch++
	n := e.results.InvalidateWrites(scopes) + e.pages.InvalidateWrites(scopes)
	e.commitMu.Unlock()
	e.logger.Debug("catalog write invalidated", zap.Strings("scopes", scopes), zap.Int("entries", n))
	return n
}

// Execute starts a query and returns immediately. The query runs detached from
// ctx cancellation; ctx values (such as the request logger) are kept.
func (e *Executor) Execute(ctx context.Context, d request.Description, offset, limit int, force bool) *Future {
	f := newFuture()
	runCtx := context.WithoutCancel(ctx)
	go func() {
		f.resolve(e.run(runCtx, &d, offset, limit, force))
	}()
	return f
}

// Query executes synchronously.
func (e *Executor) Query(ctx context.Context, d request.Description, offset, limit int, force bool) (result.Result, error) {
	return e.Execute(ctx, d, offset, limit, force).Wait(ctx)
}

func (e *Executor) run(ctx context.Context, d *request.Description, offset, limit int, force bool) (result.Result, error) {
	start := time.Now()
	qtype := string(d.Type())
	defer func() {
		metrics.QueryDuration.WithLabelValues(qtype).Observe(time.Since(start).Seconds())
	}()

	epoch := e.currentEpoch()
	offset, limit = request.ClampPage(offset, limit)
	fp := fingerprint.Of(d)
	log := logpkg.FromContext(ctx, e.logger).With(zap.String("fingerprint", fp), zap.Int("offset", offset), zap.Int("limit", limit))
	log.Debug("query compiled", zap.String("type", qtype))

	key := querycache.PageKey{Fingerprint: fp, Offset: offset, Limit: limit}
	if force {
		e.results.Remove(fp)
		e.pages.InvalidateFingerprint(fp)
	} else if ids, ok := e.pages.Get(key); ok {
		log.Debug("page cache hit")
		metrics.QueryRequestsTotal.WithLabelValues(qtype, "page_cache").Inc()
		return result.New(fp, ids, offset, limit, e.totalFor(fp, offset, ids), true), nil
	}

	plan, cached, err := e.plan(ctx, fp, d)
	if err != nil {
		log.Warn("query plan failed", zap.Error(err))
		metrics.QueryRequestsTotal.WithLabelValues(qtype, "error").Inc()
		return result.Result{}, err
	}
	if cached {
		log.Debug("result cache hit")
	}

	w := page.Overfetch(offset, limit, e.cfg.LookaheadPages)
	ids, err := e.window(ctx, &plan, w)
	if err != nil {
		log.Warn("query window failed", zap.Error(err))
		metrics.QueryRequestsTotal.WithLabelValues(qtype, "error").Inc()
		return result.Result{}, err
	}
	log.Debug("query paginated", zap.Int("fetched", len(ids)))

	if plan.Total == unknownTotal || (plan.Ranked == nil && !e.exactCount(d)) {
		plan.Total = estimateTotal(plan.Total, w, ids)
	}

	// Commit only after every store call succeeded.
	if !e.commit(epoch, &plan, cached, w.Offset, limit, ids) {
		log.Debug("cache commit skipped, invalidated while running")
	}

	source := "store"
	if cached {
		source = "result_cache"
	}
	metrics.QueryRequestsTotal.WithLabelValues(qtype, source).Inc()
	return result.New(fp, page.Slice(ids, 0, limit), offset, limit, plan.Total, false), nil
}

func (e *Executor) currentEpoch() uint64 {
	e.commitMu.RLock()
	defer e.commitMu.RUnlock()
	return e.epoch
}

// commit stores the plan and fetched pages unless an invalidation ran after epoch.
func (e *Executor) commit(epoch uint64, plan *querycache.Plan, cached bool, baseOffset, limit int, ids []string) bool {
	e.commitMu.RLock()
	defer e.commitMu.RUnlock()
	if e.epoch != epoch {
		return false
	}
	if cached {
		e.results.SetTotal(plan.Fingerprint, plan.Total)
	} else {
		e.results.Put(*plan)
	}
	e.pages.PutChunks(plan.Fingerprint, plan.Scopes(), baseOffset, limit, ids)
	return true
}

// plan returns the cached plan for fp or builds it, collapsing concurrent builds.
func (e *Executor) plan(ctx context.Context, fp string, d *request.Description) (querycache.Plan, bool, error) {
	if p, ok := e.results.Get(fp); ok {
		return p, true, nil
	}

	v, err, _ := e.group.Do(fp, func() (any, error) {
		return e.buildPlan(ctx, fp, d)
	})
	if err != nil {
		return querycache.Plan{}, false, err
	}
	p := v.(querycache.Plan)
	if p.Ranked != nil {
		// Shared with other callers of the same flight.
		p.Ranked = append([]string(nil), p.Ranked...)
	}
	return p, false, nil
}

func (e *Executor) buildPlan(ctx context.Context, fp string, d *request.Description) (querycache.Plan, error) {
	p := querycache.Plan{Fingerprint: fp, Query: *d, Total: unknownTotal}

	switch {
	case d.Similarity != nil:
		ranked, err := e.rankSimilar(ctx, d)
		if err != nil {
			return querycache.Plan{}, err
		}
		p.Ranked = ranked
		e.logger.Debug("query filtered", zap.String("fingerprint", fp), zap.Int("ranked", len(ranked)))
	case d.Sort.Kind == sortkey.Random:
		ids, err := e.find(ctx, d, 0, 0)
		if err != nil {
			return querycache.Plan{}, err
		}
		e.shuffle(ids)
		p.Ranked = ids
		e.logger.Debug("query shuffled", zap.String("fingerprint", fp), zap.Int("ids", len(ids)))
	}

	total, err := e.count(ctx, d, p.Ranked)
	if err != nil {
		return querycache.Plan{}, err
	}
	p.Total = total
	return p, nil
}

// count resolves the plan total, or unknownTotal when it is estimated per page.
func (e *Executor) count(ctx context.Context, d *request.Description, ranked []string) (int, error) {
	if d.IsUnfiltered() {
		sc, err := e.scopes.Resolve(ctx, d.PrimaryScope())
		if err != nil {
			return 0, fmt.Errorf("resolve scope: %w", err)
		}
		if sc.Known {
			return sc.SuccessCount, nil
		}
		return d.BaseCount, nil
	}
	if ranked != nil {
		return len(ranked), nil
	}
	if !e.exactCount(d) {
		return unknownTotal, nil
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer e.sem.Release(1)
	n, err := e.store.Count(ctx, d)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (e *Executor) exactCount(d *request.Description) bool {
	return d.IsUnfiltered() || e.cfg.CountPolicy.Exact(d.PreferSpeed)
}

func (e *Executor) rankSimilar(ctx context.Context, d *request.Description) ([]string, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	cands, err := e.store.Candidates(ctx, d)
	e.sem.Release(1)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	ranked := similarity.IDs(similarity.Rank(*d.Similarity, cands, 0, 0))
	if ranked == nil {
		ranked = []string{}
	}
	return ranked, nil
}

// window materializes the overfetched id window of a plan.
func (e *Executor) window(ctx context.Context, p *querycache.Plan, w page.Window) ([]string, error) {
	if p.Ranked != nil {
		return page.Slice(p.Ranked, w.Offset, w.Limit), nil
	}
	return e.find(ctx, &p.Query, w.Offset, w.Limit)
}

func (e *Executor) find(ctx context.Context, d *request.Description, offset, limit int) ([]string, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)
	ids, err := e.store.Find(ctx, d, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// totalFor reports the count for a page served from cache.
func (e *Executor) totalFor(fp string, offset int, ids []string) int {
	if n, ok := e.results.Total(fp); ok && n != unknownTotal {
		return n
	}
	return count.Estimate(offset, len(ids))
}

// estimateTotal is the fast count: a short window pins the exact end of the
// result set, a full one only raises the lower bound.
func estimateTotal(prev int, w page.Window, ids []string) int {
	if len(ids) == 0 && w.Offset > 0 {
		// Past the end: the set is no larger than the offset, nothing more is known.
		return max(min(prev, w.Offset), 0)
	}
	est := count.Estimate(w.Offset, len(ids))
	if len(ids) < w.Limit {
		return est
	}
	return max(prev, est)
}
