package imgdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/imgdex/internal/db"
	dbMemory "github.com/kailas-cloud/imgdex/internal/db/memory"
	dbRedis "github.com/kailas-cloud/imgdex/internal/db/redis"
	dbSQLite "github.com/kailas-cloud/imgdex/internal/db/sqlite"
	dombatch "github.com/kailas-cloud/imgdex/internal/domain/batch"
	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/scope"
	"github.com/kailas-cloud/imgdex/internal/domain/search/count"
	"github.com/kailas-cloud/imgdex/internal/metrics"
	imagerepo "github.com/kailas-cloud/imgdex/internal/repository/image"
	"github.com/kailas-cloud/imgdex/internal/repository/querycache"
	scoperepo "github.com/kailas-cloud/imgdex/internal/repository/scope"
	cataloguc "github.com/kailas-cloud/imgdex/internal/usecase/catalog"
	queryuc "github.com/kailas-cloud/imgdex/internal/usecase/query"
)

const defaultReadinessTimeout = 10 * time.Second

const (
	driverMemory = "memory"
	driverSQLite = "sqlite"
	driverRedis  = "redis"
)

// Client is the imgdex SDK entry point.
type Client struct {
	catalog  db.Catalog
	results  *querycache.ResultCache
	pages    *querycache.PageCache
	executor *queryuc.Executor
	service  *cataloguc.Service
}

// New creates a Client and opens the configured image store.
// With no options the catalog lives in memory.
func New(opts ...Option) (*Client, error) {
	cfg := defaultClientConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	policy, err := count.ParsePolicy(cfg.countPolicy)
	if err != nil {
		return nil, fmt.Errorf("imgdex: %w", err)
	}

	ctx := context.Background()
	catalog, err := createCatalog(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c, err := wireClient(catalog, policy, cfg)
	if err != nil {
		catalog.Close()
		return nil, err
	}
	return c, nil
}

func createCatalog(ctx context.Context, cfg *clientConfig) (db.Catalog, error) {
	switch cfg.driver {
	case driverMemory:
		return dbMemory.NewStore(), nil
	case driverSQLite:
		if cfg.path == "" {
			return nil, errors.New("imgdex: sqlite path required (use WithSQLite)")
		}
		s, err := dbSQLite.NewStore(ctx, dbSQLite.Config{Path: cfg.path})
		if err != nil {
			return nil, fmt.Errorf("imgdex: create sqlite store: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("imgdex: database not ready: %w", err)
		}
		return s, nil
	case driverRedis:
		if len(cfg.addrs) == 0 || cfg.addrs[0] == "" {
			return nil, errors.New("imgdex: database address required (use WithRedis)")
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("imgdex: create redis store: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("imgdex: database not ready: %w", err)
		}
		catalog, err := dbRedis.NewCatalog(s, dbRedis.CatalogConfig{
			Index:     cfg.index,
			KeyPrefix: cfg.keyPrefix,
			Ratings:   cfg.ratings,
			Colors:    cfg.colors,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("imgdex: redis catalog: %w", err)
		}
		if err := catalog.EnsureIndex(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("imgdex: ensure index: %w", err)
		}
		return catalog, nil
	default:
		return nil, fmt.Errorf("imgdex: unsupported driver %q", cfg.driver)
	}
}

func wireClient(catalog db.Catalog, policy count.Policy, cfg *clientConfig) (*Client, error) {
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.metricsReg != nil {
		if err := metrics.RegisterQueryMetricsOn(cfg.metricsReg); err != nil {
			return nil, fmt.Errorf("imgdex: %w", err)
		}
	}

	images := imagerepo.New(catalog, cfg.driver)
	scopes := scoperepo.New(catalog)
	results := querycache.NewResultCache(cfg.resultCapacity, metrics.CacheTotal)
	pages := querycache.NewPageCache(cfg.pageCapacity, metrics.CacheTotal)

	executor := queryuc.New(images, scopes, results, pages, queryuc.Config{
		LookaheadPages: cfg.lookahead,
		Workers:        cfg.workers,
		CountPolicy:    policy,
	}, logger)

	service := cataloguc.New(images, scopes, executor, logger)
	if cfg.maxBatchSize > 0 {
		service = service.WithMaxBatchSize(cfg.maxBatchSize)
	}

	return &Client{
		catalog:  catalog,
		results:  results,
		pages:    pages,
		executor: executor,
		service:  service,
	}, nil
}

// Close releases database connections.
func (c *Client) Close() {
	c.catalog.Close()
}

// Ping checks image store connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.catalog.Ping(ctx)
}

// Query starts building a query.
func (c *Client) Query() *QueryBuilder {
	return newQueryBuilder(c.executor)
}

// NewView creates a result slot where each submitted query supersedes the previous one.
func (c *Client) NewView() *View {
	return &View{inner: c.executor.NewView()}
}

// LastCount returns the last known match count for a query fingerprint, or 0.
func (c *Client) LastCount(fingerprint string) int {
	return c.executor.GetLastCount(fingerprint)
}

// InvalidateScope drops every cached query restricted to an import or group.
// It returns the number of dropped cache entries.
func (c *Client) InvalidateScope(id string) int {
	return c.executor.InvalidateScope(id)
}

// CacheStats reports the number of cached plans and pages.
func (c *Client) CacheStats() (plans, pages int) {
	return c.results.Len(), c.pages.Len()
}

// Get returns one image by id.
func (c *Client) Get(ctx context.Context, id string) (*Image, error) {
	r, err := c.service.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return imageFromRecord(r), nil
}

// Upsert writes images and invalidates cached queries they may affect.
func (c *Client) Upsert(ctx context.Context, images []Image) []ItemResult {
	records := make([]*image.Record, len(images))
	for i := range images {
		records[i] = images[i].toRecord()
	}
	return itemResults(c.service.Upsert(ctx, records))
}

// Delete removes images by id.
func (c *Client) Delete(ctx context.Context, ids []string) []ItemResult {
	return itemResults(c.service.Delete(ctx, ids))
}

// SaveScope registers an import or group with its precomputed success count.
func (c *Client) SaveScope(ctx context.Context, s Scope) error {
	return c.service.SaveScope(ctx, scope.Scope{
		ID:           s.ID,
		Kind:         scope.Kind(s.Kind),
		SuccessCount: s.SuccessCount,
		Known:        true,
	})
}

func itemResults(in []dombatch.Result) []ItemResult {
	out := make([]ItemResult, len(in))
	for i, r := range in {
		out[i] = ItemResult{ID: r.ID(), OK: r.Status() == dombatch.StatusOK, Err: r.Err()}
	}
	return out
}
