package imgdex

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "memory", "sqlite" or "redis"
	addrs    []string
	password string
	path     string

	index     string
	keyPrefix string
	ratings   []string
	colors    []string

	resultCapacity int
	pageCapacity   int
	lookahead      int
	workers        int
	countPolicy    string
	maxBatchSize   int

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		driver:         driverMemory,
		index:          "imgdex:images",
		keyPrefix:      "imgdex:",
		resultCapacity: 64,
		pageCapacity:   512,
		lookahead:      3,
		countPolicy:    "auto",
	}
}

// WithMemory keeps the catalog in process memory (default).
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverMemory
	})
}

// WithSQLite stores the catalog in a SQLite file. ":memory:" gives a private database.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverSQLite
		c.path = path
	})
}

// WithRedis stores the catalog in Redis 8+ with the query engine enabled.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverRedis
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithIndex sets the Redis search index name and key prefix.
func WithIndex(index, keyPrefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.index = index
		c.keyPrefix = keyPrefix
	})
}

// WithIndexedScores declares the rating and colour names Redis indexes for
// range filters and sorting. Other backends accept every name.
func WithIndexedScores(ratings, colors []string) Option {
	return optionFunc(func(c *clientConfig) {
		c.ratings = ratings
		c.colors = colors
	})
}

// WithCacheCapacity bounds the plan and page caches.
// Defaults: 64 plans, 512 pages.
func WithCacheCapacity(results, pages int) Option {
	return optionFunc(func(c *clientConfig) {
		c.resultCapacity = results
		c.pageCapacity = pages
	})
}

// WithLookahead sets how many pages past the requested one are fetched and cached.
// Default: 3. Zero disables overfetch.
func WithLookahead(pages int) Option {
	return optionFunc(func(c *clientConfig) {
		c.lookahead = max(pages, 0)
	})
}

// WithWorkers bounds concurrent store calls. Default: 4.
func WithWorkers(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.workers = n
	})
}

// WithCountPolicy selects how filtered queries are counted: "auto", "fast" or "exact".
func WithCountPolicy(policy string) Option {
	return optionFunc(func(c *clientConfig) {
		c.countPolicy = policy
	})
}

// WithMaxBatchSize sets the maximum number of records per write. Default: 100.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithLogger enables structured logging. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers query and cache metrics on reg. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
