package db

import (
	"context"
	"time"

	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/scope"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
)

// Store is the Redis-style primitive facade combining all sub-interfaces.
//
//nolint:interfacebloat // redis catalog needs every primitive
type Store interface {
	Pinger
	HashStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds a single key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
}

// IndexManager creates and probes FT indexes.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchList(ctx context.Context, q *ListQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Catalog is an image store backend: filtered, sorted id listing over image
// records plus scope bookkeeping. Every driver implements it.
//
//nolint:interfacebloat // one backend contract per driver
type Catalog interface {
	Pinger
	FindImages(ctx context.Context, q *ImageQuery) ([]string, error)
	CountImages(ctx context.Context, q *ImageQuery) (int, error)
	LoadCandidates(ctx context.Context, q *ImageQuery) ([]similarity.Candidate, error)
	LoadImages(ctx context.Context, ids []string) ([]*image.Record, error)
	SaveImages(ctx context.Context, records []*image.Record) error
	DeleteImages(ctx context.Context, ids []string) error
	LoadScope(ctx context.Context, id string) (scope.Scope, error)
	SaveScope(ctx context.Context, s scope.Scope) error
	Close()
}
