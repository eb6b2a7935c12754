package catalog

import (
	"context"

	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/scope"
)

// RecordStore reads and writes image records.
type RecordStore interface {
	Get(ctx context.Context, ids []string) ([]*image.Record, error)
	Save(ctx context.Context, records []*image.Record) error
	Delete(ctx context.Context, ids []string) error
}

// ScopeStore writes import and group metadata.
type ScopeStore interface {
	Save(ctx context.Context, sc scope.Scope) error
}

// Invalidator drops query cache state after catalog writes.
type Invalidator interface {
	InvalidateScope(id string) int
	InvalidateWrites(scopes []string) int
}
