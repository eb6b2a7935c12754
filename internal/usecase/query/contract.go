package query

import (
	"context"

	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/scope"
	"github.com/kailas-cloud/imgdex/internal/domain/search/request"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
)

// Store defines the image store contract for query execution.
type Store interface {
	// Find lists matching ids in the description's order. limit <= 0 returns all from offset.
	Find(ctx context.Context, d *request.Description, offset, limit int) ([]string, error)
	Count(ctx context.Context, d *request.Description) (int, error)
	// Candidates returns every record passing the tag and range filters, ignoring order.
	Candidates(ctx context.Context, d *request.Description) ([]similarity.Candidate, error)
	Get(ctx context.Context, ids []string) ([]*image.Record, error)
}

// ScopeRegistry resolves import and group ids. Unknown ids resolve to scope.Empty.
type ScopeRegistry interface {
	Resolve(ctx context.Context, id string) (scope.Scope, error)
}
