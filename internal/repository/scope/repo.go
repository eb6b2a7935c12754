package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/imgdex/internal/db"
	"github.com/kailas-cloud/imgdex/internal/domain"
	domscope "github.com/kailas-cloud/imgdex/internal/domain/scope"
)

// store is the consumer interface for scope metadata (ISP).
type store interface {
	LoadScope(ctx context.Context, id string) (domscope.Scope, error)
	SaveScope(ctx context.Context, sc domscope.Scope) error
}

// Repo implements usecase/query.ScopeRegistry.
type Repo struct {
	store store
}

// New creates a scope repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Resolve returns scope metadata. Unknown ids resolve to domscope.Empty.
func (r *Repo) Resolve(ctx context.Context, id string) (domscope.Scope, error) {
	if id == "" {
		return domscope.Empty(id), nil
	}
	sc, err := r.store.LoadScope(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domscope.Empty(id), nil
		}
		return domscope.Scope{}, domain.NewStoreError("resolve scope", err)
	}
	return sc, nil
}

// Save stores scope metadata.
func (r *Repo) Save(ctx context.Context, sc domscope.Scope) error {
	if sc.ID == "" {
		return fmt.Errorf("scope id is required: %w", domain.ErrInvalidQuery)
	}
	if err := r.store.SaveScope(ctx, sc); err != nil {
		return domain.NewStoreError("save scope", err)
	}
	return nil
}
