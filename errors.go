package imgdex

import "github.com/kailas-cloud/imgdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound         = domain.ErrNotFound
	ErrInvalidQuery     = domain.ErrInvalidQuery
	ErrInvalidRecord    = domain.ErrInvalidRecord
	ErrStoreUnavailable = domain.ErrStoreUnavailable
	ErrSuperseded       = domain.ErrSuperseded
)
