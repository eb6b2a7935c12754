package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery signals a query description that cannot be executed.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidRecord signals an image record a store cannot index.
	ErrInvalidRecord = errors.New("invalid image record")
	// ErrStoreUnavailable signals that the image store could not serve a request.
	ErrStoreUnavailable = errors.New("image store unavailable")
	// ErrSuperseded signals a query result dropped because a newer query replaced it.
	ErrSuperseded = errors.New("query superseded")
)

// StoreError wraps ErrStoreUnavailable with the failing store operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStoreUnavailable.Error(), e.Op, e.Err)
}

// Is makes errors.Is(err, ErrStoreUnavailable) hold for every StoreError.
func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError creates a store failure error for the given operation.
func NewStoreError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
