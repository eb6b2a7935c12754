package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
	ErrIndexExists = errors.New("db: index already exists")
	// ErrUnsupportedQuery is returned when a backend cannot express a query, e.g.
	// a range over a rating field it does not index.
	ErrUnsupportedQuery = errors.New("db: unsupported query")
)

// Op constants map to Redis command names or SQL verbs for error context.
const (
	OpCreateIndex = "FT.CREATE"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpDel         = "DEL"
	OpHGetAll     = "HGETALL"
	OpHSet        = "HSET"
	OpSelect      = "SELECT"
	OpInsert      = "INSERT"
	OpDelete      = "DELETE"
	OpMigrate     = "MIGRATE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
