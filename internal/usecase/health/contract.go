package health

import "context"

// DBPinger checks image store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// CacheSizer reports the number of entries held by a query cache.
type CacheSizer interface {
	Len() int
}
