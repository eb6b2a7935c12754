package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Query engine Prometheus metrics.
var (
	QueryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgdex",
			Name:      "query_requests_total",
			Help:      "Total number of executed queries",
		},
		[]string{"type", "source"}, // source: "page_cache" / "result_cache" / "store" / "error"
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imgdex",
			Name:      "query_duration_seconds",
			Help:      "Query execution duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"type"},
	)

	QuerySuperseded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "imgdex",
			Name:      "query_superseded_total",
			Help:      "Query results discarded because a newer query replaced them",
		},
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgdex",
			Name:      "query_cache_total",
			Help:      "Query cache hits, misses and evictions",
		},
		[]string{"cache", "result"}, // "hit" / "miss" / "evict"
	)

	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgdex",
			Name:      "store_operations_total",
			Help:      "Total image store operations",
		},
		[]string{"backend", "op", "status"},
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imgdex",
			Name:      "store_operation_duration_seconds",
			Help:      "Image store operation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"backend", "op"},
	)
)

var queryMetricsRegistered bool

func queryCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		QueryRequestsTotal, QueryDuration, QuerySuperseded,
		CacheTotal, StoreOperationsTotal, StoreOperationDuration,
	}
}

// RegisterQueryMetrics registers Prometheus query metrics. Must be called once from main.
func RegisterQueryMetrics() {
	if queryMetricsRegistered {
		return
	}
	for _, c := range queryCollectors() {
		prometheus.MustRegister(c)
	}
	queryMetricsRegistered = true
}

// RegisterQueryMetricsOn registers the query metrics on reg.
// Collectors already registered there are accepted.
func RegisterQueryMetricsOn(reg prometheus.Registerer) error {
	for _, c := range queryCollectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("register query metrics: %w", err)
		}
	}
	return nil
}
