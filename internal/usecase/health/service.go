package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the image store is not answering.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	// Caches holds the current entry count of each query cache.
	Caches map[string]int
}

// Service coordinates health checks.
type Service struct {
	db     DBPinger
	caches map[string]CacheSizer
}

// New creates a Service. caches can be nil.
func New(db DBPinger, caches map[string]CacheSizer) *Service {
	return &Service{db: db, caches: caches}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
	} else {
		checks["database"] = CheckOK
	}

	caches := make(map[string]int, len(s.caches))
	for name, c := range s.caches {
		caches[name] = c.Len()
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks, Caches: caches}
}
