package count

import "fmt"

// Policy selects how the total match count of a filtered query is obtained.
type Policy string

// Count policies.
const (
	// Auto follows the query's own prefer-speed flag.
	Auto Policy = "auto"
	// Fast reports offset plus the size of the materialized window.
	Fast Policy = "fast"
	// Exact recounts against the store.
	Exact Policy = "exact"
)

// IsValid checks if the policy is one of the supported values.
func (p Policy) IsValid() bool {
	return p == Auto || p == Fast || p == Exact
}

// ParsePolicy maps a config value to a Policy. Empty means Auto.
func ParsePolicy(s string) (Policy, error) {
	if s == "" {
		return Auto, nil
	}
	p := Policy(s)
	if !p.IsValid() {
		return "", fmt.Errorf("unknown count policy %q", s)
	}
	return p, nil
}

// Exact reports whether a filtered query must be counted against the store.
func (p Policy) Exact(preferSpeed bool) bool {
	switch p {
	case Fast:
		return false
	case Exact:
		return true
	default:
		return !preferSpeed
	}
}

// Estimate is the fast count: everything before the window plus the window itself.
func Estimate(offset, windowLen int) int {
	if offset < 0 {
		offset = 0
	}
	return offset + windowLen
}
