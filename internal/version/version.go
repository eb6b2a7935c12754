// Package version carries imgdex build metadata, set with
// -ldflags "-X github.com/kailas-cloud/imgdex/internal/version.Version=...".
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the build metadata for startup logs and the health report.
func String() string {
	return fmt.Sprintf("imgdex %s (commit %s, built %s)", Version, Commit, Date)
}
