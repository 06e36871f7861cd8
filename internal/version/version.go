// Package version provides build-time version information.
package version

import "fmt"

// Set at build time with -ldflags "-X plate-aligner/internal/version.Version=...".
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats the version line printed at startup.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
