// Package build exposes build-time metadata injected via ldflags.
package build

import "fmt"

// Set at build time by:
//
//	-ldflags "-X github.com/joestump/templatesmith/internal/build.Version=... ..."
var (
	Version = "dev"
	Commit  = "unknown"
	Branch  = "unknown"
)

// Summary renders the build metadata on one line.
func Summary() string {
	return fmt.Sprintf("templatesmith %s (commit %s, branch %s)", Version, Commit, Branch)
}
