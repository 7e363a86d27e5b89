// Package version carries build metadata set with -ldflags -X.
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String formats the build metadata for the version command and startup log.
func String() string {
	return fmt.Sprintf("pelican-dns %s (commit %s, built %s)", Version, Commit, Date)
}
