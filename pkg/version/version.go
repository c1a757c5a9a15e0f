// Package version carries the build identity of the binary. The
// variables are overridden at link time:
//
//	go build -ldflags "-X github.com/marmos91/syncbox/pkg/version.Version=v1.2.3"
package version

import "fmt"

var (
	// Version is the semantic version of the build.
	Version = "dev"

	// Commit is the git commit the binary was built from.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String returns a human-readable version line.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
