// Package build provides build information that is linked into the application.
package build

var (
	// Version is the release version, set with -ldflags at build time.
	Version = "dev"

	// Commit is the git commit the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)
