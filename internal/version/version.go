// Package version holds build metadata injected via ldflags, reported
// by kedbd --version.
package version

//nolint:revive // Set via -ldflags "-X .../internal/version.Version=..." at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
