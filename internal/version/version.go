// Package version holds build identity, overridden via -ldflags at
// release time.
package version

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
