// Package version is set at build time through -ldflags.
package version

var (
	Version   = "UNKNOWN"
	GitCommit = "UNKNOWN"
)
