// Package version records build information stamped in via ldflags:
//
//	-X github.com/galleykit/galley/version.GitRelease=v0.1.0
//	-X github.com/galleykit/galley/version.GitCommit=abc1234
//	-X github.com/galleykit/galley/version.GitCommitDate=2026-08-25
package version

import "runtime"

var (
	// GitRelease is the release tag or branch of this build.
	GitRelease = "dev"
	// GitCommit is the commit hash of this build.
	GitCommit = "unknown"
	// GitCommitDate is the commit date of this build.
	GitCommitDate = "unknown"
)

// GoInfo reports the Go toolchain the binary was built with.
var GoInfo = runtime.Version()
