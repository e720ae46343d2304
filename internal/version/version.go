package version

import (
	_ "embed"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionFile string

// Build-time variables set via ldflags
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Version returns the current version of relmig
func Version() string {
	return strings.TrimSpace(versionFile)
}

// ProductVersion is the value recorded in the history table for each
// applied migration. It fits the history column's 32 characters.
func ProductVersion() string {
	v := Version()
	if len(v) > 32 {
		return v[:32]
	}
	return v
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	return GitCommit
}

// GetBuildDate returns the git commit date
func GetBuildDate() string {
	return BuildDate
}

// Platform returns the OS/architecture combination
func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
