package common

import (
	"fmt"
	"runtime"
)

// Version information (set via -ldflags "-X github.com/ternarybob/mapcheck/internal/common.Version=...")
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the current version string
func GetVersion() string {
	return Version
}

// GetFullVersion returns version with build info
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s, %s)", Version, Build, GitCommit, runtime.Version())
}
