// Package version carries build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/banshee-data/pointmesh/internal/version.Version=v0.3.0" ./cmd/pointmesh
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version is the release tag of the binary
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for -version output. When GitSHA was
// not injected, the VCS revision recorded by the Go toolchain is used.
func String() string {
	sha := GitSHA
	if sha == "unknown" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" && s.Value != "" {
					sha = s.Value
				}
			}
		}
	}
	return fmt.Sprintf("pointmesh %s (commit %s, built %s)", Version, sha, BuildTime)
}
