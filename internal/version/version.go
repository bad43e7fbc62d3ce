// Package version carries build information stamped in with -ldflags, e.g.
// -X github.com/dispatchlab/rtdcheck/internal/version.Version=v1.2.0
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build-time variables set via ldflags
var (
	// Version is the release tag, or "dev" for local builds
	Version = "dev"

	// GitCommit is the short commit SHA
	GitCommit = "unknown"

	// BuildDate is the build timestamp
	BuildDate = "unknown"
)

// Info is the build information served by `rtdcheck version` and /healthz
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the current build info. Plain `go build` leaves GitCommit unset, in
// which case the VCS revision recorded by the toolchain is used.
func Get() Info {
	commit := GitCommit
	if commit == "unknown" {
		if rev := vcsRevision(); rev != "" {
			commit = rev
		}
	}
	return Info{
		Version:   Version,
		GitCommit: commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return ""
}

// String returns "v1.2.0 (abc1234)"
func (i Info) String() string {
	return fmt.Sprintf("%s (%s)", i.Version, i.GitCommit)
}

// Full adds the build date, toolchain and platform
func (i Info) Full() string {
	return fmt.Sprintf("rtdcheck %s (%s) built %s with %s for %s", i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.Platform)
}
