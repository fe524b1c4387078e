// Package version holds build metadata injected through -ldflags.
package version

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

var (
	// Version is the application version, set via ldflags during build.
	Version = "dev"
	// GitCommit is the git commit hash, set via ldflags during build.
	GitCommit = "unknown"
	// BuildDate is the build timestamp, set via ldflags during build.
	BuildDate = "unknown"
)

// Info contains version and build metadata.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns version and build information.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns the version with a short commit suffix when known, e.g. "1.2.0+3f9a1c2".
func String() string {
	commit := GitCommit
	if commit == "" || commit == "unknown" {
		return Version
	}
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return Version + "+" + commit
}

// ClientID returns an identifier for this process on shared infrastructure
// such as an MQTT broker: "illuminode-<host>-<pid>".
func ClientID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	host = strings.ReplaceAll(host, ".", "-")
	return fmt.Sprintf("illuminode-%s-%d", host, os.Getpid())
}
