// Package version reports the build identity of the courseview binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"git_commit" yaml:"git_commit"`
	BuildTime time.Time `json:"build_time" yaml:"build_time"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
	Dirty     bool      `json:"dirty" yaml:"dirty"`
}

// Set at build time:
//
//	go build -ldflags "-X github.com/conneroisu/courseview/internal/version.Version=v1.2.0"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// readSetting returns a vcs setting recorded by the go tool.
func readSetting(key string) (string, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value, true
		}
	}
	return "", false
}

// GetBuildInfo returns comprehensive build information
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Version:   GetVersion(),
		GitCommit: GetGitCommit(),
		BuildTime: GetBuildTime(),
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		Dirty:     IsDirty(),
	}
}

// GetVersion prefers the ldflags version, then the module version, then a
// dev-<commit> string.
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}

	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "(devel)" && info.Main.Version != "" {
		return info.Main.Version
	}
	if rev, ok := readSetting("vcs.revision"); ok && len(rev) >= 7 {
		return "dev-" + rev[:7]
	}
	return "dev"
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}
	if rev, ok := readSetting("vcs.revision"); ok {
		return rev
	}
	return "unknown"
}

// GetBuildTime returns the ldflags build time, falling back to the commit
// time.
func GetBuildTime() time.Time {
	if t := parseISOTime(BuildTime); !t.IsZero() {
		return t
	}
	if vcsTime, ok := readSetting("vcs.time"); ok {
		return parseISOTime(vcsTime)
	}
	return time.Time{}
}

// GetShortVersion returns a short version string suitable for display
func GetShortVersion() string {
	v := GetVersion()
	commit := GetGitCommit()

	if len(commit) >= 7 && commit != "unknown" && !strings.HasPrefix(v, "dev") {
		return fmt.Sprintf("%s (%s)", v, commit[:7])
	}
	return v
}

// GetDetailedVersion returns a detailed version string with all build info
func GetDetailedVersion() string {
	info := GetBuildInfo()

	parts := []string{"Version: " + info.Version}
	if info.GitCommit != "unknown" {
		parts = append(parts, "Commit: "+info.GitCommit)
	}
	if !info.BuildTime.IsZero() {
		parts = append(parts, "Built: "+info.BuildTime.Format(time.RFC3339))
	}
	parts = append(parts, "Go: "+info.GoVersion, "Platform: "+info.Platform)
	if info.Dirty {
		parts = append(parts, "Working tree: dirty")
	}

	return strings.Join(parts, "\n")
}

// IsRelease returns true if this is a release build (not dev)
func IsRelease() bool {
	v := GetVersion()
	return v != "dev" && !strings.HasPrefix(v, "dev-")
}

// IsDirty returns true if the working directory was dirty when built
func IsDirty() bool {
	modified, ok := readSetting("vcs.modified")
	return ok && modified == "true"
}

// parseISOTime parses an ISO 8601 time string, returns zero time on error
func parseISOTime(timeStr string) time.Time {
	if timeStr == "" || timeStr == "unknown" {
		return time.Time{}
	}

	for _, format := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(format, timeStr); err == nil {
			return t
		}
	}
	return time.Time{}
}
