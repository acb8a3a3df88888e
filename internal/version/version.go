// Package version reports build information of the salesdash binary.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// These are set via ldflags at build time
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Info contains version and build information
type Info struct {
	Version     string `json:"version"`
	BuildTime   string `json:"buildTime"`
	GoVersion   string `json:"goVersion"`
	VCSRevision string `json:"vcsRevision,omitempty"`
	VCSTime     string `json:"vcsTime,omitempty"`
	VCSModified bool   `json:"vcsModified"`
}

// Get returns the current version and build information.
// Without ldflags, a module version recorded by `go install` is used.
func Get() Info {
	info := Info{
		Version:   Version,
		BuildTime: BuildTime,
	}

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	info.GoVersion = buildInfo.GoVersion
	if info.Version == "dev" && buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
		info.Version = buildInfo.Main.Version
	}

	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.VCSRevision = setting.Value
		case "vcs.time":
			info.VCSTime = setting.Value
		case "vcs.modified":
			info.VCSModified = setting.Value == "true"
		}
	}

	return info
}

// Short returns the version with the abbreviated commit, e.g. "v1.2.0 (3f2a9c1d)"
func (i Info) Short() string {
	if i.VCSRevision == "" {
		return i.Version
	}
	rev := i.VCSRevision
	if len(rev) > 8 {
		rev = rev[:8]
	}
	if i.VCSModified {
		rev += "+"
	}
	return fmt.Sprintf("%s (%s)", i.Version, rev)
}

// String returns a human-readable version string
func (i Info) String() string {
	parts := []string{"salesdash " + i.Short()}

	if i.BuildTime != "unknown" {
		parts = append(parts, fmt.Sprintf("Built: %s", i.BuildTime))
	}
	if i.GoVersion != "" {
		parts = append(parts, fmt.Sprintf("Go: %s", i.GoVersion))
	}
	if i.VCSTime != "" {
		parts = append(parts, fmt.Sprintf("Committed: %s", i.VCSTime))
	}

	return strings.Join(parts, ", ")
}

// Check returns a warning when the binary was built from a modified or untracked tree
func (i Info) Check() string {
	if i.VCSModified {
		return "WARNING: Binary built from modified source tree"
	}
	if i.VCSRevision == "" && i.Version == "dev" {
		return "WARNING: No version control information available (development build)"
	}
	return ""
}
