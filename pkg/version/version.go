package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build information, set at build time with
// -ldflags "-X github.com/zsiec/mediatime/pkg/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Name is the program name used in version strings.
const Name = "mediatime"

// Info describes the running build.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo returns the build information. When no version was linked in, the
// module version and VCS revision recorded by the Go toolchain are used.
func GetInfo() Info {
	info := Info{
		Name:      Name,
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "unknown" {
					info.GitCommit = s.Value
				}
			case "vcs.time":
				if info.BuildTime == "unknown" {
					info.BuildTime = s.Value
				}
			}
		}
	}

	return info
}

// String returns the full version line.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, go: %s, platform: %s)",
		i.Name, i.Version, i.GitCommit, i.BuildTime, i.GoVersion, i.Platform)
}

// Short returns "name version".
func (i Info) Short() string {
	return fmt.Sprintf("%s %s", i.Name, i.Version)
}
