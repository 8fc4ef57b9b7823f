package health

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"
)

type BuildInfo struct {
	Version   string
	GitCommit string
	BuildTime time.Time
	GoVersion string
}

// getBuildInfo summarises the binary as "<version>-<commit> (<date>, <go>)".
// BUILD_VERSION, BUILD_COMMIT and BUILD_TIME override what the Go toolchain
// stamped into the binary.
func getBuildInfo() string {
	info := readBuildInfo()

	commit := info.GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}

	date := "unknown"
	if !info.BuildTime.IsZero() {
		date = info.BuildTime.Format("2006-01-02")
	}

	return fmt.Sprintf("%s-%s (%s, %s)", info.Version, commit, date, info.GoVersion)
}

func readBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   "dev",
		GitCommit: "unknown",
		GoVersion: runtime.Version(),
	}

	if stamped, ok := debug.ReadBuildInfo(); ok {
		if stamped.Main.Version != "" && stamped.Main.Version != "(devel)" {
			info.Version = stamped.Main.Version
		}
		for _, setting := range stamped.Settings {
			switch setting.Key {
			case "vcs.revision":
				info.GitCommit = setting.Value
			case "vcs.time":
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					info.BuildTime = t
				}
			}
		}
	}

	if value := os.Getenv("BUILD_VERSION"); value != "" {
		info.Version = value
	}
	if value := os.Getenv("BUILD_COMMIT"); value != "" {
		info.GitCommit = value
	}
	if value := os.Getenv("BUILD_TIME"); value != "" {
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			info.BuildTime = t
		}
	}

	return info
}
