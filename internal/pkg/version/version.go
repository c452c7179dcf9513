// Package version exposes the build metadata of the running binary:
// values injected through -ldflags merged with what the Go toolchain
// recorded (VCS revision, modified state) and the runtime environment.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync/atomic"
)

const unknown = "unknown"

var globalBuildInfo atomic.Value

// readBuildInfo is a variable so tests can substitute it.
var readBuildInfo = debug.ReadBuildInfo

// Injected through ldflags at build time. Access only via Get; these
// are bare containers for the linker.
var (
	appVersion    = ""
	gitCommitHash = ""
	gitTreeState  = ""
	buildDate     = ""
)

func init() {
	bi := Info{
		Version:   strings.TrimSpace(appVersion),
		Commit:    strings.TrimSpace(gitCommitHash),
		BuildDate: strings.TrimSpace(buildDate),
	}

	if strings.EqualFold(strings.TrimSpace(gitTreeState), "dirty") {
		bi.DirtyBuild = true
	}

	globalBuildInfo.Store(enrich(bi))
}

// Info is the build metadata of the binary.
type Info struct {
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	BuildDate  string `json:"build_date"`
	GoVersion  string `json:"go_version"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	DirtyBuild bool   `json:"dirty_build"`
}

// Get returns the build metadata.
func Get() Info {
	bi := globalBuildInfo.Load()
	if bi == nil {
		return Info{Version: unknown, Commit: unknown, BuildDate: unknown}
	}
	return bi.(Info)
}

// enrich fills in runtime values and, when ldflags injection was
// missing (plain go run), whatever the toolchain's own VCS metadata
// provides.
func enrich(bi Info) Info {
	if bi.GoVersion == "" {
		bi.GoVersion = runtime.Version()
	}
	if bi.OS == "" {
		bi.OS = runtime.GOOS
	}
	if bi.Arch == "" {
		bi.Arch = runtime.GOARCH
	}

	if val, ok := readBuildInfo(); ok {
		for _, setting := range val.Settings {
			switch setting.Key {
			case "vcs.revision":
				if bi.Commit == "" || bi.Commit == unknown {
					bi.Commit = setting.Value
				}
			case "vcs.time":
				if bi.BuildDate == "" || bi.BuildDate == unknown {
					bi.BuildDate = setting.Value
				}
			case "vcs.modified":
				if setting.Value == "true" {
					bi.DirtyBuild = true
				}
			}
		}
		if bi.Version == "" && val.Main.Version != "(devel)" {
			bi.Version = val.Main.Version
		}
	}

	if bi.Version == "" {
		bi.Version = unknown
	}
	if bi.Commit == "" {
		bi.Commit = unknown
	}

	return bi
}

// String renders the build metadata as one human-readable line.
func (i Info) String() string {
	if i.Version == "" {
		return unknown
	}

	version := i.Version
	if i.DirtyBuild {
		version += "+dirty"
	}

	var details []string
	if i.Commit != "" && i.Commit != unknown {
		commit := i.Commit
		if len(commit) > 7 {
			commit = commit[:7]
		}
		details = append(details, "commit: "+commit)
	}
	if i.BuildDate != "" && i.BuildDate != unknown {
		details = append(details, "date: "+i.BuildDate)
	}
	if i.GoVersion != "" {
		details = append(details, "go_version: "+i.GoVersion)
	}
	if i.OS != "" && i.Arch != "" {
		details = append(details, i.OS+"/"+i.Arch)
	}

	if len(details) == 0 {
		return version
	}

	return fmt.Sprintf("%s (%s)", version, strings.Join(details, ", "))
}
