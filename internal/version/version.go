// Package version reports the build of the greeac binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/greeac/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/greeac/internal/version.Commit=abc123"
//
// Otherwise they come from the VCS stamp in the build info, or "dev".
var (
	Version = ""
	Commit  = ""
)

func init() {
	if Version == "" || Commit == "" {
		fromBuildInfo(readSettings())
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func readSettings() map[string]string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	out := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		out[s.Key] = s.Value
	}
	return out
}

// fromBuildInfo fills Commit from vcs.revision (short, "-dirty" when
// modified) and Version from the commit date.
func fromBuildInfo(settings map[string]string) {
	if rev := settings["vcs.revision"]; Commit == "" && rev != "" {
		if len(rev) > 7 {
			rev = rev[:7]
		}
		if settings["vcs.modified"] == "true" {
			rev += "-dirty"
		}
		Commit = rev
	}

	if vt := settings["vcs.time"]; Version == "" && vt != "" {
		if t, err := time.Parse(time.RFC3339, vt); err == nil {
			Version = "dev-" + t.UTC().Format("20060102")
		}
	}
}

// Info is the build description served by the API.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the current build description.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
