// Package version reports build metadata.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/agentloop/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/agentloop/internal/version.Commit=abc123
//	  -X github.com/soyeahso/agentloop/internal/version.Date=2026-01-01"
//
// Commit and Date fall back to the VCS stamp Go embeds in the binary.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Build describes the running binary.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get collects the build metadata.
func Get() Build {
	b := Build{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if b.Commit == "" || b.Date == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			fillFromVCS(&b, bi.Settings)
		}
	}
	b.Commit = short(orUnknown(b.Commit))
	b.Date = orUnknown(b.Date)
	return b
}

func fillFromVCS(b *Build, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "" {
				b.Commit = s.Value
			}
		case "vcs.time":
			if b.Date == "" {
				b.Date = s.Value
			}
		}
	}
}

func (b Build) String() string {
	return fmt.Sprintf("agentloop %s (commit: %s, built: %s, %s, %s)",
		b.Version, b.Commit, b.Date, b.GoVersion, b.Platform)
}

// Info returns a formatted version string.
func Info() string {
	return Get().String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
