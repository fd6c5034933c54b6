// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
)

// These variables are set via -ldflags at build time.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version. This is set manually for releases.
	Version = "0.1.0-dev"
)

func init() {
	fillFromBuildInfo(debug.ReadBuildInfo())
}

// fillFromBuildInfo fills whatever -ldflags left at its default from
// the VCS stamp the go command embeds in module builds.
func fillFromBuildInfo(info *debug.BuildInfo, ok bool) {
	if !ok {
		return
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if GitCommit == "unknown" && setting.Value != "" {
				GitCommit = setting.Value
				if len(GitCommit) > 12 {
					GitCommit = GitCommit[:12]
				}
			}
		case "vcs.time":
			if BuildTime == "unknown" && setting.Value != "" {
				BuildTime = setting.Value
			}
		case "vcs.modified":
			if setting.Value == "true" {
				GitDirty = "true"
			}
		}
	}
}

// Info returns a formatted version string suitable for --version output.
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// Full returns detailed version information including Go version.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// Commit returns the git commit SHA.
func Commit() string {
	return GitCommit
}

// NewCollector returns an offload_build_info gauge, constant 1, labeled
// with the build's version, commit and Go version.
func NewCollector() prometheus.Collector {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "offload",
		Name:      "build_info",
		Help:      "Build information for the running binary. Always 1.",
		ConstLabels: prometheus.Labels{
			"version":   Version,
			"commit":    GitCommit,
			"goversion": runtime.Version(),
		},
	})
	gauge.Set(1)
	return gauge
}
