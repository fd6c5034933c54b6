// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the offload
// binaries.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// For example:
//
//	go build -ldflags "-X github.com/bureau-foundation/offload/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Values not injected fall back to the VCS stamp embedded by the go
// command, then to "unknown" / "0.1.0-dev" (test runs, go run).
//
// Formatting functions produce human-readable version strings:
//
//   - [Info] -- "0.1.0-dev (abc1234, 2026-02-10T...)" for --version
//   - [Full] -- Info plus Go version and GOOS/GOARCH
//   - [Short] -- just the version number
//   - [Commit] -- just the git SHA
//
// [NewCollector] exposes the same values as a Prometheus build_info
// gauge.
package version
