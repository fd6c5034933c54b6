// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for offload
// workers and clients.
//
// Configuration is loaded from a single file specified by either the
// OFFLOAD_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search.
//
// The file supports environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production defaults to JSON logs.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${OFFLOAD_ROOT}, and ${VAR:-default} patterns are expanded.
//
// Key exports:
//
//   - [Config] -- master struct with Temporal, Store, Codec, Offload, Log, Metrics
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other packages in this module.
package config
