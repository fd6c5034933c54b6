// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the scaffolding shared by the offload
// binaries.
//
//   - Logging: [NewLogger] builds the process logger from
//     config.LogConfig and installs it as the slog default.
//   - Temporal: [Dial] connects a client with its logging bridged to
//     slog; [InterceptorOptions] turns the loaded configuration into
//     offload interceptor options.
//   - Metrics: [MetricsServer] serves the Prometheus registry over
//     HTTP with graceful shutdown.
//
// Binaries compose these in their own main() function rather than
// subclassing a framework. The package provides building blocks, not a
// runtime.
package service
