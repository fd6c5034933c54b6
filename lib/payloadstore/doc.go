// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package payloadstore provides [offload.Store] implementations.
//
// Every store here is content-addressed: a payload is packed into its
// deterministic CBOR envelope ([codec.MarshalPayload]) and stored under
// [ContentKey] of those bytes, a string of the form "blake3:<hex>".
// The key is the reference handed back to the offload engine, so it is
// JSON-compatible by construction, and storing the same payload twice
// yields the same reference and a single stored copy.
//
// Backends:
//
//   - [Memory]: process-local map. Tests and single-process demos only;
//     references do not survive a restart.
//   - [File]: one file per payload under a root directory, written
//     atomically with a two-level fan-out.
//   - [SQLite]: a single table in a WAL-mode database, accessed through
//     a zombiezen connection pool.
//   - [NATS]: a JetStream object store bucket.
//
// [Instrumented] wraps any store with Prometheus counters and latency
// histograms. [Open] builds the store named by configuration.
//
// Fetch reports unknown references as [offload.ErrNotFound], malformed
// references as [offload.ErrInvalidReference], data that does not hash
// to its key as [offload.ErrCorruptPayload], and backend I/O failures
// as [offload.ErrStoreUnavailable].
package payloadstore
