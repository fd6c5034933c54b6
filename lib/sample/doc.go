// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sample is a report workflow built on offload references.
//
// [Activities.GenerateReport] produces a report far larger than a
// history event allows and returns it as an offloaded reference. The
// workflow summarizes it through [offload.ExtractWorkflow], so only the
// summary lands in history. While it waits, clients append sections by
// signalling [SignalAppendSection] with references they offloaded
// themselves, and read progress through the [QuerySummary] query. A
// [SignalPublish] signal (or AwaitSignals=false) ends the wait and
// [Activities.Publish] fetches every reference and renders the report
// to disk.
//
// The worker in cmd/offload-worker registers this package; the
// cmd/offload-start client drives it.
package sample
