// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package offload keeps oversized values out of Temporal workflow
// history.
//
// A [Reference] replaces a large value wherever it crosses a durable
// boundary: activity inputs and results, workflow inputs, signals,
// queries and updates. Only a small JSON-compatible store reference is
// serialized; the value itself lives in a [Store], passing through a
// payload codec (compression, encryption) on the way in and out.
//
// Resolving a reference needs an engine, and the engine is never passed
// around explicitly. The worker [Interceptor] binds one to the context
// of every inbound call:
//
//	offloader, err := offload.NewInterceptor(offload.Options{
//	    Store: store,
//	    Codec: codec,
//	})
//	w := worker.New(c, "reports", worker.Options{
//	    Interceptors: []interceptor.WorkerInterceptor{offloader},
//	})
//
// Activities then store and fetch freely:
//
//	ref, err := offload.Offload(ctx, report)     // in an activity
//	report, err := ref.Fetch(ctx)                // in another activity
//
// Workflow code must stay deterministic under replay, so it uses
// [ExtractWorkflow]: the fetch and a caller-supplied transform run once
// as a local activity and only the transform's result is recorded.
// Replay returns the recorded result without touching the store.
//
//	words, err := offload.ExtractWorkflow(ctx, ref,
//	    func(ctx context.Context, report string) (int, error) {
//	        return len(strings.Fields(report)), nil
//	    })
//
// Activity and workflow code serialize with different converters, so
// there are two engine flavors: [Engine] (activity side) and
// [WorkflowEngine]. Workflow instances are rebuilt from history on
// replay and cannot hold live object references; the interceptor puts
// the workflow engine into a [Registry] under a stable name and each
// instance resolves it from there.
//
// Errors are sentinels matched with errors.Is. Activity failures caused
// by corrupt payloads, type mismatches, invalid references or missing
// bindings are reported to Temporal as non-retryable application
// errors.
package offload
