// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package offload

import (
	"context"
	"time"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Recorder runs a side operation from workflow code exactly once and
// records its result. On replay Record returns the recorded result (or
// failure) without calling fn.
type Recorder interface {
	Record(ctx workflow.Context, fn func(context.Context) (*commonpb.Payload, error)) (*commonpb.Payload, error)
}

// DefaultLocalActivityOptions are the options [LocalActivityRecorder]
// uses when none are given. A failed fetch or transform is not retried
// here: the failure is recorded and the workflow decides what to do.
func DefaultLocalActivityOptions() workflow.LocalActivityOptions {
	return workflow.LocalActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
}

// LocalActivityRecorder records through a local activity. The closure
// runs on the activity worker pool, off the workflow goroutine, and
// its result lands in history as a marker.
type LocalActivityRecorder struct {
	Options workflow.LocalActivityOptions
}

// Record implements [Recorder].
func (r LocalActivityRecorder) Record(ctx workflow.Context, fn func(context.Context) (*commonpb.Payload, error)) (*commonpb.Payload, error) {
	ctx = workflow.WithLocalActivityOptions(ctx, r.Options)
	var result *commonpb.Payload
	if err := workflow.ExecuteLocalActivity(ctx, fn).Get(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}
