// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package offload

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/workflow"
)

// DefaultFetchTimeout bounds inline store reads made from workflow
// code by [Reference.FetchWorkflow].
const DefaultFetchTimeout = 800 * time.Millisecond

// MaxFetchTimeout is the exclusive upper bound on the inline fetch
// timeout. The SDK fails a workflow task whose goroutine does not yield
// for one second (TMPRL1101), so a longer bound is never reached.
const MaxFetchTimeout = time.Second

// WorkflowEngineOptions configures a [WorkflowEngine].
type WorkflowEngineOptions struct {
	// Workflow is the engine built with the workflow-side converter.
	// Used for inline fetches and for serializing values offloaded
	// from workflow code. Required.
	Workflow *Engine

	// Activity is the engine built with the activity-side converter.
	// Extract runs its fetch and transform through it, inside the
	// recorded operation. Required.
	Activity *Engine

	// Recorder records store writes and extract results. Nil means a
	// [LocalActivityRecorder] with [DefaultLocalActivityOptions].
	Recorder Recorder

	// FetchTimeout bounds inline fetches. Zero means
	// [DefaultFetchTimeout]; it must be below [MaxFetchTimeout].
	FetchTimeout time.Duration
}

// WorkflowEngine is the workflow-side binding. Workflow code must be
// deterministic under replay, so everything that touches the store
// either goes through the recorder (store, extract) or is documented as
// unsafe (inline fetch).
type WorkflowEngine struct {
	inline       *Engine
	offloader    *Engine
	recorder     Recorder
	fetchTimeout time.Duration
}

// NewWorkflowEngine creates a workflow engine from options.
func NewWorkflowEngine(options WorkflowEngineOptions) (*WorkflowEngine, error) {
	if options.Workflow == nil {
		return nil, fmt.Errorf("offload: Workflow engine is required")
	}
	if options.Activity == nil {
		return nil, fmt.Errorf("offload: Activity engine is required")
	}
	if options.FetchTimeout >= MaxFetchTimeout {
		return nil, fmt.Errorf("offload: FetchTimeout %s must be below %s", options.FetchTimeout, MaxFetchTimeout)
	}
	engine := &WorkflowEngine{
		inline:       options.Workflow,
		offloader:    options.Activity,
		recorder:     options.Recorder,
		fetchTimeout: options.FetchTimeout,
	}
	if engine.recorder == nil {
		engine.recorder = LocalActivityRecorder{Options: DefaultLocalActivityOptions()}
	}
	if engine.fetchTimeout <= 0 {
		engine.fetchTimeout = DefaultFetchTimeout
	}
	return engine, nil
}

// fetch reads a payload inline on the workflow goroutine. The store is
// an outside source of latency and content; on replay the same read
// happens again.
func (w *WorkflowEngine) fetch(ctx workflow.Context, encoded json.RawMessage, valuePtr any) error {
	fetchContext, cancel := context.WithTimeout(context.Background(), w.fetchTimeout)
	defer cancel()

	workflow.GetLogger(ctx).Debug("inline payload fetch from workflow code", "ref", string(encoded))
	return w.inline.Fetch(fetchContext, encoded, valuePtr)
}

// store serializes inline with the workflow converter, then records the
// store write so replay returns the original reference without writing
// again.
func (w *WorkflowEngine) store(ctx workflow.Context, value any) (json.RawMessage, error) {
	payload, err := w.inline.encode(value)
	if err != nil {
		return nil, err
	}

	recorded, err := w.recorder.Record(ctx, func(ctx context.Context) (*commonpb.Payload, error) {
		encoded, err := w.inline.persist(ctx, payload)
		if err != nil {
			return nil, asApplicationError(err)
		}
		return &commonpb.Payload{
			Metadata: map[string][]byte{
				converter.MetadataEncoding: []byte(converter.MetadataEncodingJSON),
			},
			Data: encoded,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	encoded := json.RawMessage(recorded.GetData())
	if !json.Valid(encoded) {
		return nil, fmt.Errorf("%w: recorded reference is not JSON", ErrInvalidReference)
	}
	return encoded, nil
}

// extractWorkflow runs fetch and transform as one recorded operation.
// Offload failures inside it become application errors whose type
// (for example "OffloadCorruptPayload") survives into history.
// History holds only the serialized transform result; the raw value
// never enters it, and replay needs neither the store nor the
// transformer.
func extractWorkflow[T, U any](ctx workflow.Context, engine *WorkflowEngine, ref *Reference[T], transform func(context.Context, T) (U, error)) (U, error) {
	var result U

	recorded, err := engine.recorder.Record(ctx, func(ctx context.Context) (*commonpb.Payload, error) {
		value, err := ref.load(ctx, engine.offloader)
		if err != nil {
			return nil, asApplicationError(err)
		}
		transformed, err := transform(ctx, value)
		if err != nil {
			return nil, err
		}
		return engine.offloader.converter.ToPayload(transformed)
	})
	if err != nil {
		return result, err
	}

	if err := engine.offloader.converter.FromPayload(recorded, &result); err != nil {
		return result, fmt.Errorf("%w: recorded extract result into %T: %v", ErrDeserialization, &result, err)
	}
	return result, nil
}
