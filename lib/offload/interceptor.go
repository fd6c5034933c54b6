// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package offload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/workflow"
)

// Options configures [NewInterceptor].
type Options struct {
	// Store persists offloaded payloads. Required.
	Store Store

	// Codec transforms payloads before they reach the store and after
	// they leave it. Nil means identity.
	Codec converter.PayloadCodec

	// ActivityConverter serializes values in activities and inside
	// extract. Should match the worker client's data converter. Nil
	// means the SDK default.
	ActivityConverter converter.DataConverter

	// WorkflowConverter serializes values offloaded or fetched inline
	// from workflow code. Nil means ActivityConverter.
	WorkflowConverter converter.DataConverter

	// Recorder overrides how workflow-side store writes and extract
	// results are recorded. Nil means a local activity recorder using
	// LocalActivityOptions.
	Recorder Recorder

	// LocalActivityOptions for the default recorder. Nil means
	// [DefaultLocalActivityOptions] (no retries).
	LocalActivityOptions *workflow.LocalActivityOptions

	// FetchTimeout bounds inline fetches from workflow code. Zero
	// means [DefaultFetchTimeout]; values of [MaxFetchTimeout] or more
	// are rejected.
	FetchTimeout time.Duration

	// Registry receives the workflow engine. Nil means a fresh
	// registry owned by this interceptor.
	Registry *Registry

	// EngineName is the registry name of the workflow engine. Empty
	// means [WorkflowEngineName].
	EngineName string

	// Logger is used by both engines. Nil discards.
	Logger *slog.Logger
}

// Interceptor binds offload engines around every inbound activity and
// workflow call on a Temporal worker. Register it through
// worker.Options.Interceptors.
type Interceptor struct {
	interceptor.WorkerInterceptorBase

	activityEngine *Engine
	registry       *Registry
	engineName     string
}

var _ interceptor.WorkerInterceptor = (*Interceptor)(nil)

// NewInterceptor builds the activity and workflow engines from options
// and registers the workflow engine by name. A missing store or an
// engine name that cannot be registered and resolved fails here, at
// worker construction, rather than on the first workflow task.
func NewInterceptor(options Options) (*Interceptor, error) {
	if options.Store == nil {
		return nil, fmt.Errorf("offload: interceptor requires a Store")
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	activityConverter := options.ActivityConverter
	if activityConverter == nil {
		activityConverter = converter.GetDefaultDataConverter()
	}
	workflowConverter := options.WorkflowConverter
	if workflowConverter == nil {
		workflowConverter = activityConverter
	}

	activityEngine, err := NewEngine(EngineOptions{
		Store:     options.Store,
		Codec:     options.Codec,
		Converter: activityConverter,
		Logger:    logger.With("side", "activity"),
	})
	if err != nil {
		return nil, err
	}
	inlineEngine, err := NewEngine(EngineOptions{
		Store:     options.Store,
		Codec:     options.Codec,
		Converter: workflowConverter,
		Logger:    logger.With("side", "workflow"),
	})
	if err != nil {
		return nil, err
	}

	recorder := options.Recorder
	if recorder == nil {
		localOptions := DefaultLocalActivityOptions()
		if options.LocalActivityOptions != nil {
			localOptions = *options.LocalActivityOptions
		}
		recorder = LocalActivityRecorder{Options: localOptions}
	}

	workflowEngine, err := NewWorkflowEngine(WorkflowEngineOptions{
		Workflow:     inlineEngine,
		Activity:     activityEngine,
		Recorder:     recorder,
		FetchTimeout: options.FetchTimeout,
	})
	if err != nil {
		return nil, err
	}

	registry := options.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	engineName := options.EngineName
	if engineName == "" {
		engineName = WorkflowEngineName
	}
	if err := registry.Register(engineName, workflowEngine); err != nil {
		return nil, err
	}
	if _, err := registry.Lookup(engineName); err != nil {
		return nil, err
	}

	logger.Info("offload interceptor ready", "engine", engineName)

	return &Interceptor{
		activityEngine: activityEngine,
		registry:       registry,
		engineName:     engineName,
	}, nil
}

// InterceptActivity implements interceptor.WorkerInterceptor.
func (i *Interceptor) InterceptActivity(ctx context.Context, next interceptor.ActivityInboundInterceptor) interceptor.ActivityInboundInterceptor {
	return &activityInbound{
		ActivityInboundInterceptorBase: interceptor.ActivityInboundInterceptorBase{Next: next},
		engine:                         i.activityEngine,
	}
}

// InterceptWorkflow implements interceptor.WorkerInterceptor. It runs
// once per workflow instance (including every instance rebuilt for
// replay) and resolves the engine by name.
func (i *Interceptor) InterceptWorkflow(ctx workflow.Context, next interceptor.WorkflowInboundInterceptor) interceptor.WorkflowInboundInterceptor {
	engine, err := i.registry.Lookup(i.engineName)
	if err != nil {
		// NewInterceptor resolved this name and registries never
		// remove entries.
		panic(err)
	}
	return &workflowInbound{
		WorkflowInboundInterceptorBase: interceptor.WorkflowInboundInterceptorBase{Next: next},
		engine:                         engine,
	}
}

type activityInbound struct {
	interceptor.ActivityInboundInterceptorBase
	engine *Engine
}

func (a *activityInbound) ExecuteActivity(ctx context.Context, in *interceptor.ExecuteActivityInput) (interface{}, error) {
	result, err := a.Next.ExecuteActivity(WithEngine(ctx, a.engine), in)
	return result, asApplicationError(err)
}

type workflowInbound struct {
	interceptor.WorkflowInboundInterceptorBase
	engine *WorkflowEngine
}

func (w *workflowInbound) ExecuteWorkflow(ctx workflow.Context, in *interceptor.ExecuteWorkflowInput) (interface{}, error) {
	return w.Next.ExecuteWorkflow(WithWorkflowEngine(ctx, w.engine), in)
}

func (w *workflowInbound) HandleSignal(ctx workflow.Context, in *interceptor.HandleSignalInput) error {
	return w.Next.HandleSignal(WithWorkflowEngine(ctx, w.engine), in)
}

func (w *workflowInbound) HandleQuery(ctx workflow.Context, in *interceptor.HandleQueryInput) (interface{}, error) {
	return w.Next.HandleQuery(WithWorkflowEngine(ctx, w.engine), in)
}

func (w *workflowInbound) ValidateUpdate(ctx workflow.Context, in *interceptor.UpdateInput) error {
	return w.Next.ValidateUpdate(WithWorkflowEngine(ctx, w.engine), in)
}

func (w *workflowInbound) ExecuteUpdate(ctx workflow.Context, in *interceptor.UpdateInput) (interface{}, error) {
	return w.Next.ExecuteUpdate(WithWorkflowEngine(ctx, w.engine), in)
}
