// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package offload

import (
	"context"

	"go.temporal.io/sdk/workflow"
)

type engineKey struct{}

type workflowEngineKey struct{}

// WithEngine returns a child of ctx with engine bound as the current
// activity-side engine. The parent keeps whatever binding it had, so
// leaving the child's scope restores the previous engine and
// concurrent call stacks never observe each other's binding.
func WithEngine(ctx context.Context, engine *Engine) context.Context {
	return context.WithValue(ctx, engineKey{}, engine)
}

// EngineFromContext returns the engine bound to ctx, or
// [ErrUnboundEngine].
func EngineFromContext(ctx context.Context) (*Engine, error) {
	engine, _ := ctx.Value(engineKey{}).(*Engine)
	if engine == nil {
		return nil, ErrUnboundEngine
	}
	return engine, nil
}

// WithWorkflowEngine is [WithEngine] for workflow contexts.
func WithWorkflowEngine(ctx workflow.Context, engine *WorkflowEngine) workflow.Context {
	return workflow.WithValue(ctx, workflowEngineKey{}, engine)
}

// WorkflowEngineFromContext returns the workflow engine bound to ctx,
// or [ErrUnboundEngine].
func WorkflowEngineFromContext(ctx workflow.Context) (*WorkflowEngine, error) {
	engine, _ := ctx.Value(workflowEngineKey{}).(*WorkflowEngine)
	if engine == nil {
		return nil, ErrUnboundEngine
	}
	return engine, nil
}
