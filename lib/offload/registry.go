// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package offload

import (
	"fmt"
	"slices"
	"sync"
)

// WorkflowEngineName is the registry name the interceptor uses for its
// workflow engine unless [Options].EngineName overrides it.
const WorkflowEngineName = "__offload_workflow_engine"

// Registry maps stable names to workflow engines. Workflow instances
// are rebuilt from history on every replay and cannot carry live
// object references, so each instance resolves its engine here by name.
// A Registry belongs to one worker; there is no process-wide instance.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]*WorkflowEngine
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]*WorkflowEngine)}
}

// Register adds engine under name. Names are write-once.
func (r *Registry) Register(name string, engine *WorkflowEngine) error {
	if name == "" {
		return fmt.Errorf("offload: registry name cannot be empty")
	}
	if engine == nil {
		return fmt.Errorf("offload: cannot register nil engine as %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.engines[name]; exists {
		return fmt.Errorf("offload: engine %q already registered", name)
	}
	r.engines[name] = engine
	return nil
}

// Lookup returns the engine registered under name.
func (r *Registry) Lookup(name string) (*WorkflowEngine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	engine, exists := r.engines[name]
	if !exists {
		return nil, fmt.Errorf("offload: no engine registered as %q", name)
	}
	return engine, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
