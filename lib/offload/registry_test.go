// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package offload

import (
	"testing"
)

func TestRegistry(t *testing.T) {
	_, first := newTestEngines(newCountingStore(), &replayRecorder{})
	_, second := newTestEngines(newCountingStore(), &replayRecorder{})

	registry := NewRegistry()
	if err := registry.Register("reports", first); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := registry.Register(WorkflowEngineName, second); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if got, err := registry.Lookup("reports"); err != nil || got != first {
		t.Errorf("Lookup(reports) = %p, %v", got, err)
	}
	if _, err := registry.Lookup("absent"); err == nil {
		t.Error("expected error for unknown name")
	}
	if err := registry.Register("reports", second); err == nil {
		t.Error("expected error registering a name twice")
	}
	if err := registry.Register("", first); err == nil {
		t.Error("expected error for empty name")
	}
	if err := registry.Register("nil", nil); err == nil {
		t.Error("expected error for nil engine")
	}

	names := registry.Names()
	if len(names) != 2 || names[0] != WorkflowEngineName || names[1] != "reports" {
		t.Errorf("Names = %v", names)
	}
}

func TestRegistry_Independent(t *testing.T) {
	_, engine := newTestEngines(newCountingStore(), &replayRecorder{})
	first, second := NewRegistry(), NewRegistry()
	if err := first.Register(WorkflowEngineName, engine); err != nil {
		t.Fatal(err)
	}
	if err := second.Register(WorkflowEngineName, engine); err != nil {
		t.Errorf("registries should not share names: %v", err)
	}
}
