// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadstore

import (
	"context"
	"errors"
	"testing"

	"github.com/bureau-foundation/offload/lib/offload"
)

func TestMemory(t *testing.T) {
	runStoreConformance(t, NewMemory())
}

func TestMemory_DeleteAndLen(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	ref, err := store.Store(ctx, testPayload(`"a"`))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	store.Store(ctx, testPayload(`"a"`))
	if store.Len() != 1 {
		t.Fatalf("Len = %d after storing one payload twice, want 1", store.Len())
	}

	if err := store.Delete(ref); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d after delete, want 0", store.Len())
	}
	if _, err := store.Fetch(ctx, ref); !errors.Is(err, offload.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ref); err != nil {
		t.Errorf("deleting twice should not fail: %v", err)
	}
	if err := store.Delete(17); !errors.Is(err, offload.ErrInvalidReference) {
		t.Errorf("expected ErrInvalidReference, got %v", err)
	}
}
