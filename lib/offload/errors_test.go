// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package offload

import (
	"errors"
	"fmt"
	"testing"

	"go.temporal.io/sdk/temporal"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrNotFound, true},
		{fmt.Errorf("fetching: %w", ErrStoreUnavailable), true},
		{errors.New("unclassified"), true},
		{ErrUnboundEngine, false},
		{fmt.Errorf("decoding: %w", ErrCorruptPayload), false},
		{ErrDeserialization, false},
		{ErrInvalidReference, false},
		{ErrNotOffloaded, false},
	}
	for _, test := range tests {
		if got := IsRetryable(test.err); got != test.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", test.err, got, test.want)
		}
	}
}

func TestAsApplicationError(t *testing.T) {
	if asApplicationError(nil) != nil {
		t.Error("nil should stay nil")
	}

	transient := fmt.Errorf("storing: %w", ErrStoreUnavailable)
	if asApplicationError(transient) != transient {
		t.Error("retryable errors should pass through unchanged")
	}

	corrupt := fmt.Errorf("decoding: %w", ErrCorruptPayload)
	converted := asApplicationError(corrupt)
	var applicationError *temporal.ApplicationError
	if !errors.As(converted, &applicationError) {
		t.Fatalf("expected ApplicationError, got %T", converted)
	}
	if !applicationError.NonRetryable() {
		t.Error("corrupt payload should be non-retryable")
	}
	if applicationError.Type() != "OffloadCorruptPayload" {
		t.Errorf("type = %q", applicationError.Type())
	}
	if !errors.Is(converted, ErrCorruptPayload) {
		t.Error("converted error lost its cause")
	}

	existing := temporal.NewApplicationError("already typed", "Custom")
	if asApplicationError(existing) != existing {
		t.Error("existing application errors should pass through")
	}
}
