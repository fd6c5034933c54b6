// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package offload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.temporal.io/sdk/workflow"
)

// Reference stands in for a value of type T across a durable boundary.
//
// A reference is either resolved (the value is in memory) or
// unresolved (only the encoded store reference is known and the value
// is fetched on demand through the engine bound to the context). [Of]
// builds a resolved reference that has not been offloaded yet;
// [Offload] stores the value and returns a reference that is both
// resolved and offloaded; a reference decoded from a payload is
// unresolved.
//
// Only the encoded reference crosses the boundary. It serializes as
//
//	{"ref": <encoded reference>}
//
// The reference does not own the stored bytes; the store does.
type Reference[T any] struct {
	encoded  json.RawMessage
	value    T
	hasValue bool
}

type wireReference struct {
	Ref json.RawMessage `json:"ref"`
}

// Of returns a resolved reference to value. It cannot cross a durable
// boundary until it is offloaded.
func Of[T any](value T) *Reference[T] {
	return &Reference[T]{value: value, hasValue: true}
}

// FromEncoded returns an unresolved reference to the payload a store
// identified by ref.
func FromEncoded[T any](ref any) (*Reference[T], error) {
	encoded, err := encodeReference(ref)
	if err != nil {
		return nil, err
	}
	return &Reference[T]{encoded: encoded}, nil
}

// Encoded returns the JSON-encoded store reference, or nil if the value
// was never offloaded.
func (r *Reference[T]) Encoded() json.RawMessage {
	return r.encoded
}

// Resolved reports whether the value is in memory.
func (r *Reference[T]) Resolved() bool {
	return r.hasValue
}

// Offloaded reports whether the value has a store reference.
func (r *Reference[T]) Offloaded() bool {
	return len(r.encoded) > 0
}

// MarshalJSON implements json.Marshaler. It fails with
// [ErrNotOffloaded] for a reference that only holds an in-memory value:
// marshaling it would silently drop the value.
func (r Reference[T]) MarshalJSON() ([]byte, error) {
	if len(r.encoded) == 0 {
		return nil, ErrNotOffloaded
	}
	return json.Marshal(wireReference{Ref: r.encoded})
}

// UnmarshalJSON implements json.Unmarshaler. The result is unresolved.
func (r *Reference[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var wire wireReference
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	ref, err := decodeReference(wire.Ref)
	if err != nil {
		return err
	}
	if err := ValidateJSONValue(ref); err != nil {
		return err
	}

	var zero T
	r.encoded = wire.Ref
	r.value = zero
	r.hasValue = false
	return nil
}

// Fetch returns the referenced value. A resolved reference returns its
// value without I/O. Otherwise the value is fetched through the engine
// bound to ctx and cached on the reference.
//
// Use Fetch in activities. From workflow code use [ExtractWorkflow].
func (r *Reference[T]) Fetch(ctx context.Context) (T, error) {
	if r.hasValue {
		return r.value, nil
	}
	engine, err := EngineFromContext(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	value, err := r.load(ctx, engine)
	if err != nil {
		return value, err
	}
	r.value, r.hasValue = value, true
	return value, nil
}

// FetchWorkflow is [Reference.Fetch] from workflow code. The read
// happens inline on the workflow goroutine during normal execution and
// again on every replay, so store latency and store content both leak
// into workflow execution. The read is cut off after the engine's
// fetch timeout, which is always under [MaxFetchTimeout]; a slower
// store fails the fetch with the store's error. Prefer
// [ExtractWorkflow], which records the result and runs off the
// workflow goroutine.
func (r *Reference[T]) FetchWorkflow(ctx workflow.Context) (T, error) {
	if r.hasValue {
		return r.value, nil
	}
	var value T
	engine, err := WorkflowEngineFromContext(ctx)
	if err != nil {
		return value, err
	}
	if len(r.encoded) == 0 {
		return value, errEmptyReference
	}
	if err := engine.fetch(ctx, r.encoded, &value); err != nil {
		return value, err
	}
	r.value, r.hasValue = value, true
	return value, nil
}

var errEmptyReference = fmt.Errorf("%w: reference has neither a value nor an encoded reference", ErrInvalidReference)

// load returns the cached value or fetches through engine without
// caching.
func (r *Reference[T]) load(ctx context.Context, engine *Engine) (T, error) {
	var value T
	if r.hasValue {
		return r.value, nil
	}
	if len(r.encoded) == 0 {
		return value, errEmptyReference
	}
	if err := engine.Fetch(ctx, r.encoded, &value); err != nil {
		return value, err
	}
	return value, nil
}

// Offload stores value through the engine bound to ctx. The returned
// reference is resolved and offloaded.
func Offload[T any](ctx context.Context, value T) (*Reference[T], error) {
	engine, err := EngineFromContext(ctx)
	if err != nil {
		return nil, err
	}
	encoded, err := engine.Store(ctx, value)
	if err != nil {
		return nil, err
	}
	return &Reference[T]{encoded: encoded, value: value, hasValue: true}, nil
}

// OffloadWorkflow stores value from workflow code. The store write is
// recorded, so replay returns the same reference without writing.
func OffloadWorkflow[T any](ctx workflow.Context, value T) (*Reference[T], error) {
	engine, err := WorkflowEngineFromContext(ctx)
	if err != nil {
		return nil, err
	}
	encoded, err := engine.store(ctx, value)
	if err != nil {
		return nil, err
	}
	return &Reference[T]{encoded: encoded, value: value, hasValue: true}, nil
}

// Extract fetches the referenced value through the engine bound to ctx
// and applies transform to it.
func Extract[T, U any](ctx context.Context, ref *Reference[T], transform func(context.Context, T) (U, error)) (U, error) {
	var zero U
	if ref == nil {
		return zero, fmt.Errorf("%w: nil reference", ErrInvalidReference)
	}
	value, err := ref.Fetch(ctx)
	if err != nil {
		return zero, err
	}
	return transform(ctx, value)
}

// ExtractWorkflow applies transform to the referenced value from
// workflow code. The first execution fetches and transforms inside one
// recorded side operation; replay returns the recorded result without
// touching the store or calling transform. A failed fetch or transform
// is recorded as well and resurfaces identically on replay.
func ExtractWorkflow[T, U any](ctx workflow.Context, ref *Reference[T], transform func(context.Context, T) (U, error)) (U, error) {
	var zero U
	if ref == nil {
		return zero, fmt.Errorf("%w: nil reference", ErrInvalidReference)
	}
	engine, err := WorkflowEngineFromContext(ctx)
	if err != nil {
		return zero, err
	}
	return extractWorkflow(ctx, engine, ref, transform)
}
