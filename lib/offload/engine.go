// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package offload

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"

	"github.com/bureau-foundation/offload/lib/payloadcodec"
)

// EngineOptions configures an [Engine].
type EngineOptions struct {
	// Store persists encoded payloads. Required.
	Store Store

	// Codec transforms payloads on their way to and from the store.
	// Nil means identity.
	Codec converter.PayloadCodec

	// Converter serializes values to payloads. It is the
	// serialization of the execution context the engine is bound to:
	// activity engines get the activity-side converter, workflow
	// engines the workflow-side one. Nil means the SDK default.
	Converter converter.DataConverter

	// Logger receives debug records for each store and fetch. Nil
	// discards.
	Logger *slog.Logger
}

// Engine moves values between memory and the store:
// Converter → Codec → Store on the way out, the reverse on the way in.
// An Engine holds no per-call state and is safe for concurrent use.
type Engine struct {
	store     Store
	codec     converter.PayloadCodec
	converter converter.DataConverter
	logger    *slog.Logger
}

// NewEngine creates an engine from options.
func NewEngine(options EngineOptions) (*Engine, error) {
	if options.Store == nil {
		return nil, fmt.Errorf("offload: Store is required")
	}
	engine := &Engine{
		store:     options.Store,
		codec:     options.Codec,
		converter: options.Converter,
		logger:    options.Logger,
	}
	if engine.codec == nil {
		engine.codec = payloadcodec.Identity{}
	}
	if engine.converter == nil {
		engine.converter = converter.GetDefaultDataConverter()
	}
	if engine.logger == nil {
		engine.logger = slog.New(slog.DiscardHandler)
	}
	return engine, nil
}

// Store serializes value, encodes it and persists it, returning the
// JSON-encoded reference. A store that returns a reference which is not
// JSON-compatible fails here, before the value counts as offloaded.
func (e *Engine) Store(ctx context.Context, value any) (json.RawMessage, error) {
	payload, err := e.encode(value)
	if err != nil {
		return nil, err
	}
	return e.persist(ctx, payload)
}

// Fetch loads the payload behind encoded, decodes it and deserializes
// it into valuePtr.
func (e *Engine) Fetch(ctx context.Context, encoded json.RawMessage, valuePtr any) error {
	ref, err := decodeReference(encoded)
	if err != nil {
		return err
	}

	stored, err := e.store.Fetch(ctx, ref)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", encoded, err)
	}

	decoded, err := e.decode(stored)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", encoded, err)
	}

	if err := e.converter.FromPayload(decoded, valuePtr); err != nil {
		return fmt.Errorf("%w: %s into %T: %v", ErrDeserialization, encoded, valuePtr, err)
	}

	e.logger.Debug("payload fetched",
		"ref", string(encoded),
		"stored_bytes", len(stored.GetData()),
		"decoded_bytes", len(decoded.GetData()),
	)
	return nil
}

// encode serializes a value and runs it through the codec.
func (e *Engine) encode(value any) (*commonpb.Payload, error) {
	payload, err := e.converter.ToPayload(value)
	if err != nil {
		return nil, fmt.Errorf("offload: serializing %T: %w", value, err)
	}
	encoded, err := e.codec.Encode([]*commonpb.Payload{payload})
	if err != nil {
		return nil, fmt.Errorf("offload: encoding payload: %w", err)
	}
	if len(encoded) != 1 {
		return nil, fmt.Errorf("offload: codec returned %d payloads for 1", len(encoded))
	}
	return encoded[0], nil
}

// decode reverses the codec. Any failure is corruption: the bytes the
// store returned are not something this codec chain produced.
func (e *Engine) decode(payload *commonpb.Payload) (*commonpb.Payload, error) {
	decoded, err := e.codec.Decode([]*commonpb.Payload{payload})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	if len(decoded) != 1 {
		return nil, fmt.Errorf("%w: codec returned %d payloads for 1", ErrCorruptPayload, len(decoded))
	}
	return decoded[0], nil
}

// persist writes an encoded payload and validates the returned
// reference.
func (e *Engine) persist(ctx context.Context, payload *commonpb.Payload) (json.RawMessage, error) {
	ref, err := e.store.Store(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("storing payload: %w", err)
	}
	encoded, err := encodeReference(ref)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("payload offloaded",
		"ref", string(encoded),
		"stored_bytes", len(payload.GetData()),
	)
	return encoded, nil
}
