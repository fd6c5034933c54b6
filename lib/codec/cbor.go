// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	commonpb "go.temporal.io/api/common/v1"
)

// envelopeVersion is written into every payload envelope. Decoders
// reject envelopes with a different version instead of guessing.
const envelopeVersion = 1

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Payload metadata keys are always strings; decoding into any
		// must not produce map[interface{}]interface{}.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// These bound the declared element counts of arrays and maps.
		// Byte strings have no separate limit: the decoder checks
		// well-formedness first, so a declared length can never
		// exceed the bytes actually present.
		MaxArrayElements: 1 << 20,
		MaxMapPairs:      1 << 16,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// envelope is the at-rest form of a Temporal payload. Integer keys keep
// the per-payload overhead to a handful of bytes.
type envelope struct {
	Version  int               `cbor:"1,keyasint"`
	Metadata map[string][]byte `cbor:"2,keyasint,omitempty"`
	Data     []byte            `cbor:"3,keyasint,omitempty"`
}

// ErrMalformedEnvelope is returned by [UnmarshalPayload] when the bytes
// are not a payload envelope this package wrote.
var ErrMalformedEnvelope = errors.New("codec: malformed payload envelope")

// MarshalPayload packs a payload into its deterministic envelope.
func MarshalPayload(payload *commonpb.Payload) ([]byte, error) {
	if payload == nil {
		return nil, fmt.Errorf("codec: cannot marshal nil payload")
	}
	data, err := encMode.Marshal(envelope{
		Version:  envelopeVersion,
		Metadata: payload.GetMetadata(),
		Data:     payload.GetData(),
	})
	if err != nil {
		return nil, fmt.Errorf("codec: encoding payload envelope: %w", err)
	}
	return data, nil
}

// UnmarshalPayload reverses [MarshalPayload].
func UnmarshalPayload(data []byte) (*commonpb.Payload, error) {
	var decoded envelope
	if err := decMode.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if decoded.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: version %d (expected %d)",
			ErrMalformedEnvelope, decoded.Version, envelopeVersion)
	}
	return &commonpb.Payload{
		Metadata: decoded.Metadata,
		Data:     decoded.Data,
	}, nil
}
