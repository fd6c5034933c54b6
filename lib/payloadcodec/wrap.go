// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadcodec

import (
	"fmt"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"

	"github.com/bureau-foundation/offload/lib/codec"
)

// encodingOf returns the payload's "encoding" metadata value.
func encodingOf(payload *commonpb.Payload) string {
	return string(payload.GetMetadata()[converter.MetadataEncoding])
}

// wrap packs a payload into a new payload produced by a codec. extra
// metadata is added next to the encoding tag.
func wrap(encoding string, data []byte, extra map[string]string) *commonpb.Payload {
	metadata := make(map[string][]byte, len(extra)+1)
	metadata[converter.MetadataEncoding] = []byte(encoding)
	for key, value := range extra {
		metadata[key] = []byte(value)
	}
	return &commonpb.Payload{Metadata: metadata, Data: data}
}

// transformEach maps fn over payloads, preserving order.
func transformEach(payloads []*commonpb.Payload, fn func(*commonpb.Payload) (*commonpb.Payload, error)) ([]*commonpb.Payload, error) {
	result := make([]*commonpb.Payload, len(payloads))
	for index, payload := range payloads {
		transformed, err := fn(payload)
		if err != nil {
			return nil, fmt.Errorf("payload %d: %w", index, err)
		}
		result[index] = transformed
	}
	return result, nil
}

// pack serializes a whole payload so a codec can transform it as bytes.
func pack(payload *commonpb.Payload) ([]byte, error) {
	return codec.MarshalPayload(payload)
}

// unpack reverses pack.
func unpack(data []byte) (*commonpb.Payload, error) {
	return codec.UnmarshalPayload(data)
}
