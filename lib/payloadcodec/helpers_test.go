// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadcodec

import (
	"bytes"
	"crypto/rand"
	"testing"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
	"google.golang.org/protobuf/proto"
)

func jsonPayload(data []byte) *commonpb.Payload {
	return &commonpb.Payload{
		Metadata: map[string][]byte{converter.MetadataEncoding: []byte(converter.MetadataEncodingJSON)},
		Data:     data,
	}
}

// compressibleJSON returns repetitive JSON of roughly size bytes.
func compressibleJSON(size int) []byte {
	row := []byte(`{"region":"eu-west-1","status":"ok","count":42},`)
	var buffer bytes.Buffer
	buffer.WriteByte('[')
	for buffer.Len() < size {
		buffer.Write(row)
	}
	buffer.WriteString(`{}]`)
	return buffer.Bytes()
}

func randomBytes(t *testing.T, size int) []byte {
	t.Helper()
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return data
}

func testKey(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, KeySize)
}

func roundtrip(t *testing.T, codec converter.PayloadCodec, payloads ...*commonpb.Payload) []*commonpb.Payload {
	t.Helper()
	encoded, err := codec.Encode(payloads)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(encoded) != len(payloads) {
		t.Fatalf("Encode returned %d payloads, want %d", len(encoded), len(payloads))
	}
	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != len(payloads) {
		t.Fatalf("Decode returned %d payloads, want %d", len(decoded), len(payloads))
	}
	for index := range payloads {
		if !proto.Equal(decoded[index], payloads[index]) {
			t.Errorf("payload %d changed in roundtrip", index)
		}
	}
	return encoded
}
