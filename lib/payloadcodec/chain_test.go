// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadcodec

import (
	"errors"
	"testing"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
)

// tagCodec appends its name to the data on encode and strips it on
// decode, failing if the suffix is not its own.
type tagCodec struct {
	name string
	log  *[]string
}

func (c tagCodec) Encode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	*c.log = append(*c.log, "encode:"+c.name)
	result := make([]*commonpb.Payload, len(payloads))
	for index, payload := range payloads {
		data := append(append([]byte{}, payload.GetData()...), c.name...)
		result[index] = &commonpb.Payload{Metadata: payload.GetMetadata(), Data: data}
	}
	return result, nil
}

func (c tagCodec) Decode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	*c.log = append(*c.log, "decode:"+c.name)
	result := make([]*commonpb.Payload, len(payloads))
	for index, payload := range payloads {
		data := payload.GetData()
		if len(data) < len(c.name) || string(data[len(data)-len(c.name):]) != c.name {
			return nil, errTagMismatch
		}
		result[index] = &commonpb.Payload{Metadata: payload.GetMetadata(), Data: data[:len(data)-len(c.name)]}
	}
	return result, nil
}

var errTagMismatch = errors.New("tag mismatch")

func TestNewChain_Empty(t *testing.T) {
	codec := NewChain()
	if _, ok := codec.(Identity); !ok {
		t.Fatalf("empty chain should be Identity, got %T", codec)
	}
	encoded := roundtrip(t, codec, jsonPayload([]byte(`"x"`)))
	if string(encoded[0].GetData()) != `"x"` {
		t.Errorf("identity changed data: %q", encoded[0].GetData())
	}
}

func TestNewChain_NilEntriesDropped(t *testing.T) {
	var log []string
	single := tagCodec{name: "a", log: &log}
	codec := NewChain(nil, single, nil)
	if _, ok := codec.(tagCodec); !ok {
		t.Fatalf("single-codec chain should return the codec itself, got %T", codec)
	}
}

func TestChain_Order(t *testing.T) {
	var log []string
	codec := NewChain(
		tagCodec{name: "first", log: &log},
		tagCodec{name: "second", log: &log},
		tagCodec{name: "third", log: &log},
	)

	payloads := []*commonpb.Payload{jsonPayload([]byte(`1`)), jsonPayload([]byte(`2`))}
	encoded := roundtrip(t, codec, payloads...)
	if got := string(encoded[0].GetData()); got != "1firstsecondthird" {
		t.Errorf("encode order: got %q", got)
	}

	want := []string{
		"encode:first", "encode:second", "encode:third",
		"decode:third", "decode:second", "decode:first",
	}
	if len(log) != len(want) {
		t.Fatalf("call log = %v, want %v", log, want)
	}
	for index := range want {
		if log[index] != want[index] {
			t.Errorf("call %d = %s, want %s", index, log[index], want[index])
		}
	}
}

func TestChain_EmptyPayloadList(t *testing.T) {
	var log []string
	codec := NewChain(tagCodec{name: "a", log: &log}, tagCodec{name: "b", log: &log})
	encoded, err := codec.Encode(nil)
	if err != nil {
		t.Fatalf("Encode(nil): %v", err)
	}
	if len(encoded) != 0 {
		t.Errorf("expected no payloads, got %d", len(encoded))
	}
}

func TestChain_DecodeErrorStops(t *testing.T) {
	var log []string
	codec := NewChain(tagCodec{name: "a", log: &log}, tagCodec{name: "b", log: &log})
	_, err := codec.Decode([]*commonpb.Payload{jsonPayload([]byte("no-suffix"))})
	if !errors.Is(err, errTagMismatch) {
		t.Fatalf("expected errTagMismatch, got %v", err)
	}
	if len(log) != 1 || log[0] != "decode:b" {
		t.Errorf("decode should stop at the first failure, log = %v", log)
	}
}

func TestChain_RealCodecs(t *testing.T) {
	compression, err := NewCompression(CompressionZstd, 0)
	if err != nil {
		t.Fatalf("NewCompression: %v", err)
	}
	encryption, err := NewEncryption(testKey(7))
	if err != nil {
		t.Fatalf("NewEncryption: %v", err)
	}
	defer encryption.Close()

	codec := NewChain(compression, encryption)
	encoded := roundtrip(t, codec, jsonPayload(compressibleJSON(64<<10)))
	if got := encodingOf(encoded[0]); got != EncryptionEncoding {
		t.Errorf("outer encoding = %q, want %q", got, EncryptionEncoding)
	}
	// Compression ran first, so the sealed payload is far smaller than the input.
	if len(encoded[0].GetData()) > 16<<10 {
		t.Errorf("sealed payload is %d bytes; compression did not run before encryption", len(encoded[0].GetData()))
	}
}

var _ converter.PayloadCodec = tagCodec{}
