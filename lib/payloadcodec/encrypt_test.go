// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadcodec

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	commonpb "go.temporal.io/api/common/v1"
	"google.golang.org/protobuf/proto"
)

func newTestEncryption(t *testing.T, primary []byte, previous ...[]byte) *Encryption {
	t.Helper()
	codec, err := NewEncryption(primary, previous...)
	if err != nil {
		t.Fatalf("NewEncryption: %v", err)
	}
	t.Cleanup(func() { codec.Close() })
	return codec
}

func TestEncryption_Roundtrip(t *testing.T) {
	codec := newTestEncryption(t, testKey(1))
	original := jsonPayload([]byte(`{"secret":"value"}`))
	encoded := roundtrip(t, codec, original)

	if encodingOf(encoded[0]) != EncryptionEncoding {
		t.Errorf("encoding = %q", encodingOf(encoded[0]))
	}
	if string(encoded[0].GetMetadata()[metadataKeyID]) != codec.KeyID() {
		t.Errorf("key id metadata = %q, want %q", encoded[0].GetMetadata()[metadataKeyID], codec.KeyID())
	}
	if bytes.Contains(encoded[0].GetData(), []byte("secret")) {
		t.Error("sealed payload contains plaintext")
	}
}

func TestEncryption_ZeroesInputKey(t *testing.T) {
	key := testKey(3)
	newTestEncryption(t, key)
	if !bytes.Equal(key, make([]byte, KeySize)) {
		t.Error("master key slice was not zeroed")
	}
}

func TestEncryption_NondeterministicNonce(t *testing.T) {
	codec := newTestEncryption(t, testKey(1))
	payload := jsonPayload([]byte(`"same"`))
	first, _ := codec.Encode([]*commonpb.Payload{payload})
	second, _ := codec.Encode([]*commonpb.Payload{payload})
	if bytes.Equal(first[0].GetData(), second[0].GetData()) {
		t.Error("two encryptions of the same payload produced identical ciphertext")
	}
}

func TestEncryption_StableKeyID(t *testing.T) {
	first := newTestEncryption(t, testKey(5))
	second := newTestEncryption(t, testKey(5))
	other := newTestEncryption(t, testKey(6))
	if first.KeyID() != second.KeyID() {
		t.Error("same master key produced different key ids")
	}
	if first.KeyID() == other.KeyID() {
		t.Error("different master keys produced the same key id")
	}
}

func TestEncryption_UnknownKey(t *testing.T) {
	writer := newTestEncryption(t, testKey(1))
	reader := newTestEncryption(t, testKey(2))

	encoded, err := writer.Encode([]*commonpb.Payload{jsonPayload([]byte(`1`))})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := reader.Decode(encoded); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestEncryption_Rotation(t *testing.T) {
	old := newTestEncryption(t, testKey(1))
	encoded, err := old.Encode([]*commonpb.Payload{jsonPayload([]byte(`"before rotation"`))})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	rotated := newTestEncryption(t, testKey(2), testKey(1))
	decoded, err := rotated.Decode(encoded)
	if err != nil {
		t.Fatalf("rotated codec failed to open old payload: %v", err)
	}
	if string(decoded[0].GetData()) != `"before rotation"` {
		t.Errorf("decoded data = %q", decoded[0].GetData())
	}

	fresh, _ := rotated.Encode([]*commonpb.Payload{jsonPayload([]byte(`2`))})
	if string(fresh[0].GetMetadata()[metadataKeyID]) == old.KeyID() {
		t.Error("rotated codec sealed with the previous key")
	}
}

func TestEncryption_Tampering(t *testing.T) {
	codec := newTestEncryption(t, testKey(1))
	encoded, err := codec.Encode([]*commonpb.Payload{jsonPayload([]byte(`{"amount":100}`))})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	tests := map[string]func(*commonpb.Payload){
		"flipped ciphertext bit": func(p *commonpb.Payload) { p.Data[len(p.Data)-1] ^= 0x01 },
		"changed version":        func(p *commonpb.Payload) { p.Data[0] = 0x02 },
		"truncated":              func(p *commonpb.Payload) { p.Data = p.Data[:10] },
	}
	for name, tamper := range tests {
		t.Run(name, func(t *testing.T) {
			damaged := proto.Clone(encoded[0]).(*commonpb.Payload)
			tamper(damaged)
			if _, err := codec.Decode([]*commonpb.Payload{damaged}); err == nil {
				t.Error("expected error decoding tampered payload")
			}
		})
	}
}

func TestEncryption_ForeignPayloadPassesThrough(t *testing.T) {
	codec := newTestEncryption(t, testKey(1))
	plain := jsonPayload([]byte(`"written before encryption was enabled"`))
	decoded, err := codec.Decode([]*commonpb.Payload{plain})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !proto.Equal(decoded[0], plain) {
		t.Error("unencrypted payload should pass through decode")
	}
}

func TestEncryption_BadKeySize(t *testing.T) {
	if _, err := NewEncryption([]byte("short")); err == nil {
		t.Fatal("expected error for short key")
	}
	if _, err := NewEncryption(testKey(1), []byte("short")); err == nil {
		t.Fatal("expected error for short previous key")
	}
}

func TestReadKeyFile(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "payload.key")
	if err := os.WriteFile(path, []byte("  0101010101010101010101010101010101010101010101010101010101010101\n"), 0600); err != nil {
		t.Fatal(err)
	}
	key, err := ReadKeyFile(path)
	if err != nil {
		t.Fatalf("ReadKeyFile: %v", err)
	}
	if !bytes.Equal(key, testKey(1)) {
		t.Errorf("key = %x", key)
	}

	notHex := filepath.Join(directory, "bad.key")
	os.WriteFile(notHex, []byte("zz"), 0600)
	if _, err := ReadKeyFile(notHex); err == nil {
		t.Error("expected error for non-hex key file")
	}

	empty := filepath.Join(directory, "empty.key")
	os.WriteFile(empty, []byte("\n"), 0600)
	if _, err := ReadKeyFile(empty); err == nil {
		t.Error("expected error for empty key file")
	}
}
