// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadstore

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
	commonpb "go.temporal.io/api/common/v1"

	"github.com/bureau-foundation/offload/lib/codec"
	"github.com/bureau-foundation/offload/lib/offload"
)

// keyPrefix tags the hash algorithm in every key. A future algorithm
// gets a new prefix rather than reusing the key space.
const keyPrefix = "blake3:"

// ContentKey returns the key for packed payload bytes.
func ContentKey(data []byte) string {
	sum := blake3.Sum256(data)
	return keyPrefix + hex.EncodeToString(sum[:])
}

// parseKey checks that ref is a key produced by [ContentKey] and
// returns its hex digest.
func parseKey(ref any) (string, error) {
	key, ok := ref.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected string key, got %T", offload.ErrInvalidReference, ref)
	}
	digest, found := strings.CutPrefix(key, keyPrefix)
	if !found {
		return "", fmt.Errorf("%w: key %q lacks %q prefix", offload.ErrInvalidReference, key, keyPrefix)
	}
	if len(digest) != 64 {
		return "", fmt.Errorf("%w: key %q has a %d-character digest", offload.ErrInvalidReference, key, len(digest))
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return "", fmt.Errorf("%w: key %q is not hex", offload.ErrInvalidReference, key)
	}
	return digest, nil
}

// packPayload returns the stored form of payload and its key.
func packPayload(payload *commonpb.Payload) ([]byte, string, error) {
	data, err := codec.MarshalPayload(payload)
	if err != nil {
		return nil, "", fmt.Errorf("packing payload: %w", err)
	}
	return data, ContentKey(data), nil
}

// unpackPayload verifies data against key and decodes it.
func unpackPayload(key string, data []byte) (*commonpb.Payload, error) {
	if ContentKey(data) != key {
		return nil, fmt.Errorf("%w: stored bytes for %s do not match their key", offload.ErrCorruptPayload, key)
	}
	payload, err := codec.UnmarshalPayload(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", offload.ErrCorruptPayload, key, err)
	}
	return payload, nil
}
