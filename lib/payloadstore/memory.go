// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadstore

import (
	"context"
	"fmt"
	"sync"

	commonpb "go.temporal.io/api/common/v1"

	"github.com/bureau-foundation/offload/lib/offload"
)

// Memory keeps payloads in a process-local map.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ offload.Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

// Store implements offload.Store.
func (m *Memory) Store(ctx context.Context, payload *commonpb.Payload) (any, error) {
	data, key, err := packPayload(payload)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.blobs[key] = data
	m.mu.Unlock()
	return key, nil
}

// Fetch implements offload.Store.
func (m *Memory) Fetch(ctx context.Context, ref any) (*commonpb.Payload, error) {
	if _, err := parseKey(ref); err != nil {
		return nil, err
	}
	key := ref.(string)

	m.mu.RLock()
	data, ok := m.blobs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", offload.ErrNotFound, key)
	}
	return unpackPayload(key, data)
}

// Delete removes a payload. Deleting an unknown reference is not an
// error.
func (m *Memory) Delete(ref any) error {
	if _, err := parseKey(ref); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.blobs, ref.(string))
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored payloads.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
