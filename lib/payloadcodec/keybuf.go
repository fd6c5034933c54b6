// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadcodec

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// lockedKey holds key material in an anonymous mmap region outside the
// Go heap. The region is mlocked and excluded from core dumps, and it
// is zeroed before being unmapped.
type lockedKey struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

// newLockedKey copies source into locked memory and zeros source.
func newLockedKey(source []byte) (*lockedKey, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("key material is empty")
	}

	data, err := unix.Mmap(-1, 0, len(source), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("mmap key memory: %w", err)
	}
	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("mlock key memory: %w", err)
	}
	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("madvise(MADV_DONTDUMP) key memory: %w", err)
	}

	copy(data, source)
	zero(source)
	return &lockedKey{data: data}, nil
}

// bytes returns the key. The slice aliases the locked region and must
// not outlive the key. Panics after close.
func (k *lockedKey) bytes() []byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		panic("payloadcodec: read from closed key")
	}
	return k.data
}

// close zeros and releases the key. Idempotent.
func (k *lockedKey) close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	zero(k.data)

	var firstError error
	if err := unix.Munlock(k.data); err != nil {
		firstError = fmt.Errorf("munlock key memory: %w", err)
	}
	if err := unix.Munmap(k.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("munmap key memory: %w", err)
	}
	k.data = nil
	return firstError
}

func zero(data []byte) {
	for index := range data {
		data[index] = 0
	}
}

// ReadKeyFile reads a hex-encoded symmetric key from path. Surrounding
// whitespace is ignored. The caller owns the returned slice and should
// zero it once it has been handed to [NewEncryption].
func ReadKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	defer zero(data)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("key file %s is empty", path)
	}
	key := make([]byte, hex.DecodedLen(len(trimmed)))
	if _, err := hex.Decode(key, trimmed); err != nil {
		zero(key)
		return nil, fmt.Errorf("key file %s: not hex: %w", path, err)
	}
	return key, nil
}
