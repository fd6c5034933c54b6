// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	commonpb "go.temporal.io/api/common/v1"

	"github.com/bureau-foundation/offload/lib/offload"
)

// File stores each payload as a file named by its digest, fanned out
// into 256 directories by the digest's first byte:
//
//	<root>/3f/3fa9...e1
type File struct {
	root   string
	logger *slog.Logger
}

var _ offload.Store = (*File)(nil)

// NewFile creates a file store rooted at root, creating the directory
// if needed. A nil logger discards.
func NewFile(root string, logger *slog.Logger) (*File, error) {
	if root == "" {
		return nil, fmt.Errorf("payloadstore: file store root is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("payloadstore: creating %s: %w", root, err)
	}
	return &File{root: root, logger: logger}, nil
}

func (f *File) path(digest string) string {
	return filepath.Join(f.root, digest[:2], digest)
}

// Store implements offload.Store. Payloads already present are not
// rewritten.
func (f *File) Store(ctx context.Context, payload *commonpb.Payload) (any, error) {
	data, key, err := packPayload(payload)
	if err != nil {
		return nil, err
	}
	digest, _ := parseKey(key)
	path := f.path(digest)

	if _, err := os.Stat(path); err == nil {
		f.logger.Debug("payload already stored", "key", key)
		return key, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := writeFileAtomic(path, data); err != nil {
		return nil, fmt.Errorf("%w: %v", offload.ErrStoreUnavailable, err)
	}
	f.logger.Debug("payload stored", "key", key, "bytes", len(data))
	return key, nil
}

// Fetch implements offload.Store.
func (f *File) Fetch(ctx context.Context, ref any) (*commonpb.Payload, error) {
	digest, err := parseKey(ref)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := ref.(string)

	data, err := os.ReadFile(f.path(digest))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", offload.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", offload.ErrStoreUnavailable, err)
	}
	return unpackPayload(key, data)
}

// Delete removes a payload. Deleting an unknown reference is not an
// error.
func (f *File) Delete(ref any) error {
	digest, err := parseKey(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(f.path(digest)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", offload.ErrStoreUnavailable, err)
	}
	return nil
}

// writeFileAtomic writes data to a temporary file next to path and
// renames it into place, so readers never observe a partial payload.
func writeFileAtomic(path string, data []byte) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", directory, err)
	}

	temporary, err := os.CreateTemp(directory, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	temporaryPath := temporary.Name()
	defer os.Remove(temporaryPath)

	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("writing %s: %w", temporaryPath, err)
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		return fmt.Errorf("syncing %s: %w", temporaryPath, err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", temporaryPath, err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
