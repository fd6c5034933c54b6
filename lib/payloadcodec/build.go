// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadcodec

import (
	"errors"
	"fmt"
	"io"

	"go.temporal.io/sdk/converter"

	"github.com/bureau-foundation/offload/lib/config"
)

// Build assembles the codec chain described by cfg: compression, then
// symmetric encryption, then age. The returned closer releases key
// memory and must be closed when the codec is no longer used.
func Build(cfg config.CodecConfig) (converter.PayloadCodec, io.Closer, error) {
	var codecs []converter.PayloadCodec
	var closers closerList

	compressionTag, err := ParseCompressionTag(cfg.Compression)
	if err != nil {
		return nil, nil, fmt.Errorf("payloadcodec: %w", err)
	}
	if compressionTag != CompressionNone {
		compression, err := NewCompression(compressionTag, cfg.MinCompressSize)
		if err != nil {
			return nil, nil, err
		}
		codecs = append(codecs, compression)
	}

	if cfg.EncryptionKeyFile != "" {
		primary, err := ReadKeyFile(cfg.EncryptionKeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("payloadcodec: %w", err)
		}
		var previous [][]byte
		for _, path := range cfg.PreviousKeyFiles {
			key, err := ReadKeyFile(path)
			if err != nil {
				zero(primary)
				for _, loaded := range previous {
					zero(loaded)
				}
				return nil, nil, fmt.Errorf("payloadcodec: %w", err)
			}
			previous = append(previous, key)
		}
		encryption, err := NewEncryption(primary, previous...)
		if err != nil {
			return nil, nil, err
		}
		codecs = append(codecs, encryption)
		closers = append(closers, encryption)
	}

	if len(cfg.AgeRecipients) > 0 || cfg.AgeIdentityFile != "" {
		var identities []string
		if cfg.AgeIdentityFile != "" {
			identities, err = ReadAgeIdentities(cfg.AgeIdentityFile)
			if err != nil {
				closers.Close()
				return nil, nil, fmt.Errorf("payloadcodec: %w", err)
			}
		}
		ageCodec, err := NewAge(cfg.AgeRecipients, identities)
		if err != nil {
			closers.Close()
			return nil, nil, err
		}
		codecs = append(codecs, ageCodec)
	}

	return NewChain(codecs...), closers, nil
}

type closerList []io.Closer

func (c closerList) Close() error {
	var errs []error
	for _, closer := range c {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
