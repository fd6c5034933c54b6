// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadcodec

import (
	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
)

// Chain applies codecs in order on Encode and in reverse order on
// Decode. Compress before encrypting: ciphertext does not compress.
type Chain []converter.PayloadCodec

var _ converter.PayloadCodec = Chain(nil)

// NewChain returns a chain of codecs, dropping nil entries. A single
// codec is returned as is and an empty chain becomes [Identity].
func NewChain(codecs ...converter.PayloadCodec) converter.PayloadCodec {
	chain := make(Chain, 0, len(codecs))
	for _, codec := range codecs {
		if codec != nil {
			chain = append(chain, codec)
		}
	}
	switch len(chain) {
	case 0:
		return Identity{}
	case 1:
		return chain[0]
	default:
		return chain
	}
}

// Encode implements converter.PayloadCodec.
func (c Chain) Encode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	var err error
	for _, codec := range c {
		if payloads, err = codec.Encode(payloads); err != nil {
			return nil, err
		}
	}
	return payloads, nil
}

// Decode implements converter.PayloadCodec.
func (c Chain) Decode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	var err error
	for index := len(c) - 1; index >= 0; index-- {
		if payloads, err = c[index].Decode(payloads); err != nil {
			return nil, err
		}
	}
	return payloads, nil
}
