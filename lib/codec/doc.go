// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used for payloads at rest.
//
// Offloaded payloads leave the Temporal data path and are written to a
// blob store. The store needs one byte string per payload, so the
// payload's metadata map and data are packed into a small CBOR
// envelope. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. The same payload always produces identical
// bytes, which is what lets stores derive content-addressed keys from
// the envelope.
//
//	data, err := codec.MarshalPayload(payload)
//	payload, err := codec.UnmarshalPayload(data)
package codec
