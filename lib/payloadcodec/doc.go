// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package payloadcodec provides Temporal payload codecs for offloaded
// payloads.
//
// Every codec implements converter.PayloadCodec: an order-preserving,
// list-to-list transform that is reversed by Decode. A codec wraps the
// whole incoming payload (metadata and data, packed with
// [codec.MarshalPayload]) into a new payload whose "encoding" metadata
// names the codec. Decode only unwraps payloads carrying its own
// encoding and passes everything else through untouched, so codecs
// compose with [Chain] and tolerate data written before a codec was
// enabled.
//
//   - [Identity]: no transform. The default.
//   - [Compression]: zstd or LZ4, chosen per payload or fixed. Payloads
//     that do not shrink are left as they are.
//   - [Encryption]: XChaCha20-Poly1305 under a key derived with HKDF
//     from a 32-byte master key. The key id travels in metadata.
//   - [Age]: age x25519 encryption to one or more recipients.
//
// Decode failures mean the stored bytes are damaged or were written by
// an incompatible codec. They are never retried.
//
// [Build] assembles a chain from configuration.
package payloadcodec
