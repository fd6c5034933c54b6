// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadcodec

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the required size of a master key.
const KeySize = 32

// EncryptionEncoding is the payload encoding written by [Encryption].
const EncryptionEncoding = "binary/xchacha20-poly1305"

// metadataKeyID names the key a payload was sealed under.
const metadataKeyID = "offload-key-id"

// encryptedFormatVersion prefixes every sealed payload and is part of
// the AAD, so tampering with it fails authentication.
const encryptedFormatVersion byte = 0x01

// HKDF info and BLAKE3 domain strings. Changing either invalidates
// every payload sealed under them.
var (
	hkdfInfoPayload = []byte("offload.payload.enc.v1")
	keyIDDomain     = []byte("offload.payload.keyid.v1")
)

// ErrUnknownKey is returned when decoding a payload sealed under a key
// the codec does not hold.
var ErrUnknownKey = errors.New("payload sealed under an unknown key")

type sealingKey struct {
	id   string
	key  *lockedKey
	aead cipher.AEAD
}

// Encryption seals payloads with XChaCha20-Poly1305. The cipher key is
// derived with HKDF-SHA256 from a master key and never leaves locked
// memory. Old master keys can be kept for decoding during rotation.
type Encryption struct {
	primary *sealingKey
	byID    map[string]*sealingKey
}

var _ converter.PayloadCodec = (*Encryption)(nil)

// NewEncryption creates an encryption codec that seals with primary
// and can open payloads sealed with primary or any of previous. Every
// key must be [KeySize] bytes. The key slices are zeroed.
func NewEncryption(primary []byte, previous ...[]byte) (*Encryption, error) {
	defer func() {
		zero(primary)
		for _, key := range previous {
			zero(key)
		}
	}()

	codec := &Encryption{byID: make(map[string]*sealingKey, 1+len(previous))}
	for index, master := range append([][]byte{primary}, previous...) {
		key, err := newSealingKey(master)
		if err != nil {
			codec.Close()
			return nil, fmt.Errorf("payloadcodec: encryption key %d: %w", index, err)
		}
		if _, duplicate := codec.byID[key.id]; duplicate {
			key.key.close()
			continue
		}
		codec.byID[key.id] = key
		if index == 0 {
			codec.primary = key
		}
	}
	return codec, nil
}

func newSealingKey(master []byte) (*sealingKey, error) {
	if len(master) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(master))
	}

	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, hkdfInfoPayload), derived); err != nil {
		zero(derived)
		return nil, fmt.Errorf("deriving payload key: %w", err)
	}

	// The key id is a keyed hash of a fixed domain tag: stable for a
	// given key, meaningless without it.
	hasher, err := blake3.NewKeyed(derived)
	if err != nil {
		zero(derived)
		return nil, fmt.Errorf("creating key id hasher: %w", err)
	}
	hasher.Write(keyIDDomain)
	id := hex.EncodeToString(hasher.Sum(nil)[:8])

	locked, err := newLockedKey(derived)
	if err != nil {
		zero(derived)
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(locked.bytes())
	if err != nil {
		locked.close()
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	return &sealingKey{id: id, key: locked, aead: aead}, nil
}

// KeyID returns the id of the key new payloads are sealed under.
func (e *Encryption) KeyID() string {
	return e.primary.id
}

// Close releases every key. The codec must not be used afterwards.
func (e *Encryption) Close() error {
	var errs []error
	for _, key := range e.byID {
		if err := key.key.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Encode implements converter.PayloadCodec.
func (e *Encryption) Encode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	return transformEach(payloads, e.seal)
}

// Decode implements converter.PayloadCodec.
func (e *Encryption) Decode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	return transformEach(payloads, e.open)
}

// Sealed layout:
//
//	[version: 1 byte] [nonce: 24 bytes] [ciphertext+tag]
func (e *Encryption) seal(payload *commonpb.Payload) (*commonpb.Payload, error) {
	plaintext, err := pack(payload)
	if err != nil {
		return nil, err
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating random nonce: %w", err)
	}

	aead := e.primary.aead
	output := make([]byte, 1+len(nonce), 1+len(nonce)+len(plaintext)+aead.Overhead())
	output[0] = encryptedFormatVersion
	copy(output[1:], nonce[:])
	output = aead.Seal(output, nonce[:], plaintext, buildAAD(encryptedFormatVersion, e.primary.id))

	return wrap(EncryptionEncoding, output, map[string]string{metadataKeyID: e.primary.id}), nil
}

func (e *Encryption) open(payload *commonpb.Payload) (*commonpb.Payload, error) {
	if encodingOf(payload) != EncryptionEncoding {
		return payload, nil
	}

	keyID := string(payload.GetMetadata()[metadataKeyID])
	key, ok := e.byID[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, keyID)
	}

	sealed := payload.GetData()
	if len(sealed) < 1+chacha20poly1305.NonceSizeX+key.aead.Overhead() {
		return nil, fmt.Errorf("sealed payload too short: %d bytes", len(sealed))
	}
	version := sealed[0]
	if version != encryptedFormatVersion {
		return nil, fmt.Errorf("unsupported sealed payload version 0x%02x", version)
	}
	nonce := sealed[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := sealed[1+chacha20poly1305.NonceSizeX:]

	plaintext, err := key.aead.Open(nil, nonce, ciphertext, buildAAD(version, keyID))
	if err != nil {
		return nil, fmt.Errorf("opening sealed payload: %w", err)
	}
	return unpack(plaintext)
}

// buildAAD binds the format version and key id to the ciphertext.
func buildAAD(version byte, keyID string) []byte {
	aad := make([]byte, 0, 1+len(keyID))
	aad = append(aad, version)
	return append(aad, keyID...)
}
