// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadcodec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
)

// AgeEncoding is the payload encoding written by [Age].
const AgeEncoding = "binary/age"

// ErrNoIdentity is returned when an [Age] codec without identities is
// asked to decode an age payload.
var ErrNoIdentity = errors.New("age codec has no identity to decrypt with")

// Age encrypts payloads to age x25519 recipients. Workers that only
// write payloads need recipients; workers that read them need an
// identity. Unlike [Encryption], no shared secret is distributed.
type Age struct {
	recipients []age.Recipient
	identities []age.Identity
}

var _ converter.PayloadCodec = (*Age)(nil)

// NewAge parses recipient public keys (age1...) and identity private
// keys (AGE-SECRET-KEY-1...). At least one of the two must be given.
func NewAge(recipientKeys, identityKeys []string) (*Age, error) {
	if len(recipientKeys) == 0 && len(identityKeys) == 0 {
		return nil, fmt.Errorf("payloadcodec: age codec needs a recipient or an identity")
	}

	codec := &Age{}
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("payloadcodec: parsing recipient key %q: %w", key, err)
		}
		codec.recipients = append(codec.recipients, recipient)
	}
	for index, key := range identityKeys {
		identity, err := age.ParseX25519Identity(key)
		if err != nil {
			// Never echo private keys into errors.
			return nil, fmt.Errorf("payloadcodec: parsing identity %d: %w", index, err)
		}
		codec.identities = append(codec.identities, identity)
	}
	return codec, nil
}

// ReadAgeIdentities reads age identities from a file in the format
// written by age-keygen: one key per line, '#' comments ignored.
func ReadAgeIdentities(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading age identity file: %w", err)
	}
	var keys []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("age identity file %s has no keys", path)
	}
	return keys, nil
}

// Encode implements converter.PayloadCodec. An identity-only codec
// passes payloads through.
func (a *Age) Encode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	if len(a.recipients) == 0 {
		return payloads, nil
	}
	return transformEach(payloads, a.encrypt)
}

// Decode implements converter.PayloadCodec.
func (a *Age) Decode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	return transformEach(payloads, a.decrypt)
}

func (a *Age) encrypt(payload *commonpb.Payload) (*commonpb.Payload, error) {
	plaintext, err := pack(payload)
	if err != nil {
		return nil, err
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, a.recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return wrap(AgeEncoding, ciphertext.Bytes(), nil), nil
}

func (a *Age) decrypt(payload *commonpb.Payload) (*commonpb.Payload, error) {
	if encodingOf(payload) != AgeEncoding {
		return payload, nil
	}
	if len(a.identities) == 0 {
		return nil, ErrNoIdentity
	}

	reader, err := age.Decrypt(bytes.NewReader(payload.GetData()), a.identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypting age payload: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted payload: %w", err)
	}
	return unpack(plaintext)
}
