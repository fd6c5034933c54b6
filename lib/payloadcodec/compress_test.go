// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadcodec

import (
	"strconv"
	"testing"

	commonpb "go.temporal.io/api/common/v1"
	"google.golang.org/protobuf/proto"
)

func TestCompression_Roundtrip(t *testing.T) {
	tests := []struct {
		tag          CompressionTag
		wantEncoding string
	}{
		{CompressionZstd, "binary/zstd"},
		{CompressionLZ4, "binary/lz4"},
		{CompressionAuto, "binary/zstd"},
	}

	for _, test := range tests {
		t.Run(test.tag.String(), func(t *testing.T) {
			codec, err := NewCompression(test.tag, 0)
			if err != nil {
				t.Fatalf("NewCompression: %v", err)
			}
			original := jsonPayload(compressibleJSON(128 << 10))
			encoded := roundtrip(t, codec, original)

			if got := encodingOf(encoded[0]); got != test.wantEncoding {
				t.Errorf("encoding = %q, want %q", got, test.wantEncoding)
			}
			if len(encoded[0].GetData()) >= len(original.GetData()) {
				t.Errorf("compressed size %d not smaller than %d", len(encoded[0].GetData()), len(original.GetData()))
			}
		})
	}
}

func TestCompression_SmallPayloadUnchanged(t *testing.T) {
	codec, err := NewCompression(CompressionZstd, 1024)
	if err != nil {
		t.Fatalf("NewCompression: %v", err)
	}
	original := jsonPayload([]byte(`{"small":true}`))
	encoded := roundtrip(t, codec, original)
	if !proto.Equal(encoded[0], original) {
		t.Error("payload below the minimum size should pass through")
	}
}

func TestCompression_IncompressibleUnchanged(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionZstd, CompressionLZ4, CompressionAuto} {
		t.Run(tag.String(), func(t *testing.T) {
			codec, err := NewCompression(tag, 0)
			if err != nil {
				t.Fatalf("NewCompression: %v", err)
			}
			original := jsonPayload(randomBytes(t, 32<<10))
			encoded := roundtrip(t, codec, original)
			if !proto.Equal(encoded[0], original) {
				t.Error("incompressible payload should pass through")
			}
		})
	}
}

func TestCompression_None(t *testing.T) {
	codec, err := NewCompression(CompressionNone, 0)
	if err != nil {
		t.Fatalf("NewCompression: %v", err)
	}
	original := jsonPayload(compressibleJSON(8 << 10))
	encoded := roundtrip(t, codec, original)
	if !proto.Equal(encoded[0], original) {
		t.Error("CompressionNone should not transform payloads")
	}
}

func TestCompression_DecodesOtherTags(t *testing.T) {
	lz4Codec, _ := NewCompression(CompressionLZ4, 0)
	zstdCodec, _ := NewCompression(CompressionZstd, 0)

	original := jsonPayload(compressibleJSON(16 << 10))
	encoded, err := lz4Codec.Encode([]*commonpb.Payload{original})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := zstdCodec.Decode(encoded)
	if err != nil {
		t.Fatalf("zstd codec decoding lz4 payload: %v", err)
	}
	if !proto.Equal(decoded[0], original) {
		t.Error("payload changed")
	}
}

func TestCompression_CorruptData(t *testing.T) {
	codec, _ := NewCompression(CompressionZstd, 0)
	encoded, err := codec.Encode([]*commonpb.Payload{jsonPayload(compressibleJSON(16 << 10))})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	truncated := proto.Clone(encoded[0]).(*commonpb.Payload)
	truncated.Data = truncated.Data[:len(truncated.Data)/2]
	if _, err := codec.Decode([]*commonpb.Payload{truncated}); err == nil {
		t.Error("expected error decoding truncated data")
	}

	badSize := proto.Clone(encoded[0]).(*commonpb.Payload)
	badSize.Metadata[metadataUncompressedSize] = []byte("not-a-number")
	if _, err := codec.Decode([]*commonpb.Payload{badSize}); err == nil {
		t.Error("expected error decoding payload with invalid size metadata")
	}

	huge := proto.Clone(encoded[0]).(*commonpb.Payload)
	huge.Metadata[metadataUncompressedSize] = []byte("9223372036854775807")
	if _, err := codec.Decode([]*commonpb.Payload{huge}); err == nil {
		t.Error("expected error decoding payload declaring an absurd uncompressed size")
	}

	overLimit := proto.Clone(encoded[0]).(*commonpb.Payload)
	overLimit.Metadata[metadataUncompressedSize] = []byte(strconv.Itoa(MaxUncompressedSize + 1))
	if _, err := codec.Decode([]*commonpb.Payload{overLimit}); err == nil {
		t.Error("expected error decoding payload over MaxUncompressedSize")
	}
}

func TestCompression_LZ4ImpossibleRatio(t *testing.T) {
	codec, _ := NewCompression(CompressionLZ4, 0)
	encoded, err := codec.Encode([]*commonpb.Payload{jsonPayload(compressibleJSON(16 << 10))})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if encodingOf(encoded[0]) != CompressionLZ4.encoding() {
		t.Fatalf("payload was not compressed: %s", encodingOf(encoded[0]))
	}

	inflated := proto.Clone(encoded[0]).(*commonpb.Payload)
	inflated.Metadata[metadataUncompressedSize] = []byte(strconv.Itoa((len(inflated.Data) + 1) * 256))
	if _, err := codec.Decode([]*commonpb.Payload{inflated}); err == nil {
		t.Error("expected error for a size LZ4 cannot produce from this input")
	}
}

func TestParseCompressionTag(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd, CompressionAuto} {
		parsed, err := ParseCompressionTag(tag.String())
		if err != nil {
			t.Fatalf("ParseCompressionTag(%q): %v", tag.String(), err)
		}
		if parsed != tag {
			t.Errorf("ParseCompressionTag(%q) = %s", tag.String(), parsed)
		}
	}
	if _, err := ParseCompressionTag("brotli"); err == nil {
		t.Error("expected error for unknown tag")
	}
	if _, err := NewCompression(CompressionTag(9), 0); err == nil {
		t.Error("expected error for unsupported tag")
	}
}

func TestSelectCompression(t *testing.T) {
	if got := selectCompression(compressibleJSON(64 << 10)); got != CompressionZstd {
		t.Errorf("repetitive JSON: got %s, want zstd", got)
	}
	if got := selectCompression(randomBytes(t, 64<<10)); got != CompressionNone {
		t.Errorf("random data: got %s, want none", got)
	}
	if got := selectCompression(nil); got != CompressionNone {
		t.Errorf("empty data: got %s, want none", got)
	}
}
