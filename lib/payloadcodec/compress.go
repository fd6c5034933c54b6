// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadcodec

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
)

// CompressionTag identifies a compression algorithm. The tag's name is
// part of the payload encoding written to the store ("binary/zstd"),
// so names are protocol constants.
type CompressionTag uint8

const (
	// CompressionNone leaves payloads unchanged.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 is LZ4 block compression: fast, modest ratio.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd is zstd at the default level: better ratios for
	// JSON and text, which is what most payloads are.
	CompressionZstd CompressionTag = 2

	// CompressionAuto samples each payload and picks zstd, LZ4 or
	// nothing based on the achievable ratio. Never written to a
	// payload; the chosen algorithm is.
	CompressionAuto CompressionTag = 255
)

// metadataUncompressedSize carries the original length so
// decompression can size its buffer and verify the result.
const metadataUncompressedSize = "offload-uncompressed-size"

// MaxUncompressedSize is the largest uncompressed size a compressed
// payload may declare. Larger declarations are rejected as corrupt
// before any buffer is allocated.
const MaxUncompressedSize = 1 << 30

// lz4MaxRatio bounds the LZ4 block format: each extra byte of a match
// length encodes at most 255 more output bytes.
const lz4MaxRatio = 255

// DefaultMinCompressSize is the payload size below which compression
// is not attempted.
const DefaultMinCompressSize = 256

// String returns the tag's name.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionAuto:
		return "auto"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseCompressionTag parses a tag name.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	case "auto":
		return CompressionAuto, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

func (tag CompressionTag) encoding() string {
	return "binary/" + tag.String()
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use; one of
// each serves every codec instance.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("payloadcodec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxUncompressedSize))
	if err != nil {
		panic("payloadcodec: zstd decoder initialization failed: " + err.Error())
	}
}

// errIncompressible is returned when compressed output is not smaller
// than the input.
var errIncompressible = errors.New("data is incompressible")

// Compression compresses payloads with a fixed algorithm or, with
// [CompressionAuto], the best one for each payload.
type Compression struct {
	tag     CompressionTag
	minSize int
}

var _ converter.PayloadCodec = (*Compression)(nil)

// NewCompression creates a compression codec. Payloads whose packed
// size is below minSize are left alone; minSize <= 0 means
// [DefaultMinCompressSize].
func NewCompression(tag CompressionTag, minSize int) (*Compression, error) {
	switch tag {
	case CompressionNone, CompressionLZ4, CompressionZstd, CompressionAuto:
	default:
		return nil, fmt.Errorf("payloadcodec: unsupported compression tag %d", tag)
	}
	if minSize <= 0 {
		minSize = DefaultMinCompressSize
	}
	return &Compression{tag: tag, minSize: minSize}, nil
}

// Encode implements converter.PayloadCodec.
func (c *Compression) Encode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	return transformEach(payloads, c.encodeOne)
}

// Decode implements converter.PayloadCodec.
func (c *Compression) Decode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	return transformEach(payloads, decompressOne)
}

func (c *Compression) encodeOne(payload *commonpb.Payload) (*commonpb.Payload, error) {
	if c.tag == CompressionNone {
		return payload, nil
	}
	packed, err := pack(payload)
	if err != nil {
		return nil, err
	}
	if len(packed) < c.minSize {
		return payload, nil
	}

	tag := c.tag
	if tag == CompressionAuto {
		tag = selectCompression(packed)
		if tag == CompressionNone {
			return payload, nil
		}
	}

	compressed, err := compress(packed, tag)
	if errors.Is(err, errIncompressible) {
		return payload, nil
	}
	if err != nil {
		return nil, err
	}
	return wrap(tag.encoding(), compressed, map[string]string{
		metadataUncompressedSize: strconv.Itoa(len(packed)),
	}), nil
}

// decompressOne unwraps payloads written by any Compression codec,
// whatever tag it was configured with.
func decompressOne(payload *commonpb.Payload) (*commonpb.Payload, error) {
	var tag CompressionTag
	switch encodingOf(payload) {
	case CompressionLZ4.encoding():
		tag = CompressionLZ4
	case CompressionZstd.encoding():
		tag = CompressionZstd
	default:
		return payload, nil
	}

	size, err := strconv.Atoi(string(payload.GetMetadata()[metadataUncompressedSize]))
	if err != nil || size < 0 {
		return nil, fmt.Errorf("%s payload has invalid %s metadata", tag, metadataUncompressedSize)
	}
	if size > MaxUncompressedSize {
		return nil, fmt.Errorf("%s payload declares %d uncompressed bytes, limit is %d", tag, size, MaxUncompressedSize)
	}
	if tag == CompressionLZ4 && size > (len(payload.GetData())+1)*lz4MaxRatio {
		return nil, fmt.Errorf("lz4 payload of %d bytes cannot expand to %d", len(payload.GetData()), size)
	}
	packed, err := decompress(payload.GetData(), tag, size)
	if err != nil {
		return nil, err
	}
	return unpack(packed)
}

func compress(data []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// CompressBlock returns 0 for incompressible input.
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return destination[:written], nil

	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return nil, errIncompressible
		}
		return compressed, nil

	default:
		return nil, fmt.Errorf("unsupported compression tag: %s", tag)
	}
}

// zstdPreallocateLimit caps the buffer reserved up front from the
// declared size.
const zstdPreallocateLimit = 16 << 20

func decompress(compressed []byte, tag CompressionTag, uncompressedSize int) ([]byte, error) {
	switch tag {
	case CompressionLZ4:
		destination := make([]byte, uncompressedSize)
		read, err := lz4.UncompressBlock(compressed, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != uncompressedSize {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
		}
		return destination, nil

	case CompressionZstd:
		// DecodeAll grows the buffer; the declared size is only a hint
		// until the result is checked below.
		result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, min(uncompressedSize, zstdPreallocateLimit)))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != uncompressedSize {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported compression tag: %s", tag)
	}
}

// sampleSize is how much of a payload selectCompression compresses to
// estimate the ratio.
const sampleSize = 64 << 10

// selectCompression picks zstd when a sample compresses at least 1.5x,
// LZ4 between 1.1x and 1.5x, and nothing below that.
func selectCompression(data []byte) CompressionTag {
	if len(data) == 0 {
		return CompressionNone
	}
	sample := data
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	compressed := zstdEncoder.EncodeAll(sample, nil)
	ratio := float64(len(sample)) / float64(len(compressed))

	switch {
	case ratio >= 1.5:
		return CompressionZstd
	case ratio >= 1.1:
		return CompressionLZ4
	default:
		return CompressionNone
	}
}
