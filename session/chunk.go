package session

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/ocinpp/mosaic-generator/mosaicerr"
)

// Chunk is one contiguous byte range [Offset, End) of an image of Total
// bytes. Payload may be compressed; it always decompresses to End-Offset
// bytes.
type Chunk struct {
	Payload     []byte
	Offset      int
	End         int
	Total       int
	Compression Compression

	// Digest, if set on the final chunk, is the BLAKE3-256 of the whole
	// image.
	Digest []byte
}

func (c Chunk) validate() error {
	switch {
	case c.Total <= 0:
		return mosaicerr.Protocol("chunk", "total must be positive, got %d", c.Total)
	case c.Offset < 0:
		return mosaicerr.Protocol("chunk", "negative offset %d", c.Offset)
	case c.End <= c.Offset:
		return mosaicerr.Protocol("chunk", "empty range [%d, %d)", c.Offset, c.End)
	case c.End > c.Total:
		return mosaicerr.Protocol("chunk", "end %d past total %d", c.End, c.Total)
	}
	return nil
}

func (c Chunk) payload() ([]byte, error) {
	data, err := Decompress(c.Payload, c.Compression, c.End-c.Offset)
	if err != nil {
		return nil, mosaicerr.New(mosaicerr.KindProtocol, "chunk", err)
	}
	return data, nil
}

// Digest returns the BLAKE3-256 digest to put on an image's final chunk.
func Digest(image []byte) []byte {
	sum := blake3.Sum256(image)
	return sum[:]
}

// Compression names the codec of a chunk payload.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionLZ4  Compression = "lz4"
	CompressionZstd Compression = "zstd"
)

// ParseCompression accepts "", "none", "lz4" and "zstd".
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	case CompressionZstd:
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("unknown compression %q", name)
	}
}

// zstd encoders and decoders are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("session: zstd encoder initialization failed: " + err.Error())
	}
	// DecodeAll stops at cap(dst), so a payload never inflates past the
	// range it claims.
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecodeAllCapLimit(true))
	if err != nil {
		panic("session: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress compresses data with c. When the result would not be smaller it
// returns data unchanged with CompressionNone.
func Compress(data []byte, c Compression) ([]byte, Compression, error) {
	switch c {
	case "", CompressionNone:
		return data, CompressionNone, nil

	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, "", fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 || n >= len(data) {
			return data, CompressionNone, nil
		}
		return dst[:n], CompressionLZ4, nil

	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return data, CompressionNone, nil
		}
		return compressed, CompressionZstd, nil

	default:
		return nil, "", fmt.Errorf("unsupported compression %q", c)
	}
}

// Decompress reverses Compress. size is the exact uncompressed length.
func Decompress(data []byte, c Compression, size int) ([]byte, error) {
	switch c {
	case "", CompressionNone:
		if len(data) != size {
			return nil, fmt.Errorf("payload is %d bytes, range is %d", len(data), size)
		}
		return data, nil

	case CompressionLZ4:
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(data, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, size)
		}
		return dst, nil

	case CompressionZstd:
		dst, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(dst) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(dst), size)
		}
		return dst, nil

	default:
		return nil, fmt.Errorf("unsupported compression %q", c)
	}
}
