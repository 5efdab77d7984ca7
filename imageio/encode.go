package imageio

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/ocinpp/mosaic-generator/mosaicerr"
)

// Output formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// MIME types of the output formats.
const (
	MIMETypePNG  = "image/png"
	MIMETypeJPEG = "image/jpeg"
)

// EncodeOptions selects the output encoding.
type EncodeOptions struct {
	Format string
	// Quality is the JPEG quality, 1-100. Zero means jpeg.DefaultQuality.
	Quality int
	// PNGCompression is passed to png.Encoder.
	PNGCompression png.CompressionLevel
}

// Encode serializes img and returns the bytes and their MIME type.
func Encode(img image.Image, opts EncodeOptions) ([]byte, string, error) {
	var buf bytes.Buffer
	switch opts.Format {
	case "", FormatPNG:
		enc := png.Encoder{CompressionLevel: opts.PNGCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, "", mosaicerr.Encode("png", err)
		}
		return buf.Bytes(), MIMETypePNG, nil
	case FormatJPEG, "jpg":
		quality := opts.Quality
		if quality <= 0 {
			quality = jpeg.DefaultQuality
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", mosaicerr.Encode("jpeg", err)
		}
		return buf.Bytes(), MIMETypeJPEG, nil
	default:
		return nil, "", mosaicerr.Encode("encode", fmt.Errorf("unsupported output format %q", opts.Format))
	}
}

// DataURI renders data as a base64 data URI.
func DataURI(mimeType string, data []byte) string {
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(mimeType) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(mimeType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

// ParseDataURI is the inverse of DataURI.
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URI")
	}
	mimeType, payload, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return "", nil, fmt.Errorf("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decoding data URI: %w", err)
	}
	return mimeType, data, nil
}

// ParsePNGCompression maps a config name to a png.CompressionLevel.
func ParsePNGCompression(name string) (png.CompressionLevel, error) {
	switch name {
	case "", "default":
		return png.DefaultCompression, nil
	case "none":
		return png.NoCompression, nil
	case "speed":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	default:
		return 0, fmt.Errorf("unknown png compression %q", name)
	}
}
