// Package imageio turns reassembled image bytes into bitmaps and the final
// canvas back into bytes.
package imageio

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"

	// Formats accepted for target and pool images.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/xfmoulet/qoi"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/ocinpp/mosaic-generator/mosaicerr"
)

// DecodeOptions bounds decoding work.
type DecodeOptions struct {
	// Parallelism caps concurrent decodes. Zero or less means one at a time.
	Parallelism int
	// MaxPixels rejects images with more pixels. Zero means unlimited.
	MaxPixels int
}

// Decode decodes one image and returns it as an origin-anchored RGBA
// bitmap together with the format name.
func Decode(data []byte, maxPixels int) (*image.RGBA, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image data")
	}
	if maxPixels > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, "", err
		}
		if cfg.Width*cfg.Height > maxPixels {
			return nil, "", fmt.Errorf("image is %dx%d, more than %d pixels", cfg.Width, cfg.Height, maxPixels)
		}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	return ToRGBA(img), format, nil
}

// DecodeAll decodes the target and every pool image. Pool order is
// preserved. Any failure fails the whole call with a DecodeError naming
// the offending buffer.
func DecodeAll(ctx context.Context, target []byte, pool [][]byte, opts DecodeOptions) (*image.RGBA, []*image.RGBA, error) {
	limit := opts.Parallelism
	if limit <= 0 {
		limit = 1
	}

	var (
		targetImg *image.RGBA
		poolImgs  = make([]*image.RGBA, len(pool))
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, _, err := Decode(target, opts.MaxPixels)
		if err != nil {
			return mosaicerr.Decode("target", err)
		}
		targetImg = img
		return nil
	})
	for i, data := range pool {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, _, err := Decode(data, opts.MaxPixels)
			if err != nil {
				return mosaicerr.Decode(fmt.Sprintf("pool[%d]", i), err)
			}
			poolImgs[i] = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return targetImg, poolImgs, nil
}

// ToRGBA copies src into an *image.RGBA whose bounds start at (0,0). An
// RGBA image already anchored at the origin is returned as is.
func ToRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
