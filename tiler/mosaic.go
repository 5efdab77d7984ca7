package tiler

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/ocinpp/mosaic-generator/colors"
	"github.com/ocinpp/mosaic-generator/mosaicerr"
)

// DefaultProgressEvery is how many tiles pass between progress callbacks.
const DefaultProgressEvery = 100

// Options controls a single Build.
type Options struct {
	// TileSize is the side of a square tile in pixels.
	TileSize int

	// ColorBlend is the opacity of the matched pool image. The flat
	// average-color fill is drawn on top at 1-ColorBlend.
	ColorBlend float64

	// Scaler resamples the target and pool images. Nil means BiLinear.
	Scaler draw.Scaler

	// ProgressEvery is the callback interval in tiles. Zero means
	// DefaultProgressEvery.
	ProgressEvery int

	// Progress, if set, is called after every ProgressEvery tiles and
	// after the last tile.
	Progress func(done, total int)
}

// Interpolator resolves a scaler by name.
func Interpolator(name string) (draw.Scaler, error) {
	switch name {
	case "nearest":
		return draw.NearestNeighbor, nil
	case "approx-bilinear":
		return draw.ApproxBiLinear, nil
	case "", "bilinear":
		return draw.BiLinear, nil
	case "catmull-rom":
		return draw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("unknown interpolator %q", name)
	}
}

func roundTo(x, div int) int {
	return (x / div) * div
}

// CanvasSize returns the working canvas for a width×height target: the
// largest multiples of tileSize that fit. A target smaller than one tile
// is a ConfigError.
func CanvasSize(width, height, tileSize int) (image.Point, error) {
	if tileSize <= 0 {
		return image.Point{}, mosaicerr.Config("canvas", "tile size must be positive, got %d", tileSize)
	}
	size := image.Point{X: roundTo(width, tileSize), Y: roundTo(height, tileSize)}
	if size.X <= 0 || size.Y <= 0 {
		return image.Point{}, mosaicerr.Config("canvas",
			"target %dx%d is smaller than one %dpx tile", width, height, tileSize)
	}
	return size, nil
}

// Build composes the mosaic of target from pool.
func Build(target image.Image, pool []*image.RGBA, opts Options) (*image.RGBA, *Layout, error) {
	if math.IsNaN(opts.ColorBlend) || opts.ColorBlend < 0 || opts.ColorBlend > 1 {
		return nil, nil, mosaicerr.Config("build", "color blend %v outside [0,1]", opts.ColorBlend)
	}
	bounds := target.Bounds()
	size, err := CanvasSize(bounds.Dx(), bounds.Dy(), opts.TileSize)
	if err != nil {
		return nil, nil, err
	}
	tiler, err := NewTiler(pool)
	if err != nil {
		return nil, nil, err
	}

	scaler := opts.Scaler
	if scaler == nil {
		scaler = draw.BiLinear
	}
	every := opts.ProgressEvery
	if every <= 0 {
		every = DefaultProgressEvery
	}

	output := image.NewRGBA(image.Rectangle{Max: size})
	stretch(output, output.Bounds(), target, scaler)

	var (
		tileSize    = opts.TileSize
		layout      = newLayout(size, tileSize)
		textureMask = opacity(opts.ColorBlend)
		flatMask    = opacity(1 - opts.ColorBlend)
		total       = (size.X / tileSize) * (size.Y / tileSize)
		processed   = 0
	)

	for y := 0; y < size.Y; y += tileSize {
		for x := 0; x < size.X; x += tileSize {
			rect := image.Rect(x, y, x+tileSize, y+tileSize)
			average := colors.Average(output, rect)
			best := tiler.Match(average)
			layout.set(x, y, best)

			if opts.ColorBlend > 0 {
				texture := tiler.scaledTile(best, tileSize, scaler)
				composite(output, rect, texture, textureMask)
			}
			if opts.ColorBlend < 1 {
				composite(output, rect, image.NewUniform(average.Swatch()), flatMask)
			}

			processed++
			if opts.Progress != nil && (processed%every == 0 || processed == total) {
				opts.Progress(processed, total)
			}
		}
	}

	return output, layout, nil
}

// opacity returns a uniform mask of alpha a, or nil when a is fully opaque.
func opacity(a float64) image.Image {
	if a >= 1 {
		return nil
	}
	return image.NewUniform(color.Alpha16{A: uint16(math.Round(a * 0xffff))})
}

// composite draws src, anchored at its origin, over r of dst through mask.
func composite(dst *image.RGBA, r image.Rectangle, src image.Image, mask image.Image) {
	if mask == nil {
		draw.Draw(dst, r, src, image.Point{}, draw.Over)
		return
	}
	draw.DrawMask(dst, r, src, image.Point{}, mask, image.Point{}, draw.Over)
}
