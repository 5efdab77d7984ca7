// Package tiler builds photomosaics: it cuts a target into square tiles,
// matches each tile to the pool image with the nearest average color and
// composites the result.
package tiler

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/ocinpp/mosaic-generator/colors"
	"github.com/ocinpp/mosaic-generator/mosaicerr"
)

// Tiler holds the pool images of one job with their average colors.
type Tiler struct {
	images []Tile
}

// Tile is a pool image and its full-bitmap average color.
type Tile struct {
	average colors.AverageColor
	image   *image.RGBA

	// scaled caches image resized to the tile size of the current job.
	scaled *image.RGBA
}

// NewTiler computes the average color of every pool image once. An empty
// pool is a ConfigError: there is nothing to match against.
func NewTiler(images []*image.RGBA) (*Tiler, error) {
	if len(images) == 0 {
		return nil, mosaicerr.Config("tiler", "pool is empty")
	}
	var tiler = &Tiler{images: make([]Tile, 0, len(images))}
	for _, img := range images {
		tiler.images = append(tiler.images, Tile{
			image:   img,
			average: colors.AverageImage(img),
		})
	}
	return tiler, nil
}

// Match returns the index of the pool image whose average color is closest
// to in. Ties go to the earliest image in pool order.
func (t *Tiler) Match(in colors.AverageColor) int {
	var (
		best        = 0
		minDistance = colors.Distance(in, t.images[0].average)
	)
	for i := 1; i < len(t.images); i++ {
		d := colors.Distance(in, t.images[i].average)
		if d < minDistance {
			best = i
			minDistance = d
		}
	}
	return best
}

// scaledTile returns pool image i resized to size×size, computing it on
// first use.
func (t *Tiler) scaledTile(i, size int, scaler draw.Scaler) *image.RGBA {
	tile := &t.images[i]
	if tile.scaled != nil && tile.scaled.Bounds().Dx() == size {
		return tile.scaled
	}
	tile.scaled = resize(tile.image, image.Rect(0, 0, size, size), scaler)
	return tile.scaled
}

func resize(img image.Image, r image.Rectangle, scaler draw.Scaler) *image.RGBA {
	output := image.NewRGBA(r)
	stretch(output, r, img, scaler)
	return output
}

// stretch draws src over dr, copying exactly when no resampling is needed.
func stretch(dst draw.Image, dr image.Rectangle, src image.Image, scaler draw.Scaler) {
	sr := src.Bounds()
	if sr.Size() == dr.Size() {
		draw.Draw(dst, dr, src, sr.Min, draw.Src)
		return
	}
	scaler.Scale(dst, dr, src, sr, draw.Src, nil)
}
