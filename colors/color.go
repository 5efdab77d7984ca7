// Package colors computes average colors and the distance between them.
package colors

import (
	"image"
	"image/color"
	"math"
)

// AverageColor is the per-channel mean of a region. Alpha is ignored.
type AverageColor struct {
	R, G, B float64
}

var _ color.Color = AverageColor{}

// RGBA implements color.Color as an opaque color.
func (c AverageColor) RGBA() (uint32, uint32, uint32, uint32) {
	s := c.Swatch()
	return uint32(s.R) * 0x101, uint32(s.G) * 0x101, uint32(s.B) * 0x101, 0xffff
}

// Swatch rounds c to an opaque 8-bit color, used for the flat fill.
func (c AverageColor) Swatch() color.RGBA {
	return color.RGBA{R: channel(c.R), G: channel(c.G), B: channel(c.B), A: 0xff}
}

func channel(v float64) uint8 {
	v = math.Round(v)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// Average averages the pixels of img inside rect. rect is clipped to the
// image bounds; an empty intersection averages to black.
//
// Channels are averaged as straight (non-premultiplied) values, so a
// translucent pixel counts with its full color and a fully transparent one
// counts as black. Alpha itself does not enter the mean.
func Average(img *image.RGBA, rect image.Rectangle) AverageColor {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return AverageColor{}
	}

	var r, g, b float64
	rowLen := rect.Dx() * 4
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		start := img.PixOffset(rect.Min.X, y)
		row := img.Pix[start : start+rowLen]
		for i := 0; i < rowLen; i += 4 {
			switch a := row[i+3]; a {
			case 0xff:
				r += float64(row[i])
				g += float64(row[i+1])
				b += float64(row[i+2])
			case 0:
			default:
				r += unpremultiply(row[i], a)
				g += unpremultiply(row[i+1], a)
				b += unpremultiply(row[i+2], a)
			}
		}
	}
	count := float64(rect.Dx() * rect.Dy())
	return AverageColor{R: r / count, G: g / count, B: b / count}
}

func unpremultiply(v, a uint8) float64 {
	return min(float64(v)*0xff/float64(a), 0xff)
}

// AverageImage averages the whole of img.
func AverageImage(img *image.RGBA) AverageColor {
	return Average(img, img.Bounds())
}

// Distance is the Euclidean distance between x and y in RGB space.
func Distance(x, y AverageColor) float64 {
	dr := x.R - y.R
	dg := x.G - y.G
	db := x.B - y.B
	return math.Sqrt(dr*dr + dg*dg + db*db)
}
