package tiler

import "image"

// Layout records which pool image was placed at each tile of a mosaic.
type Layout struct {
	tileSize int
	cols     int
	rows     int
	matches  []int
}

func newLayout(canvas image.Point, tileSize int) *Layout {
	cols := canvas.X / tileSize
	rows := canvas.Y / tileSize
	return &Layout{
		tileSize: tileSize,
		cols:     cols,
		rows:     rows,
		matches:  make([]int, cols*rows),
	}
}

func (l *Layout) set(x, y, index int) {
	l.matches[(y/l.tileSize)*l.cols+x/l.tileSize] = index
}

// At returns the pool index used for the tile in column col, row row.
func (l *Layout) At(col, row int) int {
	return l.matches[row*l.cols+col]
}

// Size returns the grid dimensions in tiles.
func (l *Layout) Size() (cols, rows int) {
	return l.cols, l.rows
}

// Distinct returns how many different pool images the mosaic uses.
func (l *Layout) Distinct() int {
	seen := make(map[int]struct{}, len(l.matches))
	for _, m := range l.matches {
		seen[m] = struct{}{}
	}
	return len(seen)
}
