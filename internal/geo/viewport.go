package geo

import "math"

// A terminal cell covers 16x32 pixels of a 256px tile, roughly matching
// the 1:2 aspect ratio of a monospace cell.
const (
	cellWidth  = 16.0 / 256.0
	cellHeight = 32.0 / 256.0
)

// Viewport maps a grid of terminal cells onto the map around Center.
type Viewport struct {
	Center LatLng
	Zoom   int
	Cols   int
	Rows   int
}

// At returns the coordinate under the centre of cell (col, row).
func (v Viewport) At(col, row int) LatLng {
	cx, cy := project(v.Center, v.Zoom)
	x := cx + (float64(col)+0.5-float64(v.Cols)/2)*cellWidth
	y := cy + (float64(row)+0.5-float64(v.Rows)/2)*cellHeight
	return unproject(x, y, v.Zoom)
}

// CellOf returns the cell containing p. ok is false when p is outside the grid.
func (v Viewport) CellOf(p LatLng) (col, row int, ok bool) {
	cx, cy := project(v.Center, v.Zoom)
	px, py := project(p, v.Zoom)
	col = int(math.Floor((px-cx)/cellWidth + float64(v.Cols)/2 + 1e-9))
	row = int(math.Floor((py-cy)/cellHeight + float64(v.Rows)/2 + 1e-9))
	ok = col >= 0 && col < v.Cols && row >= 0 && row < v.Rows
	return col, row, ok
}

// Contains reports whether (col, row) is inside the grid.
func (v Viewport) Contains(col, row int) bool {
	return col >= 0 && col < v.Cols && row >= 0 && row < v.Rows
}

// Pan moves the centre by whole cells.
func (v Viewport) Pan(dCols, dRows int) Viewport {
	cx, cy := project(v.Center, v.Zoom)
	cx += float64(dCols) * cellWidth
	cy += float64(dRows) * cellHeight
	n := float64(int(1) << v.Zoom)
	cx = math.Mod(math.Mod(cx, n)+n, n)
	cy = clampFloat(cy, 0, n)
	v.Center = unproject(cx, cy, v.Zoom)
	return v
}

// WithZoom returns v at zoom z, clamped to [MinZoom, MaxZoom].
func (v Viewport) WithZoom(z int) Viewport {
	v.Zoom = clampInt(z, MinZoom, MaxZoom)
	return v
}

// CenterTile is the tile under the viewport centre.
func (v Viewport) CenterTile() Tile {
	return TileFor(v.Center, v.Zoom)
}
