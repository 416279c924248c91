package tui

import (
	"strings"

	"github.com/jask/orphanreg/internal/config"
	"github.com/jask/orphanreg/internal/geo"
)

// The map starts at a fixed line of the form layout: one title line and one
// legend line above it, no left margin. Screen rows add App.viewTop.
const (
	mapTop  = 2
	mapLeft = 0

	defaultMapCols = 48
	defaultMapRows = 12
)

type mapPane struct {
	vp        geo.Viewport
	home      geo.Viewport
	cursorCol int
	cursorRow int
	tileURL   string
}

func newMapPane(cfg config.MapConfig, cols, rows int) mapPane {
	vp := geo.Viewport{Center: cfg.DefaultCenter(), Zoom: cfg.Zoom, Cols: cols, Rows: rows}
	return mapPane{vp: vp, home: vp, cursorCol: cols / 2, cursorRow: rows / 2, tileURL: cfg.TileURL}
}

// move shifts the cursor, panning the map when it would leave the grid.
func (m *mapPane) move(dCols, dRows int) {
	col, row := m.cursorCol+dCols, m.cursorRow+dRows
	panCols, panRows := 0, 0
	switch {
	case col < 0:
		panCols, col = col, 0
	case col >= m.vp.Cols:
		panCols, col = col-m.vp.Cols+1, m.vp.Cols-1
	}
	switch {
	case row < 0:
		panRows, row = row, 0
	case row >= m.vp.Rows:
		panRows, row = row-m.vp.Rows+1, m.vp.Rows-1
	}
	if panCols != 0 || panRows != 0 {
		m.vp = m.vp.Pan(panCols, panRows)
	}
	m.cursorCol, m.cursorRow = col, row
}

func (m *mapPane) zoom(delta int) {
	m.vp = m.vp.WithZoom(m.vp.Zoom + delta)
}

func (m *mapPane) recenter() {
	m.vp = m.home
	m.cursorCol, m.cursorRow = m.vp.Cols/2, m.vp.Rows/2
}

func (m mapPane) cursorLatLng() geo.LatLng {
	return m.vp.At(m.cursorCol, m.cursorRow)
}

// cellAt converts a screen position to a map cell.
func (m mapPane) cellAt(x, y int) (col, row int, ok bool) {
	col, row = x-mapLeft, y-mapTop
	return col, row, m.vp.Contains(col, row)
}

// centerTileURL is the tile under the viewport centre.
func (m mapPane) centerTileURL() string {
	return geo.TileURL(m.tileURL, m.vp.CenterTile())
}

// render draws the grid. Tile boundaries are drawn as dotted lines; the
// marker is drawn only for a set position inside the viewport.
func (m mapPane) render(marker geo.LatLng, focused bool) string {
	markCol, markRow, markOK := -1, -1, false
	if marker.IsSet() {
		markCol, markRow, markOK = m.vp.CellOf(marker)
	}
	tiles := make([][]geo.Tile, m.vp.Rows)
	for row := range tiles {
		tiles[row] = make([]geo.Tile, m.vp.Cols)
		for col := range tiles[row] {
			tiles[row][col] = geo.TileFor(m.vp.At(col, row), m.vp.Zoom)
		}
	}
	lines := make([]string, 0, m.vp.Rows)
	for row := 0; row < m.vp.Rows; row++ {
		var sb strings.Builder
		for col := 0; col < m.vp.Cols; col++ {
			switch {
			case markOK && col == markCol && row == markRow:
				sb.WriteString(markerStyle.Render("●"))
			case focused && col == m.cursorCol && row == m.cursorRow:
				sb.WriteString(cursorStyle.Render("+"))
			case col > 0 && tiles[row][col].X != tiles[row][col-1].X:
				sb.WriteString(gridStyle.Render("┊"))
			case row > 0 && tiles[row][col].Y != tiles[row-1][col].Y:
				sb.WriteString(gridStyle.Render("┈"))
			default:
				sb.WriteString(gridStyle.Render("·"))
			}
		}
		lines = append(lines, sb.String())
	}
	return strings.Join(lines, "\n")
}
