package geo

import (
	"math"
	"strconv"
	"strings"
)

// MaxLatitude is the Web-Mercator latitude limit.
const MaxLatitude = 85.05112878

const (
	MinZoom = 1
	MaxZoom = 19
)

// LatLng is a WGS84 coordinate pair. The zero value means "no location chosen".
type LatLng struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// IsSet reports whether p differs from the (0,0) sentinel.
func (p LatLng) IsSet() bool {
	return p.Lat != 0 || p.Lng != 0
}

func (p LatLng) String() string {
	return FormatCoord(p.Lat) + "," + FormatCoord(p.Lng)
}

// FormatCoord renders a coordinate with the shortest exact representation.
func FormatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Tile identifies a slippy-map tile.
type Tile struct {
	Z, X, Y int
}

// TileFor returns the tile containing p at zoom z.
func TileFor(p LatLng, z int) Tile {
	x, y := project(p, z)
	n := 1 << z
	return Tile{Z: z, X: clampInt(int(math.Floor(x)), 0, n-1), Y: clampInt(int(math.Floor(y)), 0, n-1)}
}

// TileURL expands a {z}/{x}/{y} template. {s} is replaced with the "a" subdomain.
func TileURL(template string, t Tile) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(t.Z),
		"{x}", strconv.Itoa(t.X),
		"{y}", strconv.Itoa(t.Y),
		"{s}", "a",
	)
	return r.Replace(template)
}

// project converts p to fractional tile coordinates at zoom z.
func project(p LatLng, z int) (x, y float64) {
	n := float64(int(1) << z)
	lat := clampFloat(p.Lat, -MaxLatitude, MaxLatitude) * math.Pi / 180
	x = (p.Lng + 180) / 360 * n
	y = (1 - math.Log(math.Tan(lat)+1/math.Cos(lat))/math.Pi) / 2 * n
	return x, y
}

// unproject is the inverse of project.
func unproject(x, y float64, z int) LatLng {
	n := float64(int(1) << z)
	lng := x/n*360 - 180
	lat := math.Atan(math.Sinh(math.Pi*(1-2*y/n))) * 180 / math.Pi
	return LatLng{Lat: lat, Lng: lng}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
