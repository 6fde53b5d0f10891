// Package tilemath converts slippy-map tile addresses to WGS84 bounding
// boxes. Longitude is linear in the tile column; latitude follows the inverse
// Web-Mercator (Gudermannian) transform, with rows growing southward.
package tilemath

import "math"

// BBox is an axis-aligned WGS84 bounding box.
type BBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// TileToBBox returns the geographic bounds of tile (z, x, y). Inputs are
// assumed validated: z >= 0 and x, y in [0, 2^z).
func TileToBBox(z, x, y int) BBox {
	n := math.Exp2(float64(z))
	return BBox{
		MinLon: float64(x)/n*360.0 - 180.0,
		MaxLon: float64(x+1)/n*360.0 - 180.0,
		MaxLat: tileLat(float64(y), n),
		MinLat: tileLat(float64(y+1), n),
	}
}

func tileLat(y, n float64) float64 {
	rad := math.Atan(math.Sinh(math.Pi * (1 - 2*y/n)))
	return rad * 180.0 / math.Pi
}
