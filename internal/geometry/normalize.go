// Package geometry holds the small amount of coordinate math the application
// does itself. Everything heavier is left to the feature service.
package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// WrapLongitude folds lon into [-180, 180). Values already inside
// [-180, 180] are returned as is, so 180 stays 180.
func WrapLongitude(lon float64) float64 {
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return lon
	}
	if lon >= -180 && lon <= 180 {
		return lon
	}
	w := math.Mod(lon+180, 360)
	if w < 0 {
		w += 360
	}
	return w - 180
}

// NormalizeCentralMeridian brings a point captured on a wrapped-around map
// back into the canonical longitude range. Services stored in a projected
// coordinate system reject (or misplace) points past the antimeridian.
func NormalizeCentralMeridian(p orb.Point) orb.Point {
	return orb.Point{WrapLongitude(p.Lon()), p.Lat()}
}
