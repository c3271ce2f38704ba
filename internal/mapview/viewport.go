package mapview

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

var ErrOutsideViewport = errors.New("pixel outside viewport")

// Viewport is the visible extent of a wrap-around map drawn into a
// Width x Height pixel window. Longitudes are continuous: after panning east
// past the antimeridian the extent reads e.g. 170..230, and so do the
// locations it returns.
type Viewport struct {
	Extent orb.Bound
	Width  int
	Height int
}

// NewViewport centers a window of spanLon degrees on center. The latitude
// span follows the pixel aspect ratio.
func NewViewport(center orb.Point, spanLon float64, width, height int) Viewport {
	if width <= 0 {
		width = 800
	}
	if height <= 0 {
		height = 700
	}
	if spanLon <= 0 || spanLon > 360 {
		spanLon = 360
	}
	spanLat := math.Min(spanLon*float64(height)/float64(width), 180)
	v := Viewport{Width: width, Height: height}
	v.Extent = orb.Bound{
		Min: orb.Point{center.Lon() - spanLon/2, center.Lat() - spanLat/2},
		Max: orb.Point{center.Lon() + spanLon/2, center.Lat() + spanLat/2},
	}
	return v.clampLat()
}

func (v Viewport) Center() orb.Point { return v.Extent.Center() }

// ScreenToLocation converts a pixel (origin top-left) to lon/lat. The result
// is not normalized.
func (v Viewport) ScreenToLocation(x, y float64) (orb.Point, error) {
	if v.Width <= 0 || v.Height <= 0 {
		return orb.Point{}, ErrOutsideViewport
	}
	if x < 0 || y < 0 || x > float64(v.Width) || y > float64(v.Height) {
		return orb.Point{}, ErrOutsideViewport
	}
	lon := v.Extent.Min.Lon() + x/float64(v.Width)*(v.Extent.Max.Lon()-v.Extent.Min.Lon())
	lat := v.Extent.Max.Lat() - y/float64(v.Height)*(v.Extent.Max.Lat()-v.Extent.Min.Lat())
	return orb.Point{lon, lat}, nil
}

// LocationToScreen is the inverse of ScreenToLocation. The point may lie
// outside the window.
func (v Viewport) LocationToScreen(p orb.Point) (x, y float64) {
	w := v.Extent.Max.Lon() - v.Extent.Min.Lon()
	h := v.Extent.Max.Lat() - v.Extent.Min.Lat()
	if w == 0 || h == 0 {
		return 0, 0
	}
	x = (p.Lon() - v.Extent.Min.Lon()) / w * float64(v.Width)
	y = (v.Extent.Max.Lat() - p.Lat()) / h * float64(v.Height)
	return x, y
}

// Pan shifts the extent. Longitude is not wrapped; latitude stays within ±90.
func (v Viewport) Pan(dLon, dLat float64) Viewport {
	v.Extent.Min = orb.Point{v.Extent.Min.Lon() + dLon, v.Extent.Min.Lat() + dLat}
	v.Extent.Max = orb.Point{v.Extent.Max.Lon() + dLon, v.Extent.Max.Lat() + dLat}
	return v.clampLat()
}

func (v Viewport) CenterAt(p orb.Point) Viewport {
	c := v.Center()
	return v.Pan(p.Lon()-c.Lon(), p.Lat()-c.Lat())
}

// Zoom scales the extent around its center; factor > 1 zooms in.
func (v Viewport) Zoom(factor float64) Viewport {
	if factor <= 0 {
		return v
	}
	spanLon := (v.Extent.Max.Lon() - v.Extent.Min.Lon()) / factor
	return NewViewport(v.Center(), spanLon, v.Width, v.Height)
}

func (v Viewport) clampLat() Viewport {
	if d := v.Extent.Max.Lat() - 90; d > 0 {
		v.Extent.Min[1] -= d
		v.Extent.Max[1] = 90
	}
	if d := -90 - v.Extent.Min.Lat(); d > 0 {
		v.Extent.Max[1] += d
		v.Extent.Min[1] = -90
	}
	return v
}
