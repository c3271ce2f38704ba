package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// WGS84 is the well-known id of geographic lon/lat.
const WGS84 = 4326

type SpatialReference struct {
	WKID       int `json:"wkid,omitempty"`
	LatestWKID int `json:"latestWkid,omitempty"`
}

// EsriPoint is the ArcGIS REST JSON form of a point geometry.
type EsriPoint struct {
	X                float64           `json:"x"`
	Y                float64           `json:"y"`
	SpatialReference *SpatialReference `json:"spatialReference,omitempty"`
}

func ToEsriPoint(p orb.Point, wkid int) EsriPoint {
	ep := EsriPoint{X: p.Lon(), Y: p.Lat()}
	if wkid != 0 {
		ep.SpatialReference = &SpatialReference{WKID: wkid}
	}
	return ep
}

// FromEsriPoint reads x/y back as lon/lat. Empty ArcGIS geometries carry NaN
// coordinates; ok is false for those.
func FromEsriPoint(ep EsriPoint) (p orb.Point, ok bool) {
	if math.IsNaN(ep.X) || math.IsNaN(ep.Y) {
		return orb.Point{}, false
	}
	return orb.Point{ep.X, ep.Y}, true
}
