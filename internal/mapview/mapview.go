// Package mapview holds the map the user looks at: a basemap, the visible
// extent and the operational layers drawn over it.
//
// A MapView is owned by the UI loop and is not safe for concurrent use.
package mapview

import (
	"errors"

	"github.com/paulmach/orb"
)

const DefaultBasemap = "arcgis-imagery"

var ErrDisposed = errors.New("map view disposed")

type MapView struct {
	basemap  string
	viewport Viewport
	layers   []*FeatureLayer
	disposed bool
}

func New(basemap string, vp Viewport) *MapView {
	if basemap == "" {
		basemap = DefaultBasemap
	}
	return &MapView{basemap: basemap, viewport: vp}
}

func (m *MapView) Basemap() string    { return m.basemap }
func (m *MapView) Viewport() Viewport { return m.viewport }

func (m *MapView) SetViewport(v Viewport) { m.viewport = v }

// AddLayer appends l to the operational layers. Adding a layer for a URL
// that is already shown is a no-op.
func (m *MapView) AddLayer(l *FeatureLayer) error {
	if m.disposed {
		return ErrDisposed
	}
	for _, have := range m.layers {
		if have.URL() == l.URL() {
			return nil
		}
	}
	m.layers = append(m.layers, l)
	return nil
}

func (m *MapView) Layers() []*FeatureLayer {
	out := make([]*FeatureLayer, len(m.layers))
	copy(out, m.layers)
	return out
}

func (m *MapView) ScreenToLocation(x, y float64) (orb.Point, error) {
	if m.disposed {
		return orb.Point{}, ErrDisposed
	}
	return m.viewport.ScreenToLocation(x, y)
}

// Dispose drops the layers. It is idempotent.
func (m *MapView) Dispose() {
	m.layers = nil
	m.disposed = true
}

func (m *MapView) Disposed() bool { return m.disposed }
