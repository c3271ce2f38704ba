package app

import (
	"github.com/paulmach/orb"

	"placemap/internal/domain"
	"placemap/internal/mapview"
)

// Snapshot is a copy of the controller state safe to hand to other
// goroutines.
type Snapshot struct {
	State      string       `json:"state"`
	LoadStatus string       `json:"load_status"`
	Basemap    string       `json:"basemap"`
	Viewport   ViewportView `json:"viewport"`
	Layers     []LayerView  `json:"layers"`
	Captured   *orb.Point   `json:"captured,omitempty"`
	Dialog     *DialogView  `json:"dialog,omitempty"`
}

type ViewportView struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

type LayerView struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	CanAdd bool   `json:"can_add"`
}

type DialogView struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Category      domain.Category   `json:"category"`
	Categories    []domain.Category `json:"categories"`
	SubmitEnabled bool              `json:"submit_enabled"`
	Location      orb.Point         `json:"location"`
}

func newViewportView(v mapview.Viewport) ViewportView {
	return ViewportView{
		MinLon: v.Extent.Min.Lon(),
		MinLat: v.Extent.Min.Lat(),
		MaxLon: v.Extent.Max.Lon(),
		MaxLat: v.Extent.Max.Lat(),
		Width:  v.Width,
		Height: v.Height,
	}
}

// snapshot runs on the loop.
func (c *Controller) snapshot() Snapshot {
	st, _ := c.gdb.Status()
	s := Snapshot{
		State:      c.state.String(),
		LoadStatus: st.String(),
		Basemap:    c.mapView.Basemap(),
		Viewport:   newViewportView(c.mapView.Viewport()),
		Layers:     []LayerView{},
	}
	for _, l := range c.mapView.Layers() {
		s.Layers = append(s.Layers, LayerView{Name: l.Name(), URL: l.URL(), CanAdd: l.Table().CanAdd()})
	}
	if c.state != Idle {
		p := c.captured
		s.Captured = &p
	}
	if d := c.dialog; d != nil {
		s.Dialog = &DialogView{
			Name:          d.Name(),
			Description:   d.Description(),
			Category:      d.Category(),
			Categories:    d.Categories(),
			SubmitEnabled: d.SubmitEnabled(),
			Location:      d.Location(),
		}
	}
	return s
}
