package mapview

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func near(a, b orb.Point) bool {
	return math.Abs(a.Lon()-b.Lon()) < 1e-9 && math.Abs(a.Lat()-b.Lat()) < 1e-9
}

func TestViewport_ScreenToLocation(t *testing.T) {
	// 80 degrees across 800 px: 0.1 degree per pixel both ways
	vp := NewViewport(orb.Point{0, 0}, 80, 800, 600)

	tests := []struct {
		name     string
		x, y     float64
		expected orb.Point
	}{
		{"Center", 400, 300, orb.Point{0, 0}},
		{"Top Left", 0, 0, orb.Point{-40, 30}},
		{"Bottom Right", 800, 600, orb.Point{40, -30}},
		{"Quarter", 200, 150, orb.Point{-20, 15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := vp.ScreenToLocation(tt.x, tt.y)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if !near(got, tt.expected) {
				t.Errorf("ScreenToLocation(%v, %v): expected %v, got %v", tt.x, tt.y, tt.expected, got)
			}
			x, y := vp.LocationToScreen(got)
			if math.Abs(x-tt.x) > 1e-6 || math.Abs(y-tt.y) > 1e-6 {
				t.Errorf("LocationToScreen(%v) = %v, %v; want %v, %v", got, x, y, tt.x, tt.y)
			}
		})
	}
}

func TestViewport_OutsideWindow(t *testing.T) {
	vp := NewViewport(orb.Point{0, 0}, 80, 800, 600)
	for _, px := range [][2]float64{{-1, 10}, {10, -1}, {801, 10}, {10, 601}} {
		if _, err := vp.ScreenToLocation(px[0], px[1]); !errors.Is(err, ErrOutsideViewport) {
			t.Fatalf("pixel %v: expected ErrOutsideViewport, got %v", px, err)
		}
	}
}

func TestViewport_WrapsPastAntimeridian(t *testing.T) {
	vp := NewViewport(orb.Point{170, 10}, 80, 800, 600).Pan(20, 0)
	if c := vp.Center(); !near(c, orb.Point{190, 10}) {
		t.Fatalf("expected continuous center 190, got %v", c)
	}
	got, err := vp.ScreenToLocation(500, 300)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !near(got, orb.Point{200, 10}) {
		t.Fatalf("expected wrapped-around 200,10; got %v", got)
	}
}

func TestViewport_PanClampsLatitude(t *testing.T) {
	vp := NewViewport(orb.Point{0, 0}, 80, 800, 600).Pan(0, 100)
	if vp.Extent.Max.Lat() != 90 || math.Abs(vp.Extent.Min.Lat()-30) > 1e-9 {
		t.Fatalf("expected extent clamped to 30..90, got %v", vp.Extent)
	}
}

func TestViewport_CenterAtAndZoom(t *testing.T) {
	vp := NewViewport(orb.Point{0, 0}, 80, 800, 600).CenterAt(orb.Point{-3, 55})
	if !near(vp.Center(), orb.Point{-3, 55}) {
		t.Fatalf("unexpected center %v", vp.Center())
	}
	z := vp.Zoom(2)
	if w := z.Extent.Max.Lon() - z.Extent.Min.Lon(); math.Abs(w-40) > 1e-9 {
		t.Fatalf("expected 40 degree span after zoom, got %v", w)
	}
	if !near(z.Center(), orb.Point{-3, 55}) {
		t.Fatalf("zoom moved center to %v", z.Center())
	}
}

func TestMapView_Dispose(t *testing.T) {
	m := New("", NewViewport(orb.Point{0, 0}, 80, 800, 600))
	if m.Basemap() != DefaultBasemap {
		t.Fatalf("expected default basemap, got %s", m.Basemap())
	}
	m.Dispose()
	m.Dispose()
	if _, err := m.ScreenToLocation(1, 1); !errors.Is(err, ErrDisposed) {
		t.Fatalf("expected ErrDisposed, got %v", err)
	}
}
