package geometry

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestNormalizeCentralMeridian(t *testing.T) {
	tests := []struct {
		name     string
		input    orb.Point
		expected orb.Point
	}{
		{"Inside Range", orb.Point{-122.5, 37.8}, orb.Point{-122.5, 37.8}},
		{"Zero", orb.Point{0, 0}, orb.Point{0, 0}},
		{"East Edge Kept", orb.Point{180, 10}, orb.Point{180, 10}},
		{"West Edge Kept", orb.Point{-180, 10}, orb.Point{-180, 10}},
		{"Wrapped East", orb.Point{200, 10}, orb.Point{-160, 10}},
		{"Wrapped West", orb.Point{-200, -45}, orb.Point{160, -45}},
		{"Two Turns East", orb.Point{200 + 720, 1}, orb.Point{-160, 1}},
		{"Exactly 540", orb.Point{540, 0}, orb.Point{-180, 0}},
		{"Just Past Edge", orb.Point{180.5, 0}, orb.Point{-179.5, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual := NormalizeCentralMeridian(tt.input)
			if math.Abs(actual.Lon()-tt.expected.Lon()) > 1e-9 || actual.Lat() != tt.expected.Lat() {
				t.Errorf("NormalizeCentralMeridian(%v): expected %v, got %v", tt.input, tt.expected, actual)
			}
		})
	}
}

func TestNormalizeCentralMeridian_SameLocation(t *testing.T) {
	for lon := -1000.0; lon <= 1000; lon += 7.25 {
		p := NormalizeCentralMeridian(orb.Point{lon, 12})
		if p.Lon() < -180 || p.Lon() > 180 {
			t.Fatalf("lon %v normalized out of range: %v", lon, p.Lon())
		}
		if !sameMeridian(lon, p.Lon(), 1e-9) {
			t.Fatalf("lon %v normalized to a different meridian: %v", lon, p.Lon())
		}
	}
}

func TestWrapLongitude_NonFinite(t *testing.T) {
	if v := WrapLongitude(math.Inf(1)); !math.IsInf(v, 1) {
		t.Fatalf("expected +Inf unchanged, got %v", v)
	}
	if v := WrapLongitude(math.NaN()); !math.IsNaN(v) {
		t.Fatalf("expected NaN unchanged, got %v", v)
	}
}

// sameMeridian reports whether two longitudes denote the same meridian,
// within eps degrees.
func sameMeridian(a, b, eps float64) bool {
	d := math.Mod(math.Abs(a-b), 360)
	return d <= eps || 360-d <= eps
}
