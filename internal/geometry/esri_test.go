package geometry

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestToEsriPoint_JSON(t *testing.T) {
	b, err := json.Marshal(ToEsriPoint(orb.Point{-160, 10}, WGS84))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"x":-160,"y":10,"spatialReference":{"wkid":4326}}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}

	b, _ = json.Marshal(ToEsriPoint(orb.Point{1, 2}, 0))
	if string(b) != `{"x":1,"y":2}` {
		t.Fatalf("expected no spatial reference, got %s", b)
	}
}

func TestFromEsriPoint(t *testing.T) {
	p, ok := FromEsriPoint(EsriPoint{X: 151.2, Y: -33.9})
	if !ok || p != (orb.Point{151.2, -33.9}) {
		t.Fatalf("unexpected %v %v", p, ok)
	}
	if _, ok := FromEsriPoint(EsriPoint{X: math.NaN(), Y: 0}); ok {
		t.Fatalf("expected empty geometry to be rejected")
	}
}
