package arcgis_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"placemap/internal/adapters/arcgis"
	"placemap/internal/domain"
)

const layerBody = `{
  "id": 0,
  "name": "PointsofRelaxing",
  "type": "Feature Layer",
  "geometryType": "esriGeometryPoint",
  "capabilities": "Create,Delete,Query,Update,Editing",
  "extent": {"spatialReference": {"wkid": 102100, "latestWkid": 3857}},
  "fields": [
    {"name": "OBJECTID", "type": "esriFieldTypeOID", "editable": false, "nullable": false},
    {"name": "Name", "type": "esriFieldTypeString", "length": 256},
    {"name": "Description", "type": "esriFieldTypeString", "length": 256},
    {"name": "Category", "type": "esriFieldTypeString", "length": 256}
  ]
}`

func newClient(t *testing.T) *arcgis.Client {
	t.Helper()
	cl, err := arcgis.New("test-key", 100, 2*time.Second) // high RPS for tests
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return cl
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := arcgis.New("", 5, time.Second); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestClient_LayerInfo(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("f") != "json" || r.URL.Query().Get("token") != "test-key" {
			t.Errorf("missing f/token params: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(layerBody))
	}))
	defer ts.Close()

	info, err := newClient(t).LayerInfo(context.Background(), ts.URL+"/FeatureServer/0")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if info.Name != "PointsofRelaxing" || info.GeometryType != "esriGeometryPoint" {
		t.Fatalf("unexpected layer: %+v", info)
	}
	if !info.HasCapability("create") {
		t.Fatalf("expected Create capability, got %v", info.Capabilities)
	}
	if info.WKID != 3857 {
		t.Fatalf("expected latest wkid 3857, got %d", info.WKID)
	}
	oid, ok := info.Field("objectid")
	if !ok || oid.Editable {
		t.Fatalf("expected non-editable OBJECTID, got %+v ok=%v", oid, ok)
	}
	if name, _ := info.Field("Name"); !name.Editable || !name.Nullable {
		t.Fatalf("expected editable nullable Name by default, got %+v", name)
	}
}

func TestClient_LayerInfo_ErrorEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// ArcGIS reports token problems with HTTP 200
		_, _ = w.Write([]byte(`{"error":{"code":498,"message":"Invalid token.","details":[]}}`))
	}))
	defer ts.Close()

	_, err := newClient(t).LayerInfo(context.Background(), ts.URL+"/FeatureServer/0")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	var se *arcgis.ServiceError
	if !errors.As(err, &se) || se.Message != "Invalid token." {
		t.Fatalf("expected ServiceError, got %v", err)
	}
}

func TestClient_LayerInfo_TokenStatus(t *testing.T) {
	for _, code := range []int{401, 403, 498, 499} {
		t.Run(strconv.Itoa(code), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
				_, _ = w.Write([]byte("Invalid token"))
			}))
			defer ts.Close()

			_, err := newClient(t).LayerInfo(context.Background(), ts.URL+"/FeatureServer/0")
			if !errors.Is(err, domain.ErrUnauthorized) {
				t.Fatalf("status %d: expected ErrUnauthorized, got %v", code, err)
			}
		})
	}
}

func TestClient_LayerInfo_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(503)
			return
		}
		_, _ = w.Write([]byte(layerBody))
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := newClient(t).LayerInfo(ctx, ts.URL+"/FeatureServer/0"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expected 2 calls, got %d", hits)
	}
}

func TestClient_LayerInfo_404(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := newClient(t).LayerInfo(context.Background(), ts.URL+"/FeatureServer/9")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_ApplyEdits(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/FeatureServer/applyEdits" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		var edits []struct {
			ID   int `json:"id"`
			Adds []struct {
				Attributes map[string]any `json:"attributes"`
				Geometry   struct {
					X, Y float64
				} `json:"geometry"`
			} `json:"adds"`
		}
		if err := json.Unmarshal([]byte(r.PostForm.Get("edits")), &edits); err != nil {
			t.Errorf("edits param: %v", err)
		}
		if len(edits) != 1 || len(edits[0].Adds) != 2 {
			t.Errorf("unexpected edits: %+v", edits)
		} else if a := edits[0].Adds[0]; a.Attributes["Name"] != "Quiet Cafe" || a.Geometry.X != -160 || a.Geometry.Y != 10 {
			t.Errorf("unexpected first add: %+v", a)
		}
		_, _ = w.Write([]byte(`[{"id":0,"addResults":[
			{"objectId":41,"globalId":"{A}","success":true},
			{"objectId":-1,"success":false,"error":{"code":1000,"description":"Field Category is invalid"}}
		]}]`))
	}))
	defer ts.Close()

	edits := []domain.LayerEdits{{
		LayerID: 0,
		Adds: []domain.Feature{
			{LocalID: "a", Attributes: map[string]any{"Name": "Quiet Cafe"}, Geometry: orb.Point{-160, 10}},
			{LocalID: "b", Attributes: map[string]any{"Name": "Bad"}, Geometry: orb.Point{1, 1}},
		},
	}}
	res, err := newClient(t).ApplyEdits(context.Background(), ts.URL+"/FeatureServer", edits)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(res) != 1 || len(res[0].Results) != 2 {
		t.Fatalf("unexpected results: %+v", res)
	}
	first, second := res[0].Results[0], res[0].Results[1]
	if first.CompletedWithErrors() || first.ObjectID != 41 || first.LocalID != "a" {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if !second.CompletedWithErrors() || second.Err.Description != "Field Category is invalid" || second.LocalID != "b" {
		t.Fatalf("unexpected second result: %+v", second)
	}
}

func TestClient_ApplyEdits_NoRetry(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(500)
	}))
	defer ts.Close()

	_, err := newClient(t).ApplyEdits(context.Background(), ts.URL+"/FeatureServer", []domain.LayerEdits{{LayerID: 0}})
	if err == nil {
		t.Fatalf("expected error for 500")
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("applyEdits must not be retried, got %d calls", hits)
	}
}

func TestClient_Query(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/FeatureServer/0/query" || r.URL.Query().Get("outSR") != "4326" {
			t.Errorf("unexpected query %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"features":[
			{"attributes":{"OBJECTID":7,"Name":"Pond"},"geometry":{"x":-3.5,"y":55.9}},
			{"attributes":{"OBJECTID":8,"Name":"No geometry"}}
		]}`))
	}))
	defer ts.Close()

	fs, err := newClient(t).Query(context.Background(), ts.URL+"/FeatureServer/0", "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(fs) != 1 || fs[0].ObjectID != 7 || fs[0].Geometry != (orb.Point{-3.5, 55.9}) {
		t.Fatalf("unexpected features: %+v", fs)
	}
}

func TestSplitLayerURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		service string
		id      int
		wantErr bool
	}{
		{"Hosted Layer", "https://services1.arcgis.com/6677msI40mnLuuLr/arcgis/rest/services/PointsofRelaxing/FeatureServer/0",
			"https://services1.arcgis.com/6677msI40mnLuuLr/arcgis/rest/services/PointsofRelaxing/FeatureServer", 0, false},
		{"Lower Case And Query", "https://x.com/arcgis/rest/services/S/featureserver/3?f=json",
			"https://x.com/arcgis/rest/services/S/FeatureServer", 3, false},
		{"Trailing Slash", "https://x.com/rest/services/S/FeatureServer/12/", "https://x.com/rest/services/S/FeatureServer", 12, false},
		{"No Layer Id", "https://x.com/rest/services/S/FeatureServer", "", 0, true},
		{"MapServer", "https://x.com/rest/services/S/MapServer/0", "", 0, true},
		{"No Scheme", "x.com/rest/services/S/FeatureServer/0", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, id, err := arcgis.SplitLayerURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitLayerURL(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && (svc != tt.service || id != tt.id) {
				t.Errorf("SplitLayerURL(%q) = %q, %d; want %q, %d", tt.input, svc, id, tt.service, tt.id)
			}
		})
	}
}

func TestClient_ServiceInfo(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/FeatureServer" || r.URL.Query().Get("f") != "json" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{
  "serviceDescription": "Relaxing places",
  "capabilities": "Create,Query,Update",
  "spatialReference": {"wkid": 102100, "latestWkid": 3857},
  "layers": [{"id": 0, "name": "PointsofRelaxing"}],
  "tables": [{"id": 2, "name": "Visits"}]
}`))
	}))
	defer ts.Close()

	info, err := newClient(t).ServiceInfo(context.Background(), ts.URL+"/FeatureServer")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if info.WKID != 3857 || len(info.Capabilities) != 3 || !info.HasLayer(0) || !info.HasLayer(2) || info.HasLayer(1) {
		t.Fatalf("unexpected service info %+v", info)
	}
}
