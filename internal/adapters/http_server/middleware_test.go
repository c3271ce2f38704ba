package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func TestLogger_LevelByOutcome(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		level  string
	}{
		{"Ok", "/v1/map/clicks", 200, "info"},
		{"Polling", "/v1/alerts", 200, "debug"},
		{"Client Error", "/v1/alerts", 400, "warn"},
		{"Server Error", "/v1/map/clicks", 503, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := zerolog.New(&buf).Level(zerolog.DebugLevel)

			m := chi.NewRouter()
			m.Use(Logger(l))
			m.HandleFunc(tt.path, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(tt.status) })
			m.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", tt.path, nil))

			var ev map[string]any
			if err := json.Unmarshal(buf.Bytes(), &ev); err != nil {
				t.Fatalf("decode log line %q: %v", buf.String(), err)
			}
			if ev["level"] != tt.level || ev["route"] != tt.path || ev["status"] != float64(tt.status) {
				t.Fatalf("unexpected log event %v", ev)
			}
		})
	}
}

func TestTimeout(t *testing.T) {
	h := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
