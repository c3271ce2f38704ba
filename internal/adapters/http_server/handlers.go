// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"

	"placemap/internal/app"
	"placemap/internal/domain"
	"placemap/internal/mapview"
	"placemap/internal/ui"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// maxAlertWait caps how long GET /v1/alerts may hold a request open.
const maxAlertWait = 10 * time.Second

type Handlers struct {
	C      *app.Controller
	Alerts *ui.AlertLog
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/", h.index)
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1", func(r chi.Router) {
		r.Get("/map", h.getMap)
		r.Put("/map/viewport", h.putViewport)
		r.Post("/map/clicks", h.postClick)
		r.Get("/layers/{id}/features", h.layerFeatures)
		r.Get("/dialog", h.getDialog)
		r.Post("/dialog/submit", h.submitDialog)
		r.Post("/dialog/cancel", h.cancelDialog)
		r.Get("/alerts", h.listAlerts)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps controller errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	status, title := http.StatusInternalServerError, "Internal Error"
	switch {
	case errors.Is(err, app.ErrBusy):
		status, title = http.StatusConflict, "Busy"
	case errors.Is(err, app.ErrNoDialog), errors.Is(err, ui.ErrDialogClosed):
		status, title = http.StatusConflict, "No Open Dialog"
	case errors.Is(err, app.ErrClickIgnored):
		status, title = http.StatusUnprocessableEntity, "Click Ignored"
	case errors.Is(err, ui.ErrSubmitDisabled):
		status, title = http.StatusUnprocessableEntity, "Submit Disabled"
	case errors.Is(err, domain.ErrInvalidCategory):
		status, title = http.StatusBadRequest, "Invalid Category"
	case errors.Is(err, mapview.ErrOutsideViewport):
		status, title = http.StatusBadRequest, "Outside Viewport"
	case errors.Is(err, domain.ErrNotLoaded), errors.Is(err, ui.ErrStopped),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, title = http.StatusServiceUnavailable, "Unavailable"
	case errors.Is(err, domain.ErrNotFound):
		status, title = http.StatusNotFound, "Not Found"
	case errors.Is(err, domain.ErrUnauthorized):
		status, title = http.StatusBadGateway, "Feature Service Rejected Credentials"
	}
	if status >= 500 {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeProblem(w, status, title, err.Error())
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write body")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	return true
}

type pageData struct {
	Categories []domain.Category
	Default    domain.Category
}

func (h *Handlers) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := pageData{Categories: domain.Categories(), Default: domain.DefaultCategory()}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("render index failed")
	}
}

func (h *Handlers) getMap(w http.ResponseWriter, r *http.Request) {
	snap, err := h.C.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	etag, body := calcETagAndBody(snap)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write getMap body")
	}
}

// viewportRequest moves the map. All fields are optional and applied in
// the order center, pan, zoom.
type viewportRequest struct {
	Center *[2]float64 `json:"center,omitempty"`
	PanLon float64     `json:"pan_lon,omitempty"`
	PanLat float64     `json:"pan_lat,omitempty"`
	Zoom   float64     `json:"zoom,omitempty"`
}

func (h *Handlers) putViewport(w http.ResponseWriter, r *http.Request) {
	var req viewportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Zoom < 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid zoom", "zoom must be positive")
		return
	}
	if req.Center != nil && (req.Center[1] < -90 || req.Center[1] > 90) {
		writeProblem(w, http.StatusBadRequest, "Invalid center", "latitude must be within [-90, 90]")
		return
	}
	snap, err := h.C.UpdateViewport(r.Context(), func(v mapview.Viewport) mapview.Viewport {
		if req.Center != nil {
			v = v.CenterAt(orb.Point{req.Center[0], req.Center[1]})
		}
		if req.PanLon != 0 || req.PanLat != 0 {
			v = v.Pan(req.PanLon, req.PanLat)
		}
		if req.Zoom > 0 {
			v = v.Zoom(req.Zoom)
		}
		return v
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type clickRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button string  `json:"button,omitempty"`
	Still  *bool   `json:"still,omitempty"`
}

func parseButton(s string) (app.MouseButton, bool) {
	switch strings.ToLower(s) {
	case "", "primary", "left":
		return app.Primary, true
	case "secondary", "right":
		return app.Secondary, true
	case "middle":
		return app.Middle, true
	}
	return 0, false
}

func (h *Handlers) postClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if !decodeBody(w, r, &req) {
		return
	}
	btn, ok := parseButton(req.Button)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid button", "button must be primary, secondary or middle")
		return
	}
	still := true
	if req.Still != nil {
		still = *req.Still
	}
	snap, err := h.C.Click(r.Context(), app.Click{X: req.X, Y: req.Y, Button: btn, StillSincePress: still})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) layerFeatures(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	layer, err := h.C.Layer(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	fc, err := layer.Features(r.Context())
	if err != nil {
		log.Warn().Err(err).Str("layer", layer.URL()).Msg("query features failed")
		writeProblem(w, http.StatusBadGateway, "Query Failed", err.Error())
		return
	}
	body, err := fc.MarshalJSON()
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "encode features")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write features body")
	}
}

func (h *Handlers) getDialog(w http.ResponseWriter, r *http.Request) {
	snap, err := h.C.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if snap.Dialog == nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "no open dialog")
		return
	}
	writeJSON(w, http.StatusOK, snap.Dialog)
}

type submitRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

// submitDialog answers 202: the edit is pushed in the background and its
// outcome shows up as an alert.
func (h *Handlers) submitDialog(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := h.C.Submit(r.Context(), app.DialogInput{Name: req.Name, Description: req.Description, Category: req.Category})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

func (h *Handlers) cancelDialog(w http.ResponseWriter, r *http.Request) {
	snap, err := h.C.Cancel(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// listAlerts returns alerts after the given sequence number. With wait=N it
// holds the request up to N seconds until a new alert arrives.
func (h *Handlers) listAlerts(w http.ResponseWriter, r *http.Request) {
	after := 0
	if s := r.URL.Query().Get("after"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid after", "after must be a non-negative integer")
			return
		}
		after = n
	}
	var wait time.Duration
	if s := r.URL.Query().Get("wait"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid wait", "wait must be a non-negative integer")
			return
		}
		wait = min(time.Duration(n)*time.Second, maxAlertWait)
	}

	changed := h.Alerts.Changed()
	alerts := h.Alerts.Since(after)
	if len(alerts) == 0 && wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-changed:
			alerts = h.Alerts.Since(after)
		case <-t.C:
		case <-r.Context().Done():
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}
