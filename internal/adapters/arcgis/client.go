package arcgis

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"placemap/internal/adapters/observability"
	"placemap/internal/domain"
	"placemap/internal/geometry"
)

var _ domain.FeatureService = (*Client)(nil)

type Client struct {
	hc  *http.Client
	key string
	rl  *rate.Limiter
}

func New(key string, rps int, timeout time.Duration) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("ArcGIS API key is required")
	}
	if rps <= 0 {
		rps = 5
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		hc:  &http.Client{Timeout: timeout},
		key: key,
		rl:  rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// ---- Public API ----

func (c *Client) ServiceInfo(ctx context.Context, serviceURL string) (domain.ServiceInfo, error) {
	var out serviceJSON
	if err := c.get(ctx, "service", serviceURL, nil, &out); err != nil {
		return domain.ServiceInfo{}, fmt.Errorf("service info %s: %w", serviceURL, err)
	}
	return out.toDomain(), nil
}

func (c *Client) LayerInfo(ctx context.Context, layerURL string) (domain.LayerInfo, error) {
	var out layerJSON
	if err := c.get(ctx, "layer", layerURL, nil, &out); err != nil {
		return domain.LayerInfo{}, fmt.Errorf("layer info %s: %w", layerURL, err)
	}
	return out.toDomain(), nil
}

// Query returns the layer's features in WGS84.
func (c *Client) Query(ctx context.Context, layerURL, where string) ([]domain.Feature, error) {
	if where == "" {
		where = "1=1"
	}
	q := url.Values{}
	q.Set("where", where)
	q.Set("outFields", "*")
	q.Set("returnGeometry", "true")
	q.Set("outSR", strconv.Itoa(geometry.WGS84))

	var out queryResponse
	if err := c.get(ctx, "query", strings.TrimRight(layerURL, "/")+"/query", q, &out); err != nil {
		return nil, fmt.Errorf("query %s: %w", layerURL, err)
	}
	if out.ExceededTransferLimit {
		log.Warn().Str("layer", layerURL).Msg("feature transfer limit exceeded; results are incomplete")
	}

	features := make([]domain.Feature, 0, len(out.Features))
	for _, f := range out.Features {
		if f.Geometry == nil {
			continue
		}
		p, ok := geometry.FromEsriPoint(*f.Geometry)
		if !ok {
			continue
		}
		features = append(features, domain.Feature{
			ObjectID:   attrInt64(f.Attributes["OBJECTID"]),
			Attributes: f.Attributes,
			Geometry:   p,
		})
	}
	return features, nil
}

// ApplyEdits posts every layer's adds in one service-level applyEdits call.
// Results come back in the order of the request, per layer.
func (c *Client) ApplyEdits(ctx context.Context, serviceURL string, edits []domain.LayerEdits) ([]domain.TableEditResult, error) {
	body := make([]layerEditsJSON, 0, len(edits))
	for _, e := range edits {
		le := layerEditsJSON{ID: e.LayerID}
		for _, f := range e.Adds {
			ep := geometry.ToEsriPoint(f.Geometry, geometry.WGS84)
			le.Adds = append(le.Adds, featureJSON{Attributes: f.Attributes, Geometry: &ep})
		}
		body = append(body, le)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("edits", string(raw))
	form.Set("rollbackOnFailure", "false")

	var out []layerEditResultJSON
	if err := c.post(ctx, "applyEdits", strings.TrimRight(serviceURL, "/")+"/applyEdits", form, &out); err != nil {
		return nil, fmt.Errorf("apply edits: %w", err)
	}

	// map results back onto the staged features by position
	local := map[int][]domain.Feature{}
	for _, e := range edits {
		local[e.LayerID] = e.Adds
	}
	results := make([]domain.TableEditResult, 0, len(out))
	for _, le := range out {
		tr := domain.TableEditResult{LayerID: le.ID}
		adds := local[le.ID]
		for i, r := range le.AddResults {
			var localID string
			if i < len(adds) {
				localID = adds[i].LocalID
			}
			tr.Results = append(tr.Results, r.toDomain(localID))
		}
		results = append(results, tr)
	}
	return results, nil
}

// ---- Internals ----

func (c *Client) withToken(q url.Values) url.Values {
	if q == nil {
		q = url.Values{}
	}
	q.Set("f", "json")
	q.Set("token", c.key)
	return q
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "placemap/1.0")
	req.Header.Set("X-Esri-Authorization", "Bearer "+c.key)
	return req, nil
}

// get performs a GET with client-side rate limiting and retries on 429 and
// transient 5xx, honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, endpoint, rawURL string, q url.Values, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	u := rawURL + "?" + c.withToken(q).Encode()

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := c.newRequest(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("arcgis", endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("arcgis", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			log.Debug().Str("endpoint", endpoint).Int("status", resp.StatusCode).Dur("wait", wait).Msg("arcgis retry")
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		default:
			return decode(resp, out)
		}
	}
	return lastErr
}

// post sends a form-encoded POST. Edits are not idempotent, so there are no
// retries here.
func (c *Client) post(ctx context.Context, endpoint, rawURL string, form url.Values, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, rawURL, strings.NewReader(c.withToken(form).Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("arcgis", endpoint, 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	observability.ObserveExternal("arcgis", endpoint, resp.StatusCode, time.Since(start))
	return decode(resp, out)
}

// decode maps HTTP status and the JSON error envelope to errors, then
// unmarshals the body into out.
func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden, 498, 499:
		// 498 invalid token, 499 token required
		return domain.ErrUnauthorized
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var env errorEnvelope
		if err := json.Unmarshal(b, &env); err == nil && env.Error != nil {
			return env.Error
		}
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns 200ms, 400ms, 800ms... plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
