// Package geodatabase is the client-side view of a hosted feature service:
// its tables, their capabilities and the edits staged against them until
// they are pushed to the server.
package geodatabase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"placemap/internal/adapters/observability"
	"placemap/internal/domain"
)

type LoadStatus int

const (
	NotLoaded LoadStatus = iota
	Loading
	Loaded
	FailedToLoad
)

func (s LoadStatus) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case FailedToLoad:
		return "failed"
	}
	return "not_loaded"
}

type ServiceGeodatabase struct {
	svc        domain.FeatureService
	cache      domain.Cache
	cacheTTL   time.Duration
	serviceURL string
	layerIDs   []int

	sf singleflight.Group

	mu      sync.Mutex
	status  LoadStatus
	loadErr error
	tables  []*Table
}

// New describes the service at serviceURL restricted to layerIDs. Nothing is
// fetched until Load. cache may be nil.
func New(serviceURL string, layerIDs []int, svc domain.FeatureService, cache domain.Cache, ttl time.Duration) *ServiceGeodatabase {
	ids := make([]int, len(layerIDs))
	copy(ids, layerIDs)
	return &ServiceGeodatabase{
		svc:        svc,
		cache:      cache,
		cacheTTL:   ttl,
		serviceURL: strings.TrimRight(serviceURL, "/"),
		layerIDs:   ids,
	}
}

func (g *ServiceGeodatabase) ServiceURL() string { return g.serviceURL }

func (g *ServiceGeodatabase) Status() (LoadStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status, g.loadErr
}

// Load fetches the metadata of every table. Concurrent callers share one
// fetch; a failed load may be retried by calling Load again.
func (g *ServiceGeodatabase) Load(ctx context.Context) error {
	g.mu.Lock()
	if g.status == Loaded {
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	_, err, _ := g.sf.Do("load", func() (any, error) {
		g.mu.Lock()
		if g.status == Loaded {
			g.mu.Unlock()
			return nil, nil
		}
		g.status, g.loadErr = Loading, nil
		g.mu.Unlock()

		tables, err := g.loadTables(ctx)

		g.mu.Lock()
		defer g.mu.Unlock()
		if err != nil {
			g.status, g.loadErr = FailedToLoad, err
			return nil, err
		}
		g.tables = tables
		g.status, g.loadErr = Loaded, nil
		return nil, nil
	})
	return err
}

func (g *ServiceGeodatabase) loadTables(ctx context.Context) ([]*Table, error) {
	svc, err := cached(ctx, g, "service:"+g.serviceURL, func() (domain.ServiceInfo, error) {
		return g.svc.ServiceInfo(ctx, g.serviceURL)
	})
	if err != nil {
		return nil, err
	}

	tables := make([]*Table, 0, len(g.layerIDs))
	for _, id := range g.layerIDs {
		// services that list nothing are taken at their word per layer
		if len(svc.Layers) > 0 && !svc.HasLayer(id) {
			return nil, fmt.Errorf("layer %d of %s: %w", id, g.serviceURL, domain.ErrNotFound)
		}
		info, err := g.layerInfo(ctx, id)
		if err != nil {
			return nil, err
		}
		tables = append(tables, &Table{gdb: g, info: info, url: g.layerURL(id)})
	}
	return tables, nil
}

func (g *ServiceGeodatabase) layerURL(id int) string {
	return g.serviceURL + "/" + strconv.Itoa(id)
}

func (g *ServiceGeodatabase) layerInfo(ctx context.Context, id int) (domain.LayerInfo, error) {
	u := g.layerURL(id)
	info, err := cached(ctx, g, "layer:"+u, func() (domain.LayerInfo, error) {
		return g.svc.LayerInfo(ctx, u)
	})
	if err != nil {
		return domain.LayerInfo{}, err
	}
	if info.ID != id {
		log.Warn().Int("want", id).Int("got", info.ID).Str("url", u).Msg("layer id mismatch in metadata")
	}
	return info, nil
}

// cached reads key from the metadata cache, or calls fetch on a miss and
// stores the result. Cache failures only cost a round trip.
func cached[T any](ctx context.Context, g *ServiceGeodatabase, key string, fetch func() (T, error)) (T, error) {
	var v T
	if g.cache != nil {
		ok, err := g.cache.Get(ctx, key, &v)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("metadata cache get failed")
		} else if ok {
			return v, nil
		}
	}
	v, err := fetch()
	if err != nil {
		return v, err
	}
	if g.cache != nil {
		if err := g.cache.Set(ctx, key, v, int(g.cacheTTL.Seconds())); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("metadata cache set failed")
		}
	}
	return v, nil
}

// Table returns the i-th table in the order the layer ids were given.
func (g *ServiceGeodatabase) Table(i int) (*Table, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != Loaded {
		return nil, domain.ErrNotLoaded
	}
	if i < 0 || i >= len(g.tables) {
		return nil, fmt.Errorf("table %d: %w", i, domain.ErrNotFound)
	}
	return g.tables[i], nil
}

func (g *ServiceGeodatabase) HasLocalEdits() bool { return g.pendingCount() > 0 }

func (g *ServiceGeodatabase) pendingCount() int {
	g.mu.Lock()
	tables := g.tables
	g.mu.Unlock()
	n := 0
	for _, t := range tables {
		n += t.PendingEdits()
	}
	return n
}

// UndoLocalEdits drops every staged edit and reports how many were dropped.
func (g *ServiceGeodatabase) UndoLocalEdits() int {
	g.mu.Lock()
	tables := g.tables
	g.mu.Unlock()
	n := 0
	for _, t := range tables {
		n += len(t.takePending())
	}
	observability.SetPendingEdits(0)
	return n
}

// ApplyEdits pushes every pending edit of every table in one request. Once
// the server has answered, the pushed edits are no longer pending even if
// some of them failed; on a transport error they stay queued.
func (g *ServiceGeodatabase) ApplyEdits(ctx context.Context) ([]domain.TableEditResult, error) {
	g.mu.Lock()
	tables := g.tables
	g.mu.Unlock()

	var (
		edits []domain.LayerEdits
		taken = map[*Table][]domain.Feature{}
	)
	for _, t := range tables {
		adds := t.takePending()
		if len(adds) == 0 {
			continue
		}
		taken[t] = adds
		edits = append(edits, domain.LayerEdits{LayerID: t.info.ID, Adds: adds})
	}
	if len(edits) == 0 {
		return nil, nil
	}

	results, err := g.svc.ApplyEdits(ctx, g.serviceURL, edits)
	if err != nil {
		for t, adds := range taken {
			t.requeue(adds)
		}
		observability.SetPendingEdits(g.pendingCount())
		return nil, err
	}
	observability.SetPendingEdits(g.pendingCount())
	return results, nil
}
