package geodatabase

import (
	"context"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"placemap/internal/adapters/observability"
	"placemap/internal/domain"
)

const esriPoint = "esriGeometryPoint"

// Table is one layer of a ServiceGeodatabase.
type Table struct {
	gdb  *ServiceGeodatabase
	info domain.LayerInfo
	url  string

	pending pendingQueue
}

func (t *Table) Name() string           { return t.info.Name }
func (t *Table) URL() string            { return t.url }
func (t *Table) Info() domain.LayerInfo { return t.info }

func (t *Table) Geodatabase() *ServiceGeodatabase { return t.gdb }

// CanAdd reports whether the service lets this client create point features.
func (t *Table) CanAdd() bool {
	if !t.info.HasCapability("Create") {
		return false
	}
	return t.info.GeometryType == "" || t.info.GeometryType == esriPoint
}

// CreateFeature builds a feature for this table. Attributes are checked
// against the layer schema when the service published one.
func (t *Table) CreateFeature(attrs map[string]any, p orb.Point) (domain.Feature, error) {
	if !finite(p.Lon()) || !finite(p.Lat()) || p.Lat() < -90 || p.Lat() > 90 {
		return domain.Feature{}, fmt.Errorf("invalid point %v", p)
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if len(t.info.Fields) > 0 {
			f, ok := t.info.Field(k)
			if !ok {
				return domain.Feature{}, fmt.Errorf("%w: %s", domain.ErrUnknownField, k)
			}
			if !f.Editable {
				return domain.Feature{}, fmt.Errorf("field %s is not editable", f.Name)
			}
			if s, isStr := v.(string); isStr && f.Length > 0 && utf8.RuneCountInString(s) > f.Length {
				return domain.Feature{}, fmt.Errorf("field %s exceeds %d characters", f.Name, f.Length)
			}
			k = f.Name
		}
		out[k] = v
	}
	return domain.Feature{
		LocalID:    uuid.NewString(),
		Attributes: out,
		Geometry:   p,
	}, nil
}

// AddFeature stages f locally. Nothing is sent until the geodatabase
// applies its edits.
func (t *Table) AddFeature(f domain.Feature) error {
	if !t.CanAdd() {
		return domain.ErrCannotAdd
	}
	if f.LocalID == "" {
		f.LocalID = uuid.NewString()
	}
	t.pending.push(f)
	observability.SetPendingEdits(t.gdb.pendingCount())
	return nil
}

func (t *Table) PendingEdits() int { return t.pending.len() }

// QueryFeatures reads features back from the service.
func (t *Table) QueryFeatures(ctx context.Context, where string) ([]domain.Feature, error) {
	return t.gdb.svc.Query(ctx, t.url, where)
}

func (t *Table) takePending() []domain.Feature { return t.pending.take() }

func (t *Table) requeue(fs []domain.Feature) { t.pending.prepend(fs) }

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
