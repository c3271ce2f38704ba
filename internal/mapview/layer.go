package mapview

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"placemap/internal/geodatabase"
)

// FeatureLayer draws a feature table on the map.
type FeatureLayer struct {
	table *geodatabase.Table
}

func NewFeatureLayer(t *geodatabase.Table) *FeatureLayer { return &FeatureLayer{table: t} }

func (l *FeatureLayer) Name() string              { return l.table.Name() }
func (l *FeatureLayer) URL() string               { return l.table.URL() }
func (l *FeatureLayer) Table() *geodatabase.Table { return l.table }

// Features reads the layer's current features from the service as GeoJSON.
func (l *FeatureLayer) Features(ctx context.Context) (*geojson.FeatureCollection, error) {
	fs, err := l.table.QueryFeatures(ctx, "1=1")
	if err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	for _, f := range fs {
		gf := geojson.NewFeature(f.Geometry)
		gf.ID = f.ObjectID
		for k, v := range f.Attributes {
			gf.Properties[k] = v
		}
		fc.Append(gf)
	}
	return fc, nil
}
