package domain

import "context"

// FeatureService is the remote hosted feature service.
type FeatureService interface {
	ServiceInfo(ctx context.Context, serviceURL string) (ServiceInfo, error)
	LayerInfo(ctx context.Context, layerURL string) (LayerInfo, error)
	ApplyEdits(ctx context.Context, serviceURL string, edits []LayerEdits) ([]TableEditResult, error)
	Query(ctx context.Context, layerURL, where string) ([]Feature, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Presenter shows a blocking informational dialog. It is only ever called
// on the UI loop.
type Presenter interface {
	Alert(title, message string)
}
