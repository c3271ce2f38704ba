package arcgis

import (
	"encoding/json"
	"fmt"
	"strings"

	"placemap/internal/domain"
	"placemap/internal/geometry"
)

// ServiceError is the {"error":{...}} envelope ArcGIS returns, usually with
// HTTP 200.
type ServiceError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func (e *ServiceError) Error() string {
	msg := e.Message
	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}
	return fmt.Sprintf("arcgis error %d: %s", e.Code, msg)
}

// Unwrap lets callers match token problems with errors.Is(err, domain.ErrUnauthorized).
func (e *ServiceError) Unwrap() error {
	switch e.Code {
	case 401, 403, 498, 499:
		return domain.ErrUnauthorized
	case 404:
		return domain.ErrNotFound
	}
	return nil
}

type errorEnvelope struct {
	Error *ServiceError `json:"error"`
}

// serviceJSON is the service resource (GET {serviceURL}?f=json).
type serviceJSON struct {
	ServiceDescription string                     `json:"serviceDescription"`
	Capabilities       string                     `json:"capabilities"`
	SpatialReference   *geometry.SpatialReference `json:"spatialReference"`
	Layers             []layerRefJSON             `json:"layers"`
	Tables             []layerRefJSON             `json:"tables"`
}

type layerRefJSON struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (s serviceJSON) toDomain() domain.ServiceInfo {
	info := domain.ServiceInfo{
		Description:  s.ServiceDescription,
		Capabilities: splitCapabilities(s.Capabilities),
		WKID:         wkid(s.SpatialReference),
	}
	for _, l := range append(s.Layers, s.Tables...) {
		info.Layers = append(info.Layers, domain.LayerRef{ID: l.ID, Name: l.Name})
	}
	return info
}

func splitCapabilities(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// wkid prefers the latest well-known id.
func wkid(sr *geometry.SpatialReference) int {
	if sr == nil {
		return 0
	}
	if sr.LatestWKID != 0 {
		return sr.LatestWKID
	}
	return sr.WKID
}

// layerJSON is the layer resource (GET {layerURL}?f=json).
type layerJSON struct {
	ID           int         `json:"id"`
	Name         string      `json:"name"`
	Type         string      `json:"type"`
	GeometryType string      `json:"geometryType"`
	Capabilities string      `json:"capabilities"`
	Fields       []fieldJSON `json:"fields"`
	Extent       *struct {
		SpatialReference *geometry.SpatialReference `json:"spatialReference"`
	} `json:"extent"`
}

type fieldJSON struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Alias    string `json:"alias"`
	Editable *bool  `json:"editable"`
	Nullable *bool  `json:"nullable"`
	Length   int    `json:"length"`
}

func (l layerJSON) toDomain() domain.LayerInfo {
	info := domain.LayerInfo{
		ID:           l.ID,
		Name:         l.Name,
		Type:         l.Type,
		GeometryType: l.GeometryType,
		Capabilities: splitCapabilities(l.Capabilities),
	}
	for _, f := range l.Fields {
		info.Fields = append(info.Fields, domain.Field{
			Name:     f.Name,
			Type:     f.Type,
			Alias:    f.Alias,
			Editable: f.Editable == nil || *f.Editable,
			Nullable: f.Nullable == nil || *f.Nullable,
			Length:   f.Length,
		})
	}
	if l.Extent != nil {
		info.WKID = wkid(l.Extent.SpatialReference)
	}
	return info
}

type featureJSON struct {
	Attributes map[string]any      `json:"attributes"`
	Geometry   *geometry.EsriPoint `json:"geometry,omitempty"`
}

// queryResponse is the body of GET {layerURL}/query.
type queryResponse struct {
	Features              []featureJSON `json:"features"`
	ExceededTransferLimit bool          `json:"exceededTransferLimit"`
}

type layerEditsJSON struct {
	ID   int           `json:"id"`
	Adds []featureJSON `json:"adds,omitempty"`
}

type editResultJSON struct {
	ObjectID int64  `json:"objectId"`
	GlobalID string `json:"globalId"`
	Success  bool   `json:"success"`
	Error    *struct {
		Code        int    `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

type layerEditResultJSON struct {
	ID            int              `json:"id"`
	AddResults    []editResultJSON `json:"addResults"`
	UpdateResults []editResultJSON `json:"updateResults"`
	DeleteResults []editResultJSON `json:"deleteResults"`
}

func (r editResultJSON) toDomain(localID string) domain.FeatureEditResult {
	out := domain.FeatureEditResult{LocalID: localID, ObjectID: r.ObjectID, GlobalID: r.GlobalID}
	switch {
	case r.Error != nil:
		out.Err = &domain.EditError{Code: r.Error.Code, Description: r.Error.Description}
	case !r.Success:
		out.Err = &domain.EditError{Description: "edit was not applied"}
	}
	return out
}

// attrInt64 reads OBJECTID-like attributes, which decode as json.Number.
func attrInt64(v any) int64 {
	switch n := v.(type) {
	case json.Number:
		i, _ := n.Int64()
		return i
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}
