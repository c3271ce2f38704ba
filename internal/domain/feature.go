package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidCategory = errors.New("invalid category")
	ErrCannotAdd       = errors.New("cannot add a feature to this feature table")
	ErrNotLoaded       = errors.New("feature table not loaded")
	ErrUnknownField    = errors.New("unknown field")
)

// Feature is a point with attributes, either staged locally or read back
// from the service.
type Feature struct {
	LocalID    string // set while the feature is a pending local edit
	ObjectID   int64
	Attributes map[string]any
	Geometry   orb.Point
}

// EditError is the per-feature failure reported by the service.
type EditError struct {
	Code        int
	Description string
}

func (e *EditError) Error() string {
	if e.Code == 0 {
		return e.Description
	}
	return fmt.Sprintf("%s (code %d)", e.Description, e.Code)
}

type FeatureEditResult struct {
	LocalID  string
	ObjectID int64
	GlobalID string
	Err      *EditError
}

func (r FeatureEditResult) CompletedWithErrors() bool { return r.Err != nil }

// TableEditResult groups the results of one applyEdits call per layer.
type TableEditResult struct {
	LayerID int
	Results []FeatureEditResult
}

type Field struct {
	Name     string
	Type     string
	Alias    string
	Editable bool
	Nullable bool
	Length   int
}

// ServiceInfo is the feature service resource: the layers and tables it
// publishes.
type ServiceInfo struct {
	Description  string
	Capabilities []string
	Layers       []LayerRef
	WKID         int
}

type LayerRef struct {
	ID   int
	Name string
}

func (s ServiceInfo) HasLayer(id int) bool {
	for _, l := range s.Layers {
		if l.ID == id {
			return true
		}
	}
	return false
}

// LayerInfo is the subset of layer metadata the application relies on.
type LayerInfo struct {
	ID           int
	Name         string
	Type         string
	GeometryType string
	Capabilities []string
	Fields       []Field
	WKID         int
}

func (l LayerInfo) HasCapability(c string) bool {
	for _, v := range l.Capabilities {
		if strings.EqualFold(v, c) {
			return true
		}
	}
	return false
}

func (l LayerInfo) Field(name string) (Field, bool) {
	for _, f := range l.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Field{}, false
}

// LayerEdits is one entry of a service-level applyEdits request.
type LayerEdits struct {
	LayerID int
	Adds    []Feature
}
