package domain

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// Category is the closed set of place kinds the hosted layer accepts.
type Category string

const (
	CategoryCafe   Category = "Cafe"
	CategoryPark   Category = "Park"
	CategoryNature Category = "Nature"
	CategoryWater  Category = "Water"
	CategoryUrban  Category = "Urban"
	CategoryOther  Category = "Other"
)

var categories = []Category{
	CategoryCafe,
	CategoryPark,
	CategoryNature,
	CategoryWater,
	CategoryUrban,
	CategoryOther,
}

// Categories returns every category in display order. The first one is the
// dialog default.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// DefaultCategory is the category a fresh dialog starts with.
func DefaultCategory() Category { return categories[0] }

func (c Category) Valid() bool {
	for _, k := range categories {
		if k == c {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }

// ParseCategory matches s case-insensitively and returns the canonical spelling.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, k := range categories {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Attribute names of the hosted layer.
const (
	FieldName        = "Name"
	FieldDescription = "Description"
	FieldCategory    = "Category"
)

// Place is a user-entered record. It only lives until it has been handed to
// the feature table.
type Place struct {
	Name        string
	Description string
	Category    Category
	Location    orb.Point // lon, lat
}

func (p Place) Attributes() map[string]any {
	return map[string]any{
		FieldName:        p.Name,
		FieldDescription: p.Description,
		FieldCategory:    p.Category.String(),
	}
}
