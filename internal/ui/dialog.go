package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"placemap/internal/domain"
)

var (
	ErrSubmitDisabled = errors.New("name is required")
	ErrDialogClosed   = errors.New("dialog already closed")
)

// PlaceDialog collects name, description and category for a captured point.
// Submit stays disabled while the name is blank.
type PlaceDialog struct {
	location      orb.Point
	name          string
	description   string
	category      domain.Category
	submitEnabled bool
	closed        bool
}

func NewPlaceDialog(at orb.Point) *PlaceDialog {
	return &PlaceDialog{location: at, category: domain.DefaultCategory()}
}

// SetName stores the text as typed; only the enablement looks at the
// trimmed value.
func (d *PlaceDialog) SetName(s string) {
	d.name = s
	d.submitEnabled = strings.TrimSpace(s) != ""
}

func (d *PlaceDialog) SetDescription(s string) { d.description = s }

func (d *PlaceDialog) SetCategory(c domain.Category) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCategory, string(c))
	}
	d.category = c
	return nil
}

func (d *PlaceDialog) Name() string              { return d.name }
func (d *PlaceDialog) Description() string       { return d.description }
func (d *PlaceDialog) Category() domain.Category { return d.category }
func (d *PlaceDialog) Location() orb.Point       { return d.location }
func (d *PlaceDialog) SubmitEnabled() bool       { return d.submitEnabled }
func (d *PlaceDialog) Closed() bool              { return d.closed }

func (d *PlaceDialog) Categories() []domain.Category { return domain.Categories() }

// Submit closes the dialog and returns the record.
func (d *PlaceDialog) Submit() (domain.Place, error) {
	if d.closed {
		return domain.Place{}, ErrDialogClosed
	}
	if !d.submitEnabled {
		return domain.Place{}, ErrSubmitDisabled
	}
	d.closed = true
	return domain.Place{
		Name:        d.name,
		Description: d.description,
		Category:    d.category,
		Location:    d.location,
	}, nil
}

// Cancel closes the dialog without producing a record.
func (d *PlaceDialog) Cancel() { d.closed = true }
