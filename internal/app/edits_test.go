package app_test

import (
	"errors"
	"fmt"
	"testing"

	"placemap/internal/app"
	"placemap/internal/domain"
)

// tokenError classifies itself as unauthorized, like the service's error
// envelope does.
type tokenError struct{}

func (tokenError) Error() string { return "Invalid token." }
func (tokenError) Unwrap() error { return domain.ErrUnauthorized }

func TestInterpretEditResults(t *testing.T) {
	ok := domain.FeatureEditResult{ObjectID: 1}
	bad := func(msg string) domain.FeatureEditResult {
		return domain.FeatureEditResult{ObjectID: -1, Err: &domain.EditError{Code: 1000, Description: msg}}
	}

	tests := []struct {
		name    string
		results []domain.TableEditResult
		err     error
		title   string
		message string
		status  string
		show    bool
		ignored int
	}{
		{"Success", []domain.TableEditResult{{Results: []domain.FeatureEditResult{ok}}}, nil,
			"", app.MsgSuccess, "success", true, 0},
		{"First Fails", []domain.TableEditResult{{Results: []domain.FeatureEditResult{bad("Invalid geometry")}}}, nil,
			app.TitleEditRejected, "Invalid geometry", "failed", true, 0},
		{"Later Failure Ignored", []domain.TableEditResult{
			{Results: []domain.FeatureEditResult{ok, bad("second")}},
			{LayerID: 1, Results: []domain.FeatureEditResult{bad("other table")}},
		}, nil, "", app.MsgSuccess, "success", true, 2},
		{"Empty Batch", nil, nil, "", "", "empty", false, 0},
		{"Table Without Results", []domain.TableEditResult{{}}, nil, "", "", "empty", false, 0},
		{"Transport Error", nil, fmt.Errorf("apply edits: %w", errors.New("i/o timeout")),
			app.TitleApplyEditsFailed, "i/o timeout", "error", true, 0},
		{"Token Rejected", nil, fmt.Errorf("apply edits: %w", tokenError{}),
			app.TitleApplyEditsFailed, "Invalid token.", "error", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := app.InterpretEditResults(tt.results, tt.err)
			if out.Title != tt.title || out.Message != tt.message || out.Status != tt.status || out.Show != tt.show {
				t.Fatalf("InterpretEditResults() = %+v", out)
			}
			if len(out.Ignored) != tt.ignored {
				t.Fatalf("expected %d ignored failures, got %d", tt.ignored, len(out.Ignored))
			}
		})
	}
}
