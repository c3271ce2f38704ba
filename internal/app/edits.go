package app

import (
	"errors"

	"placemap/internal/domain"
)

// Outcome is what the user is told about one applyEdits round trip.
type Outcome struct {
	Title   string
	Message string
	Status  string // success|failed|error|empty
	Show    bool

	// Ignored holds failed results other than the first one; they are
	// logged but never shown.
	Ignored []domain.FeatureEditResult
}

// InterpretEditResults decides what to show after edits were pushed. Only
// the first feature result of the first table is reported: a submission
// adds exactly one feature, so that is the one the user is waiting for.
func InterpretEditResults(results []domain.TableEditResult, err error) Outcome {
	if err != nil {
		return Outcome{
			Title:   TitleApplyEditsFailed,
			Message: rootCause(err).Error(),
			Status:  "error",
			Show:    true,
		}
	}
	if len(results) == 0 || len(results[0].Results) == 0 {
		return Outcome{Status: "empty"}
	}

	var out Outcome
	for ti, tr := range results {
		for fi, r := range tr.Results {
			if (ti != 0 || fi != 0) && r.CompletedWithErrors() {
				out.Ignored = append(out.Ignored, r)
			}
		}
	}

	first := results[0].Results[0]
	if !first.CompletedWithErrors() {
		out.Message, out.Status, out.Show = MsgSuccess, "success", true
		return out
	}
	out.Title, out.Message, out.Status, out.Show = TitleEditRejected, first.Err.Description, "failed", true
	return out
}

// rootCause returns the innermost wrapped error that still carries a
// message from the failure itself. Domain sentinels only classify it.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil || next == domain.ErrUnauthorized || next == domain.ErrNotFound {
			return err
		}
		err = next
	}
}
