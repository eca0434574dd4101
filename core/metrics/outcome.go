package metrics

import (
	"errors"

	"github.com/kilianp07/harvestplan/core/state"
	"github.com/kilianp07/harvestplan/core/timeline"
)

// Outcome classifies a decode error for reports.
func Outcome(err error) (outcome, reason string) {
	if err == nil {
		return "ok", ""
	}
	if r, ok := state.ReasonOf(err); ok {
		return "infeasible", r.String()
	}
	var se *timeline.StructuralError
	if errors.As(err, &se) {
		return "structural", se.Detail
	}
	return "error", err.Error()
}
