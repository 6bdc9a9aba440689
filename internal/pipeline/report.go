package pipeline

import (
	"fmt"

	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
)

// Stage names where a location failed.
const (
	StageFetch    = "fetch"
	StageClassify = "classify"
)

// Failure records one location excluded from a run.
type Failure struct {
	Location domain.Location
	Stage    string
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", f.Stage, f.Location.Name, f.Location.ID, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Outcome summarizes a run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeEmpty   Outcome = "empty"
)

// Report is the result of one batch run.
type Report struct {
	RunID       string
	Range       domain.DateRange
	Locations   int
	Assessments []domain.RiskAssessment
	Failures    []Failure
	Persisted   bool
}

// Outcome is empty when nothing was assessed, partial when some locations
// failed, and success otherwise.
func (r Report) Outcome() Outcome {
	switch {
	case len(r.Assessments) == 0:
		return OutcomeEmpty
	case len(r.Failures) > 0:
		return OutcomePartial
	default:
		return OutcomeSuccess
	}
}

// TierCounts tallies assessments per risk tier.
func (r Report) TierCounts() map[domain.Tier]int {
	counts := make(map[domain.Tier]int, 3)
	for _, a := range r.Assessments {
		counts[a.RiskLevel]++
	}
	return counts
}

// Summary is the one-line operator summary of the run.
func (r Report) Summary() string {
	tiers := r.TierCounts()
	return fmt.Sprintf("run %s %s: %d of %d locations assessed, %d failed (high=%d medium=%d low=%d) for %s",
		r.RunID, r.Outcome(), len(r.Assessments), r.Locations, len(r.Failures),
		tiers[domain.TierHigh], tiers[domain.TierMedium], tiers[domain.TierLow], r.Range)
}
