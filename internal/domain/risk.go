package domain

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Tier is a discrete failure-risk classification.
type Tier string

const (
	TierLow    Tier = "Low"
	TierMedium Tier = "Medium"
	TierHigh   Tier = "High"
)

// Tier thresholds, inclusive at the lower bound.
const (
	HighRiskThreshold   = 0.75
	MediumRiskThreshold = 0.5
)

// TierFor maps a failure probability to its tier.
func TierFor(p float64) Tier {
	switch {
	case p >= HighRiskThreshold:
		return TierHigh
	case p >= MediumRiskThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// ParseTier accepts the tier labels written to history.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(s); t {
	case TierLow, TierMedium, TierHigh:
		return t, nil
	default:
		return "", fmt.Errorf("unknown risk tier %q", s)
	}
}

// Predictor returns the probability of the failure class for one rolling
// rainfall feature.
type Predictor interface {
	PredictFailure(ctx context.Context, rolling7d float64) (float64, error)
}

// PredictorFunc adapts a function to the Predictor interface.
type PredictorFunc func(ctx context.Context, rolling7d float64) (float64, error)

func (f PredictorFunc) PredictFailure(ctx context.Context, rolling7d float64) (float64, error) {
	return f(ctx, rolling7d)
}

// RiskAssessment is the classified outcome for one location in one run.
type RiskAssessment struct {
	LocationID  string    `json:"twp_id"`
	Name        string    `json:"name"`
	Geo         Geo       `json:"geo"`
	Date        time.Time `json:"date"`
	Rolling7d   Amount    `json:"rolling_7d"`
	FailureRisk float64   `json:"failure_risk"`
	RiskLevel   Tier      `json:"risk_level"`
	FetchedAt   time.Time `json:"date_fetched"`
}

// Classifier turns aggregated features into risk assessments.
type Classifier struct {
	predictor Predictor
}

// NewClassifier wraps a predictor.
func NewClassifier(p Predictor) *Classifier {
	return &Classifier{predictor: p}
}

// Classify scores one feature. A missing rolling sum is passed to the predictor
// as 0 but is recorded as missing on the assessment.
func (c *Classifier) Classify(ctx context.Context, loc Location, feature AggregatedFeature, fetchedAt time.Time) (RiskAssessment, error) {
	p, err := c.predictor.PredictFailure(ctx, feature.Rolling7d.OrZero())
	if err != nil {
		return RiskAssessment{}, fmt.Errorf("predict failure risk: %w", err)
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return RiskAssessment{}, fmt.Errorf("predict failure risk: probability %v outside [0,1]", p)
	}

	return RiskAssessment{
		LocationID:  loc.ID,
		Name:        loc.Name,
		Geo:         loc.Geo,
		Date:        feature.Date,
		Rolling7d:   feature.Rolling7d,
		FailureRisk: p,
		RiskLevel:   TierFor(p),
		FetchedAt:   TruncateDay(fetchedAt),
	}, nil
}
