// Package model provides domain.Predictor implementations for the well
// failure classifier.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Feature is the single input column the classifier was trained on.
const Feature = "rolling_7d"

// Logistic is a binary logistic regression exported from the trained
// classifier. PredictFailure returns the probability of the positive class.
type Logistic struct {
	Feature      string    `json:"feature"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// LoadLogistic reads a model artifact from path.
func LoadLogistic(path string) (*Logistic, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	m, err := ParseLogistic(f)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return m, nil
}

// ParseLogistic decodes and validates a model artifact.
func ParseLogistic(r io.Reader) (*Logistic, error) {
	var m Logistic
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Logistic) validate() error {
	if m.Feature != Feature {
		return fmt.Errorf("model feature %q, want %q", m.Feature, Feature)
	}
	if len(m.Coefficients) != 1 {
		return fmt.Errorf("model has %d coefficients, want 1", len(m.Coefficients))
	}
	if !finite(m.Coefficients[0]) || !finite(m.Intercept) {
		return errors.New("model parameters must be finite")
	}
	return nil
}

func (m *Logistic) PredictFailure(_ context.Context, rolling7d float64) (float64, error) {
	if !finite(rolling7d) {
		return 0, fmt.Errorf("feature %s is not finite: %v", Feature, rolling7d)
	}
	z := m.Intercept + m.Coefficients[0]*rolling7d
	return 1 / (1 + math.Exp(-z)), nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
