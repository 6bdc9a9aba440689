// Package history persists risk assessments and exports observation series.
package history

import (
	"fmt"
	"strconv"
	"time"

	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
)

// Columns is the history column set, in file order.
var Columns = []string{
	"twp_id",
	"name",
	"lon",
	"lat",
	"date",
	"rolling_7d",
	"failure_risk",
	"risk_level",
	"date_fetched",
}

// RecordError reports a history row that could not be decoded.
type RecordError struct {
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("history line %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func encode(a domain.RiskAssessment) []string {
	return []string{
		a.LocationID,
		a.Name,
		formatFloat(a.Geo.Lon),
		formatFloat(a.Geo.Lat),
		a.Date.Format(domain.DateFormat),
		a.Rolling7d.String(),
		formatFloat(a.FailureRisk),
		string(a.RiskLevel),
		a.FetchedAt.Format(domain.DateFormat),
	}
}

func decode(rec []string) (domain.RiskAssessment, error) {
	if len(rec) != len(Columns) {
		return domain.RiskAssessment{}, fmt.Errorf("expected %d fields, got %d", len(Columns), len(rec))
	}
	lon, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("lon: %w", err)
	}
	lat, err := strconv.ParseFloat(rec[3], 64)
	if err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("lat: %w", err)
	}
	date, err := time.ParseInLocation(domain.DateFormat, rec[4], time.UTC)
	if err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("date: %w", err)
	}
	risk, err := strconv.ParseFloat(rec[6], 64)
	if err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("failure_risk: %w", err)
	}
	tier, err := domain.ParseTier(rec[7])
	if err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("risk_level: %w", err)
	}
	fetched, err := time.ParseInLocation(domain.DateFormat, rec[8], time.UTC)
	if err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("date_fetched: %w", err)
	}

	return domain.RiskAssessment{
		LocationID:  rec[0],
		Name:        rec[1],
		Geo:         domain.Geo{Lon: lon, Lat: lat},
		Date:        date,
		Rolling7d:   domain.ParseAmount(rec[5]),
		FailureRisk: risk,
		RiskLevel:   tier,
		FetchedAt:   fetched,
	}, nil
}
