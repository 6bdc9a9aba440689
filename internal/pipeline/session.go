package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
	"github.com/etmur007/rainfall-risk-dashboard/internal/observability"
)

// Progress reports one location of an exploration. It is sent once before
// the fetch starts and once after it finishes, with Done set and Err holding
// any failure.
type Progress struct {
	Index    int // 1-based
	Total    int
	Location domain.Location
	Done     bool
	Err      error
}

// ProgressFunc receives exploration progress. It is called from the
// exploring goroutine.
type ProgressFunc func(Progress)

// Exploration is the full working set of an interactive session.
type Exploration struct {
	Range    domain.DateRange
	Series   []domain.LocationSeries
	Latest   []domain.RiskAssessment // empty without a classifier
	Failures []Failure
}

// Find returns the series for a location id.
func (e Exploration) Find(id string) (domain.LocationSeries, bool) {
	for _, s := range e.Series {
		if s.Location.ID == id {
			return s, true
		}
	}
	return domain.LocationSeries{}, false
}

// Session explores an operator-chosen date range, keeping each location's
// full aggregated series.
type Session struct {
	source       domain.RainfallSource
	classifier   *domain.Classifier
	fetchTimeout time.Duration
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewSession creates a session. classifier may be nil to skip risk scoring.
func NewSession(source domain.RainfallSource, classifier *domain.Classifier, fetchTimeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Session {
	return &Session{
		source:       source,
		classifier:   classifier,
		fetchTimeout: fetchTimeout,
		logger:       logger,
		metrics:      metrics,
	}
}

// Explore processes locations sequentially in catalog order. Failures are
// recorded and skipped; partial results are returned with a nil error.
// When no location yields a series the exploration is returned with
// domain.ErrEmptyRun.
func (s *Session) Explore(ctx context.Context, locations []domain.Location, r domain.DateRange, progress ProgressFunc) (Exploration, error) {
	if progress == nil {
		progress = func(Progress) {}
	}
	fetchedAt := domain.Now()
	ex := Exploration{Range: r}

	for i, loc := range locations {
		p := Progress{Index: i + 1, Total: len(locations), Location: loc}
		progress(p)

		features, err := fetchFeatures(ctx, s.source, s.fetchTimeout, loc, r)
		if err != nil {
			s.metrics.Locations.WithLabelValues("fetch_failed").Inc()
			s.logger.Warn("fetch failed, skipping location", "twp_id", loc.ID, "name", loc.Name, "error", err)
			ex.Failures = append(ex.Failures, Failure{Location: loc, Stage: StageFetch, Err: err})
			p.Done, p.Err = true, err
			progress(p)
			continue
		}
		ex.Series = append(ex.Series, domain.LocationSeries{Location: loc, Features: features})

		if s.classifier != nil {
			latest, _ := domain.Latest(features)
			a, err := s.classifier.Classify(ctx, loc, latest, fetchedAt)
			if err != nil {
				s.metrics.Locations.WithLabelValues("classify_failed").Inc()
				s.logger.Warn("classify failed", "twp_id", loc.ID, "name", loc.Name, "error", err)
				ex.Failures = append(ex.Failures, Failure{Location: loc, Stage: StageClassify, Err: err})
				p.Err = err
			} else {
				s.metrics.Assessments.WithLabelValues(string(a.RiskLevel)).Inc()
				ex.Latest = append(ex.Latest, a)
			}
		}
		if p.Err == nil {
			s.metrics.Locations.WithLabelValues("success").Inc()
		}
		p.Done = true
		progress(p)
	}

	if len(ex.Series) == 0 {
		return ex, domain.ErrEmptyRun
	}
	return ex, nil
}
