package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
	"github.com/etmur007/rainfall-risk-dashboard/internal/observability"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Store persists a run's assessments after any existing history.
type Store interface {
	Append(ctx context.Context, rows []domain.RiskAssessment) error
}

// Publisher forwards persisted assessments to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, runID string, rows []domain.RiskAssessment) error
}

// Options tunes a Pipeline.
type Options struct {
	// FetchTimeout bounds each location's fetch. Zero means no per-fetch limit.
	FetchTimeout time.Duration
	// Concurrency is the number of locations processed at once; <= 1 is sequential.
	Concurrency int
	// DryRun skips persisting and publishing.
	DryRun     bool
	Publishers []Publisher
}

// Pipeline runs one batch assessment over the catalog.
type Pipeline struct {
	source     domain.RainfallSource
	classifier *domain.Classifier
	store      Store
	logger     *slog.Logger
	metrics    *observability.Metrics
	opts       Options
	ready      atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(source domain.RainfallSource, classifier *domain.Classifier, store Store, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	return &Pipeline{
		source:     source,
		classifier: classifier,
		store:      store,
		logger:     logger,
		metrics:    metrics,
		opts:       opts,
	}
}

// CheckReadiness returns nil once a run has persisted at least one assessment.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Run fetches, aggregates and classifies every location in catalog order,
// then persists the assessments. Per-location failures are recorded in the
// report and never abort the run.
//
// Run returns domain.ErrEmptyRun, with nothing written, when no location
// produced an assessment. A persist error is returned with the report's
// assessments intact.
func (p *Pipeline) Run(ctx context.Context, locations []domain.Location, r domain.DateRange) (Report, error) {
	start := time.Now()
	report := Report{
		RunID:     uuid.NewString(),
		Range:     r,
		Locations: len(locations),
	}
	logger := p.logger.With("run_id", report.RunID)
	logger.Info("run started", "locations", len(locations), "range", r.String(), "concurrency", p.opts.Concurrency)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	defer func() { p.metrics.RunDuration.Observe(time.Since(start).Seconds()) }()

	report.Assessments, report.Failures = p.assessAll(ctx, logger, locations, r)

	if len(report.Assessments) == 0 {
		logger.Warn("run produced no assessments", "failures", len(report.Failures))
		return report, domain.ErrEmptyRun
	}
	if p.opts.DryRun {
		logger.Info("dry run, skipping persist", "assessments", len(report.Assessments))
		return report, nil
	}

	// Completed work is persisted even if the run deadline has passed.
	persistCtx := context.WithoutCancel(ctx)
	if err := p.store.Append(persistCtx, report.Assessments); err != nil {
		p.metrics.HistoryWrites.WithLabelValues("error").Inc()
		logger.Error("persist history failed", "error", err, "assessments", len(report.Assessments))
		return report, fmt.Errorf("persist history: %w", err)
	}
	report.Persisted = true
	p.metrics.HistoryWrites.WithLabelValues("success").Inc()
	p.metrics.LastSuccess.Set(float64(domain.Now().Unix()))
	p.ready.Store(true)

	for _, pub := range p.opts.Publishers {
		if err := pub.Publish(persistCtx, report.RunID, report.Assessments); err != nil {
			p.metrics.PublishErrors.Inc()
			logger.Warn("publish assessments failed", "error", err)
		}
	}

	logger.Info("run finished",
		"outcome", report.Outcome(),
		"assessments", len(report.Assessments),
		"failures", len(report.Failures),
		"duration", time.Since(start),
	)
	return report, nil
}

// result holds one location's outcome; exactly one field is set.
type result struct {
	assessment *domain.RiskAssessment
	failure    *Failure
}

func (p *Pipeline) assessAll(ctx context.Context, logger *slog.Logger, locations []domain.Location, r domain.DateRange) ([]domain.RiskAssessment, []Failure) {
	fetchedAt := domain.Now()
	results := make([]result, len(locations))

	if p.opts.Concurrency <= 1 {
		for i, loc := range locations {
			results[i] = p.assessOne(ctx, logger, loc, r, fetchedAt)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.opts.Concurrency)
		for i, loc := range locations {
			g.Go(func() error {
				results[i] = p.assessOne(ctx, logger, loc, r, fetchedAt)
				return nil
			})
		}
		_ = g.Wait() // assessOne never fails the group
	}

	var (
		assessments []domain.RiskAssessment
		failures    []Failure
	)
	for _, res := range results {
		if res.failure != nil {
			failures = append(failures, *res.failure)
			continue
		}
		assessments = append(assessments, *res.assessment)
	}
	return assessments, failures
}

func (p *Pipeline) assessOne(ctx context.Context, logger *slog.Logger, loc domain.Location, r domain.DateRange, fetchedAt time.Time) result {
	features, err := fetchFeatures(ctx, p.source, p.opts.FetchTimeout, loc, r)
	if err != nil {
		p.metrics.Locations.WithLabelValues("fetch_failed").Inc()
		logger.Warn("fetch failed, skipping location", "twp_id", loc.ID, "name", loc.Name, "error", err)
		return result{failure: &Failure{Location: loc, Stage: StageFetch, Err: err}}
	}

	latest, _ := domain.Latest(features)
	a, err := p.classifier.Classify(ctx, loc, latest, fetchedAt)
	if err != nil {
		p.metrics.Locations.WithLabelValues("classify_failed").Inc()
		logger.Warn("classify failed, skipping location", "twp_id", loc.ID, "name", loc.Name, "error", err)
		return result{failure: &Failure{Location: loc, Stage: StageClassify, Err: err}}
	}

	p.metrics.Locations.WithLabelValues("success").Inc()
	p.metrics.Assessments.WithLabelValues(string(a.RiskLevel)).Inc()
	logger.Debug("location assessed",
		"twp_id", loc.ID,
		"rolling_7d", a.Rolling7d.String(),
		"failure_risk", a.FailureRisk,
		"risk_level", a.RiskLevel,
	)
	return result{assessment: &a}
}

// fetchFeatures fetches one location under its own timeout and aggregates
// the series. Errors are *domain.FetchFailure.
func fetchFeatures(ctx context.Context, source domain.RainfallSource, timeout time.Duration, loc domain.Location, r domain.DateRange) ([]domain.AggregatedFeature, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.FetchFailure{LocationID: loc.ID, Name: loc.Name, Err: err}
	}
	fctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	series, err := source.FetchDaily(fctx, loc, r)
	if err != nil {
		var ff *domain.FetchFailure
		if errors.As(err, &ff) {
			return nil, err
		}
		return nil, &domain.FetchFailure{LocationID: loc.ID, Name: loc.Name, Err: err}
	}
	if len(series) == 0 {
		return nil, &domain.FetchFailure{LocationID: loc.ID, Name: loc.Name, Err: domain.ErrNoData}
	}
	return domain.Aggregate(series), nil
}
