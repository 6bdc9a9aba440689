package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
	"github.com/etmur007/rainfall-risk-dashboard/internal/observability"
	"github.com/etmur007/rainfall-risk-dashboard/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

// fakeSource serves fixed series per location id; unknown ids return an empty response.
type fakeSource struct {
	mu     sync.Mutex
	series map[string][]domain.DailyObservation
	errs   map[string]error
	delay  time.Duration
	calls  []string
}

func (f *fakeSource) FetchDaily(ctx context.Context, loc domain.Location, _ domain.DateRange) ([]domain.DailyObservation, error) {
	f.mu.Lock()
	f.calls = append(f.calls, loc.ID)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[loc.ID]; err != nil {
		return nil, err
	}
	return f.series[loc.ID], nil
}

type memoryStore struct {
	rows  []domain.RiskAssessment
	calls int
	err   error
}

func (m *memoryStore) Append(_ context.Context, rows []domain.RiskAssessment) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, rows...)
	return nil
}

type recordingPublisher struct {
	runID string
	rows  []domain.RiskAssessment
	err   error
}

func (r *recordingPublisher) Publish(_ context.Context, runID string, rows []domain.RiskAssessment) error {
	r.runID = runID
	r.rows = rows
	return r.err
}

// linearRisk maps the rolling sum to a probability: 10mm -> 0.8.
func linearRisk(x float64) float64 { return min(x*0.08, 1) }

var linearPredictor = domain.PredictorFunc(func(_ context.Context, x float64) (float64, error) {
	return linearRisk(x), nil
})

var asOf = time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

func setFakeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(asOf))
	t.Cleanup(func() { domain.SetClock(clockwork.NewRealClock()) })
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dailySeries(id string, start time.Time, values ...float64) []domain.DailyObservation {
	out := make([]domain.DailyObservation, len(values))
	for i, v := range values {
		out[i] = domain.DailyObservation{LocationID: id, Date: start.AddDate(0, 0, i), Rainfall: domain.Millimetres(v)}
	}
	return out
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1.0
	}
	return out
}

var (
	wellA = domain.Location{ID: "TWP-001", Name: "Chongwe Well", Geo: domain.Geo{Lon: 28.27, Lat: -15.41}}
	wellB = domain.Location{ID: "TWP-002", Name: "Kafue Well", Geo: domain.Geo{Lon: 27.9, Lat: -15.77}}
	wellC = domain.Location{ID: "TWP-003", Name: "Mumbwa Well", Geo: domain.Geo{Lon: 27.06, Lat: -14.98}}

	runRange = domain.DateRange{
		Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}
)

func newPipeline(src domain.RainfallSource, store pipeline.Store, opts pipeline.Options) (*pipeline.Pipeline, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	return pipeline.New(src, domain.NewClassifier(linearPredictor), store, discardLogger(), metrics, opts), metrics
}

// --- tests ---

func TestPipeline_Run_OneSuccessOneEmpty(t *testing.T) {
	setFakeClock(t)
	src := &fakeSource{series: map[string][]domain.DailyObservation{
		wellA.ID: dailySeries(wellA.ID, runRange.Start, ones(10)...),
	}}
	store := &memoryStore{}
	p, metrics := newPipeline(src, store, pipeline.Options{})

	report, err := p.Run(context.Background(), []domain.Location{wellA, wellB}, runRange)
	require.NoError(t, err)

	want := []domain.RiskAssessment{{
		LocationID:  wellA.ID,
		Name:        wellA.Name,
		Geo:         wellA.Geo,
		Date:        time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Rolling7d:   domain.Millimetres(7),
		FailureRisk: linearRisk(7),
		RiskLevel:   domain.TierMedium,
		FetchedAt:   time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
	}}
	if diff := cmp.Diff(want, store.rows); diff != "" {
		t.Errorf("persisted rows mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, store.rows, report.Assessments)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, wellB.ID, report.Failures[0].Location.ID)
	assert.Equal(t, pipeline.StageFetch, report.Failures[0].Stage)
	assert.ErrorIs(t, report.Failures[0].Err, domain.ErrNoData)
	var ff *domain.FetchFailure
	require.ErrorAs(t, report.Failures[0].Err, &ff)
	assert.Equal(t, "Kafue Well", ff.Name)

	assert.Equal(t, pipeline.OutcomePartial, report.Outcome())
	assert.True(t, report.Persisted)
	assert.NotEmpty(t, report.RunID)
	assert.NoError(t, p.CheckReadiness(context.Background()))

	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.Locations.WithLabelValues("success")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.Locations.WithLabelValues("fetch_failed")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.Assessments.WithLabelValues("Medium")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.HistoryWrites.WithLabelValues("success")), 0)
	assert.InDelta(t, float64(asOf.Unix()), testutil.ToFloat64(metrics.LastSuccess), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_EmptyCatalog(t *testing.T) {
	store := &memoryStore{}
	p, _ := newPipeline(&fakeSource{}, store, pipeline.Options{})

	report, err := p.Run(context.Background(), nil, runRange)
	require.ErrorIs(t, err, domain.ErrEmptyRun)
	assert.Equal(t, pipeline.OutcomeEmpty, report.Outcome())
	assert.Zero(t, store.calls, "empty run writes nothing")
	assert.False(t, report.Persisted)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_AllFail(t *testing.T) {
	src := &fakeSource{errs: map[string]error{
		wellA.ID: errors.New("quota exceeded"),
		wellB.ID: errors.New("quota exceeded"),
	}}
	store := &memoryStore{}
	p, _ := newPipeline(src, store, pipeline.Options{})

	report, err := p.Run(context.Background(), []domain.Location{wellA, wellB}, runRange)
	require.ErrorIs(t, err, domain.ErrEmptyRun)
	assert.Len(t, report.Failures, 2)
	assert.Zero(t, store.calls)
}

func TestPipeline_Run_FailureDoesNotAbort(t *testing.T) {
	setFakeClock(t)
	src := &fakeSource{
		series: map[string][]domain.DailyObservation{
			wellA.ID: dailySeries(wellA.ID, runRange.Start, ones(10)...),
			wellC.ID: dailySeries(wellC.ID, runRange.Start, ones(10)...),
		},
		errs: map[string]error{wellB.ID: errors.New("connection reset")},
	}
	store := &memoryStore{}
	p, _ := newPipeline(src, store, pipeline.Options{})

	report, err := p.Run(context.Background(), []domain.Location{wellA, wellB, wellC}, runRange)
	require.NoError(t, err)
	assert.Equal(t, []string{wellA.ID, wellB.ID, wellC.ID}, src.calls, "every location is attempted in catalog order")
	require.Len(t, store.rows, 2)
	assert.Equal(t, wellA.ID, store.rows[0].LocationID)
	assert.Equal(t, wellC.ID, store.rows[1].LocationID)
	assert.Contains(t, report.Failures[0].Err.Error(), "connection reset")
}

func TestPipeline_Run_ShortSeriesHasMissingRolling(t *testing.T) {
	src := &fakeSource{series: map[string][]domain.DailyObservation{
		wellA.ID: dailySeries(wellA.ID, runRange.Start, 5, 5, 5),
	}}
	store := &memoryStore{}
	p, _ := newPipeline(src, store, pipeline.Options{})

	_, err := p.Run(context.Background(), []domain.Location{wellA}, runRange)
	require.NoError(t, err)
	require.Len(t, store.rows, 1)
	assert.False(t, store.rows[0].Rolling7d.Valid, "missing rolling sum is kept missing")
	assert.InDelta(t, 0.0, store.rows[0].FailureRisk, 0, "classifier sees 0 for a missing sum")
	assert.Equal(t, domain.TierLow, store.rows[0].RiskLevel)
}

func TestPipeline_Run_ClassifyFailure(t *testing.T) {
	src := &fakeSource{series: map[string][]domain.DailyObservation{
		wellA.ID: dailySeries(wellA.ID, runRange.Start, ones(10)...),
	}}
	broken := domain.PredictorFunc(func(context.Context, float64) (float64, error) { return 1.5, nil })
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(src, domain.NewClassifier(broken), &memoryStore{}, discardLogger(), metrics, pipeline.Options{})

	report, err := p.Run(context.Background(), []domain.Location{wellA}, runRange)
	require.ErrorIs(t, err, domain.ErrEmptyRun)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, pipeline.StageClassify, report.Failures[0].Stage)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.Locations.WithLabelValues("classify_failed")), 0)
}

func TestPipeline_Run_PersistErrorKeepsAssessments(t *testing.T) {
	src := &fakeSource{series: map[string][]domain.DailyObservation{
		wellA.ID: dailySeries(wellA.ID, runRange.Start, ones(10)...),
	}}
	incompatible := &domain.IncompatibleHistoryError{Path: "risk_history.csv"}
	store := &memoryStore{err: incompatible}
	pub := &recordingPublisher{}
	p, metrics := newPipeline(src, store, pipeline.Options{Publishers: []pipeline.Publisher{pub}})

	report, err := p.Run(context.Background(), []domain.Location{wellA}, runRange)
	require.Error(t, err)
	assert.ErrorAs(t, err, &incompatible)
	assert.Len(t, report.Assessments, 1, "computed results survive a persist failure")
	assert.False(t, report.Persisted)
	assert.Nil(t, pub.rows, "nothing is published when persist fails")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.HistoryWrites.WithLabelValues("error")), 0)
}

func TestPipeline_Run_PublishesAfterPersist(t *testing.T) {
	src := &fakeSource{series: map[string][]domain.DailyObservation{
		wellA.ID: dailySeries(wellA.ID, runRange.Start, ones(10)...),
	}}
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: errors.New("broker unavailable")}
	p, metrics := newPipeline(src, &memoryStore{}, pipeline.Options{Publishers: []pipeline.Publisher{failing, ok}})

	report, err := p.Run(context.Background(), []domain.Location{wellA}, runRange)
	require.NoError(t, err, "publish failures are not fatal")
	assert.Equal(t, report.RunID, ok.runID)
	assert.Len(t, ok.rows, 1)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.PublishErrors), 0)
}

func TestPipeline_Run_DryRun(t *testing.T) {
	src := &fakeSource{series: map[string][]domain.DailyObservation{
		wellA.ID: dailySeries(wellA.ID, runRange.Start, ones(10)...),
	}}
	store := &memoryStore{}
	p, _ := newPipeline(src, store, pipeline.Options{DryRun: true})

	report, err := p.Run(context.Background(), []domain.Location{wellA}, runRange)
	require.NoError(t, err)
	assert.Len(t, report.Assessments, 1)
	assert.Zero(t, store.calls)
	assert.False(t, report.Persisted)
}

func TestPipeline_Run_FetchTimeout(t *testing.T) {
	src := &fakeSource{
		series: map[string][]domain.DailyObservation{wellA.ID: dailySeries(wellA.ID, runRange.Start, ones(10)...)},
		delay:  time.Second,
	}
	p, _ := newPipeline(src, &memoryStore{}, pipeline.Options{FetchTimeout: 10 * time.Millisecond})

	report, err := p.Run(context.Background(), []domain.Location{wellA}, runRange)
	require.ErrorIs(t, err, domain.ErrEmptyRun)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, context.DeadlineExceeded)
}

func TestPipeline_Run_CanceledRunSkipsRemaining(t *testing.T) {
	src := &fakeSource{series: map[string][]domain.DailyObservation{
		wellA.ID: dailySeries(wellA.ID, runRange.Start, ones(10)...),
	}}
	p, _ := newPipeline(src, &memoryStore{}, pipeline.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := p.Run(ctx, []domain.Location{wellA, wellB}, runRange)
	require.ErrorIs(t, err, domain.ErrEmptyRun)
	assert.Empty(t, src.calls, "no fetch is issued after the run deadline")
	require.Len(t, report.Failures, 2)
	assert.ErrorIs(t, report.Failures[1].Err, context.Canceled)
}

func TestPipeline_Run_ConcurrentKeepsCatalogOrder(t *testing.T) {
	locations := []domain.Location{wellA, wellB, wellC}
	src := &fakeSource{series: map[string][]domain.DailyObservation{}, delay: 5 * time.Millisecond}
	for _, loc := range locations {
		src.series[loc.ID] = dailySeries(loc.ID, runRange.Start, ones(10)...)
	}
	store := &memoryStore{}
	p, _ := newPipeline(src, store, pipeline.Options{Concurrency: 3})

	report, err := p.Run(context.Background(), locations, runRange)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeSuccess, report.Outcome())
	require.Len(t, store.rows, 3)
	for i, loc := range locations {
		assert.Equal(t, loc.ID, store.rows[i].LocationID)
	}
	assert.ElementsMatch(t, []string{wellA.ID, wellB.ID, wellC.ID}, src.calls)
}

func TestReport_Summary(t *testing.T) {
	report := pipeline.Report{
		RunID:     "run-1",
		Range:     runRange,
		Locations: 3,
		Assessments: []domain.RiskAssessment{
			{RiskLevel: domain.TierHigh},
			{RiskLevel: domain.TierLow},
		},
		Failures: []pipeline.Failure{{Location: wellC, Stage: pipeline.StageFetch, Err: domain.ErrNoData}},
	}
	assert.Equal(t,
		"run run-1 partial: 2 of 3 locations assessed, 1 failed (high=1 medium=0 low=1) for 2024-03-01..2024-03-10",
		report.Summary())
	assert.Equal(t, map[domain.Tier]int{domain.TierHigh: 1, domain.TierLow: 1}, report.TierCounts())
}

func TestFailure_Error(t *testing.T) {
	f := pipeline.Failure{Location: wellB, Stage: pipeline.StageFetch, Err: domain.ErrNoData}
	assert.Equal(t, "fetch Kafue Well (TWP-002): no rainfall data returned", f.Error())
	assert.ErrorIs(t, f, domain.ErrNoData)
}
