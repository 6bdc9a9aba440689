package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the Pushgateway job name for batch runs.
const PushJob = "well_risk_batch"

// Push sends everything in gatherer to the Pushgateway at url, grouped by run id.
// Batch processes exit before a scrape could happen, so they push instead.
func Push(ctx context.Context, url string, gatherer prometheus.Gatherer, runID string) error {
	return push.New(url, PushJob).
		Gatherer(gatherer).
		Grouping("run_id", runID).
		PushContext(ctx)
}
