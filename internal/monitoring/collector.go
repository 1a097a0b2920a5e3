// Package monitoring watches extraction runs: a collector summarizes
// recent run history from the store, an alerter compares the summary
// with configured thresholds and posts breaches to a webhook, and a
// checker runs that loop on a ticker.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	RunFailRate  float64 `json:"run_fail_rate"`

	// Document and record totals across the window's runs.
	DocsProcessed     int `json:"docs_processed"`
	DocsIgnored       int `json:"docs_ignored"`
	DocsFailed        int `json:"docs_failed"`
	RecordsKept       int `json:"records_kept"`
	RecordsSuperseded int `json:"records_superseded"`

	// Assist tier spend.
	AssistCalls   int     `json:"assist_calls"`
	AssistCostUSD float64 `json:"assist_cost_usd"`

	// DLQ depth (current, not windowed).
	DLQDepth int `json:"dlq_depth"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		Since: cutoff,
		Limit: 10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
		if r.Counts == nil {
			continue
		}
		snap.DocsProcessed += r.Counts.DocsTotal
		snap.DocsIgnored += r.Counts.DocsIgnored
		snap.DocsFailed += r.Counts.DocsFailed
		snap.RecordsKept += r.Counts.RecordsKept
		snap.RecordsSuperseded += r.Counts.RecordsSuperseded
		snap.AssistCalls += r.Counts.AssistCalls
		snap.AssistCostUSD += r.Counts.AssistCostUSD
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}

	depth, err := c.store.CountDLQ(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count dlq")
	}
	snap.DLQDepth = depth

	return snap, nil
}
