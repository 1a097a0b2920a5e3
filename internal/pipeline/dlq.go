package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/enerdoc/facture-cli/internal/dedup"
	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/resilience"
	"github.com/enerdoc/facture-cli/internal/store"
)

// RetryReport summarizes one dead letter sweep.
type RetryReport struct {
	Attempted int
	Recovered int
	Requeued  int
	Exhausted int
	Records   []store.StoredRecord
}

// RetryDLQ reprocesses dead-lettered documents that are due for another
// attempt. Recovered records go through dedup and persist under a fresh
// run; entries that fail again get their retry slot pushed back, and
// entries out of retries stay parked.
func (p *Pipeline) RetryDLQ(ctx context.Context) (*RetryReport, error) {
	log := zap.L()
	entries, err := p.store.DequeueDLQ(ctx, resilience.DLQFilter{ErrorType: "transient"})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: dequeue dlq")
	}

	report := &RetryReport{}
	now := time.Now()
	index := dedup.NewIndex()
	var recoveredIDs []string

	for _, entry := range entries {
		if entry.NextRetryAt.After(now) {
			continue
		}
		if !entry.CanRetry() {
			report.Exhausted++
			continue
		}
		report.Attempted++

		res, docErr := p.ProcessDocument(ctx, entry.SourceFile)
		if docErr != nil {
			report.Requeued++
			backoff := time.Duration(entry.RetryCount+1) * 5 * time.Minute
			if incErr := p.store.IncrementDLQRetry(ctx, entry.ID, now.Add(backoff), docErr.Error()); incErr != nil {
				log.Warn("pipeline: increment dlq retry", zap.String("id", entry.ID), zap.Error(incErr))
			}
			continue
		}

		report.Recovered++
		recoveredIDs = append(recoveredIDs, entry.ID)
		if !res.Ignored {
			index.Upsert(res.Record, res.Journal, res.Effective)
		}
	}

	if kept, superseded := index.Counts(); kept+superseded > 0 {
		run, runErr := p.store.CreateRun(ctx, "dlq-retry")
		if runErr != nil {
			return report, eris.Wrap(runErr, "pipeline: create retry run")
		}
		report.Records = storedRecords(run.ID, index)
		if saveErr := p.store.SaveRecords(ctx, report.Records); saveErr != nil {
			return report, eris.Wrap(saveErr, "pipeline: save retry records")
		}
		run.Status = model.RunStatusComplete
		run.Counts = &model.RunCounts{
			DocsTotal:         report.Attempted,
			DocsRelevant:      report.Recovered,
			RecordsKept:       kept,
			RecordsSuperseded: superseded,
		}
		if finErr := p.store.FinishRun(ctx, run); finErr != nil {
			log.Warn("pipeline: finish retry run", zap.Error(finErr))
		}
	}

	for _, id := range recoveredIDs {
		if rmErr := p.store.RemoveDLQ(ctx, id); rmErr != nil {
			log.Warn("pipeline: remove dlq entry", zap.String("id", id), zap.Error(rmErr))
		}
	}

	log.Info("pipeline: dlq sweep done",
		zap.Int("attempted", report.Attempted),
		zap.Int("recovered", report.Recovered),
		zap.Int("requeued", report.Requeued),
	)
	return report, nil
}
