// Package pipeline orchestrates a batch extraction run: ingest, per
// document OCR and assembly, the assist tier, deduplication and
// persistence.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/enerdoc/facture-cli/internal/assist"
	"github.com/enerdoc/facture-cli/internal/config"
	"github.com/enerdoc/facture-cli/internal/cost"
	"github.com/enerdoc/facture-cli/internal/dedup"
	"github.com/enerdoc/facture-cli/internal/fetch"
	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/ocr"
	"github.com/enerdoc/facture-cli/internal/profile"
	"github.com/enerdoc/facture-cli/internal/resilience"
	"github.com/enerdoc/facture-cli/internal/store"
)

// Pipeline wires the extraction stages together. Per-document work is
// pure once the text is in hand; OCR, assist and persistence are the
// only I/O.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	ocr      ocr.Extractor
	profiles *profile.Registry
	assister *assist.Assister
	tracker  *cost.Tracker
}

// New creates a Pipeline. The assister may be nil when the assist tier
// is disabled; the tracker may be nil.
func New(
	cfg *config.Config,
	st store.Store,
	extractor ocr.Extractor,
	profiles *profile.Registry,
	assister *assist.Assister,
	tracker *cost.Tracker,
) *Pipeline {
	if profiles == nil {
		profiles = profile.NewRegistry()
	}
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		ocr:      extractor,
		profiles: profiles,
		assister: assister,
		tracker:  tracker,
	}
}

// RunResult is what a finished run produced: the run row plus every
// record the dedup index decided on, kept and superseded alike.
type RunResult struct {
	Run     *model.Run
	Records []store.StoredRecord
}

// Kept returns only the records that survived deduplication.
func (r *RunResult) Kept() []store.StoredRecord {
	var out []store.StoredRecord
	for _, rec := range r.Records {
		if rec.State == model.StateKept {
			out = append(out, rec)
		}
	}
	return out
}

// Run executes a full batch over the documents under dir: expand
// archives, walk the inbox, process every document in parallel, fill
// gaps through the assist tier, deduplicate and persist. Documents that
// fail with infrastructure errors land in the dead letter queue and do
// not fail the run.
func (p *Pipeline) Run(ctx context.Context, dir string) (*RunResult, error) {
	run, err := p.store.CreateRun(ctx, dir)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	return p.execute(ctx, run, dir)
}

// RunAsync creates the run row, kicks the batch off in the background
// and returns immediately. Progress lands in the store as usual.
func (p *Pipeline) RunAsync(ctx context.Context, dir string) (*model.Run, error) {
	run, err := p.store.CreateRun(ctx, dir)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	go func() {
		if _, execErr := p.execute(ctx, run, dir); execErr != nil {
			zap.L().Error("pipeline: async run failed",
				zap.String("run_id", run.ID), zap.Error(execErr))
		}
	}()
	return run, nil
}

func (p *Pipeline) execute(ctx context.Context, run *model.Run, dir string) (*RunResult, error) {
	log := zap.L().With(zap.String("source", dir), zap.String("run_id", run.ID))
	log.Info("pipeline: starting run")

	result := &RunResult{Run: run}
	counts := model.RunCounts{}

	setStatus := func(status model.RunStatus) {
		run.Status = status
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: update status", zap.Error(statusErr))
		}
	}
	setStatus(model.RunStatusRunning)

	fail := func(stageErr error) (*RunResult, error) {
		run.Status = model.RunStatusFailed
		run.Error = stageErr.Error()
		run.Counts = &counts
		if finErr := p.store.FinishRun(ctx, run); finErr != nil {
			log.Warn("pipeline: finish run", zap.Error(finErr))
		}
		return result, stageErr
	}

	// Stage 1: ingest.
	var paths []string
	p.trackStage(run, "ingest", func() error {
		if _, expandErr := fetch.ExpandArchives(dir); expandErr != nil {
			log.Warn("pipeline: expand archives", zap.Error(expandErr))
		}
		var walkErr error
		paths, walkErr = fetch.WalkInbox(dir)
		return walkErr
	})
	if last := lastStage(run); last.Status == model.StageStatusFailed {
		return fail(eris.New("pipeline: ingest failed: " + last.Error))
	}
	counts.DocsTotal = len(paths)
	if len(paths) == 0 {
		return fail(eris.Errorf("pipeline: no documents under %s", dir))
	}

	// Stage 2: per-document extraction, parallel with a worker cap.
	var mu sync.Mutex
	var results []DocResult
	p.trackStage(run, "extract", func() error {
		g, gCtx := errgroup.WithContext(ctx)
		workers := p.cfg.Batch.Workers
		if workers <= 0 {
			workers = 4
		}
		g.SetLimit(workers)
		for _, path := range paths {
			g.Go(func() error {
				res, docErr := p.ProcessDocument(gCtx, path)
				mu.Lock()
				defer mu.Unlock()
				if docErr != nil {
					counts.DocsFailed++
					p.deadLetter(ctx, res, docErr)
					log.Warn("pipeline: document failed",
						zap.String("file", res.Doc.Name), zap.Error(docErr))
					return nil
				}
				if res.Ignored {
					counts.DocsIgnored++
					log.Debug("pipeline: document ignored",
						zap.String("file", res.Doc.Name), zap.String("reason", res.Reason))
					return nil
				}
				counts.DocsRelevant++
				results = append(results, res)
				return nil
			})
		}
		return g.Wait()
	})
	if err := ctx.Err(); err != nil {
		return fail(eris.Wrap(err, "pipeline: run cancelled"))
	}

	// Stage 3: assist tier for records still missing their reference or
	// document date.
	p.trackStage(run, "assist", func() error {
		if p.assister == nil || !p.cfg.Assist.Enabled {
			return nil
		}
		var targets []assist.Target
		for _, res := range results {
			if assist.Needed(res.Record) {
				targets = append(targets, assist.Target{
					SourceFile: res.Doc.Name,
					Text:       res.Doc.Text,
					Record:     res.Record,
					Journal:    res.Journal,
				})
			}
		}
		if len(targets) == 0 {
			return nil
		}
		fillRes, fillErr := p.assister.FillAll(ctx, targets)
		counts.AssistCalls += fillRes.Usage.Calls
		counts.AssistInputTokens += fillRes.Usage.InputTokens
		counts.AssistOutputTokens += fillRes.Usage.OutputTokens
		counts.AssistCostUSD += fillRes.Usage.CostUSD
		for _, f := range fillRes.Failures {
			log.Warn("pipeline: assist failed",
				zap.String("file", f.SourceFile), zap.Error(f.Err))
		}
		return fillErr
	})

	// Stage 4: dedup. Upserts happen in deterministic order so reruns
	// over the same inbox decide ties the same way.
	index := dedup.NewIndex()
	p.trackStage(run, "dedup", func() error {
		sort.Slice(results, func(i, j int) bool {
			return results[i].Doc.Name < results[j].Doc.Name
		})
		for _, res := range results {
			index.Upsert(res.Record, res.Journal, res.Effective)
		}
		kept, superseded := index.Counts()
		counts.RecordsKept = kept
		counts.RecordsSuperseded = superseded
		return nil
	})

	// Stage 5: persist kept and superseded records.
	p.trackStage(run, "persist", func() error {
		result.Records = storedRecords(run.ID, index)
		return p.store.SaveRecords(ctx, result.Records)
	})
	if last := lastStage(run); last.Status == model.StageStatusFailed {
		return fail(eris.New("pipeline: persist failed: " + last.Error))
	}

	run.Status = model.RunStatusComplete
	run.Counts = &counts
	if err := p.store.FinishRun(ctx, run); err != nil {
		log.Warn("pipeline: finish run", zap.Error(err))
	}

	log.Info("pipeline: run complete",
		zap.String("run_id", run.ID),
		zap.Int("docs", counts.DocsTotal),
		zap.Int("kept", counts.RecordsKept),
		zap.Int("superseded", counts.RecordsSuperseded),
		zap.Float64("assist_cost_usd", counts.AssistCostUSD),
	)
	return result, nil
}

// trackStage runs one stage, timing it and recording the outcome on the
// run. A failed stage is recorded but does not abort the run by itself.
func (p *Pipeline) trackStage(run *model.Run, name string, fn func() error) {
	start := time.Now()
	err := fn()
	stage := model.StageResult{
		Name:     name,
		Status:   model.StageStatusComplete,
		Duration: time.Since(start).Milliseconds(),
	}
	if err != nil {
		stage.Status = model.StageStatusFailed
		stage.Error = err.Error()
		zap.L().Error("pipeline: stage failed",
			zap.String("stage", name),
			zap.Int64("duration_ms", stage.Duration),
			zap.Error(err),
		)
	} else {
		zap.L().Info("pipeline: stage complete",
			zap.String("stage", name),
			zap.Int64("duration_ms", stage.Duration),
		)
	}
	run.Stages = append(run.Stages, stage)
}

func lastStage(run *model.Run) model.StageResult {
	if len(run.Stages) == 0 {
		return model.StageResult{}
	}
	return run.Stages[len(run.Stages)-1]
}

// deadLetter queues a failed document for later retry. Transient errors
// get a near retry slot; permanent ones are parked for inspection.
func (p *Pipeline) deadLetter(ctx context.Context, res DocResult, docErr error) {
	errType := resilience.ClassifyError(docErr)
	entry := resilience.DLQEntry{
		ID:           uuid.NewString(),
		SourceFile:   res.Doc.Path,
		Supplier:     res.Doc.SupplierHint,
		Error:        docErr.Error(),
		ErrorType:    errType,
		FailedStage:  "extract",
		MaxRetries:   resilience.DefaultRetryConfig().MaxAttempts,
		NextRetryAt:  time.Now().Add(5 * time.Minute),
		CreatedAt:    time.Now(),
		LastFailedAt: time.Now(),
	}
	if errType == "permanent" {
		// Nothing automatic will fix these; surface them without a slot.
		entry.MaxRetries = 0
	}
	if err := p.store.EnqueueDLQ(ctx, entry); err != nil {
		zap.L().Warn("pipeline: enqueue dlq",
			zap.String("file", res.Doc.Path), zap.Error(err))
	}
}

// storedRecords flattens the dedup index into store rows for one run.
func storedRecords(runID string, index *dedup.Index) []store.StoredRecord {
	entries := index.Kept()
	entries = append(entries, index.Superseded()...)
	out := make([]store.StoredRecord, 0, len(entries))
	now := time.Now().UTC()
	for _, e := range entries {
		rec := store.StoredRecord{
			ID:           uuid.NewString(),
			RunID:        runID,
			ReferenceKey: e.Key,
			State:        e.State,
			SupersededBy: e.SupersededBy,
			CreatedAt:    now,
		}
		if e.Record != nil {
			rec.Record = *e.Record
		}
		if e.Journal != nil {
			rec.Journal = *e.Journal
		}
		out = append(out, rec)
	}
	return out
}
