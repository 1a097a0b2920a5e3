// Package assist closes rule-tier gaps with a Claude call. Documents
// whose reference or document date stayed null after rule extraction
// get one request asking for the still-missing fields; only null
// fields are filled from the reply, so the rule tier always wins.
package assist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/enerdoc/facture-cli/internal/cost"
	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/resilience"
	"github.com/enerdoc/facture-cli/internal/store"
	"github.com/enerdoc/facture-cli/pkg/anthropic"
)

// Config controls the assist tier.
type Config struct {
	Enabled bool
	Model   string
	// MaxTokens bounds the reply; the expected output is one small
	// JSON object.
	MaxTokens int64
	// BatchThreshold is the pending-call count at which FillAll
	// switches from direct calls to the Message Batches API.
	BatchThreshold int
	// Concurrency limits parallel direct calls.
	Concurrency int
	// CacheTTL is how long cached replies stay valid in the store.
	CacheTTL time.Duration
	// MaxDocChars truncates the document text sent to the model.
	MaxDocChars int
}

// DefaultConfig returns the assist defaults. The tier is off until
// configuration enables it.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		Model:          "claude-haiku-4-5-20251001",
		MaxTokens:      1024,
		BatchThreshold: 15,
		Concurrency:    4,
		CacheTTL:       7 * 24 * time.Hour,
		MaxDocChars:    12000,
	}
}

// Target is one document the assist tier should try to complete. The
// record and journal are mutated in place.
type Target struct {
	SourceFile string
	Text       string
	Record     *model.EnergyInvoiceRecord
	Journal    *model.ExtractionJournal
}

// Usage aggregates spend across one FillAll invocation. Calls counts
// API requests made, including the batch primer; cache hits cost
// nothing and are counted separately.
type Usage struct {
	Calls        int
	CacheHits    int
	FieldsFilled int
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

// Failure names a target that stayed unfilled after retries.
type Failure struct {
	SourceFile string
	Err        error
}

// Result reports what FillAll did.
type Result struct {
	Usage    Usage
	Failures []Failure
}

// Assister fills missing record fields from model replies.
type Assister struct {
	client  anthropic.Client
	store   store.Store
	calc    *cost.Calculator
	tracker *cost.Tracker
	cfg     Config
	retry   resilience.RetryConfig
}

// New creates an Assister. The store backs the reply cache and may be
// nil to disable caching; the tracker may be nil.
func New(client anthropic.Client, st store.Store, calc *cost.Calculator, tracker *cost.Tracker, cfg Config) *Assister {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.BatchThreshold <= 0 {
		cfg.BatchThreshold = def.BatchThreshold
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.MaxDocChars <= 0 {
		cfg.MaxDocChars = def.MaxDocChars
	}
	if calc == nil {
		calc = cost.NewCalculator(cost.DefaultRates())
	}

	retry := resilience.DefaultRetryConfig()
	retry.ShouldRetry = retryableError
	retry.OnRetry = resilience.RetryLogger("assist", "message")

	return &Assister{
		client:  client,
		store:   st,
		calc:    calc,
		tracker: tracker,
		cfg:     cfg,
		retry:   retry,
	}
}

// retryableError extends the network-level transient check with the
// API's own retry signals (rate limit, overload, 5xx).
func retryableError(err error) bool {
	return resilience.IsTransient(err) || anthropic.IsRetryable(err)
}

// Needed reports whether the rule tier left a gap worth a model call:
// the reference or the document date is still null.
func Needed(rec *model.EnergyInvoiceRecord) bool {
	if rec == nil {
		return false
	}
	return !rec.HasReference() || rec.DocumentDate == nil
}

// pendingCall is a target that missed the cache and needs an API call.
type pendingCall struct {
	target *Target
	prompt string
	key    string
}

// FillAll runs the assist tier over every target. Cached replies are
// replayed locally; the rest go to the API, directly below the batch
// threshold and through the Message Batches API at or above it.
// Per-target failures are collected in the result, never fatal; the
// only error out is context cancellation.
func (a *Assister) FillAll(ctx context.Context, targets []Target) (Result, error) {
	var res Result
	if !a.cfg.Enabled || len(targets) == 0 {
		return res, nil
	}

	log := zap.L().With(zap.Int("targets", len(targets)))

	var pending []pendingCall
	for i := range targets {
		t := &targets[i]
		fields := missingFields(t.Record)
		if len(fields) == 0 {
			continue
		}
		prompt := buildUserMessage(fields, clip(t.Text, a.cfg.MaxDocChars))
		key := cacheKey(a.cfg.Model, prompt)

		if raw := a.cachedReply(ctx, key); raw != nil {
			res.Usage.CacheHits++
			res.Usage.FieldsFilled += a.replayCached(t, raw)
			continue
		}
		pending = append(pending, pendingCall{target: t, prompt: prompt, key: key})
	}

	if len(pending) == 0 {
		log.Debug("assist resolved from cache alone",
			zap.Int("cache_hits", res.Usage.CacheHits))
		return res, nil
	}

	var err error
	if len(pending) < a.cfg.BatchThreshold {
		err = a.fillDirect(ctx, pending, &res)
	} else {
		err = a.fillBatch(ctx, pending, &res)
	}

	log.Info("assist tier finished",
		zap.Int("calls", res.Usage.Calls),
		zap.Int("cache_hits", res.Usage.CacheHits),
		zap.Int("fields_filled", res.Usage.FieldsFilled),
		zap.Int("failures", len(res.Failures)),
		zap.Float64("cost_usd", res.Usage.CostUSD),
	)
	return res, err
}

// fillDirect runs pending calls concurrently against the Messages API,
// retrying each transiently-failed call with backoff.
func (a *Assister) fillDirect(ctx context.Context, pending []pendingCall, res *Result) error {
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)

	for i := range pending {
		p := &pending[i]
		g.Go(func() error {
			resp, err := resilience.DoVal(gctx, a.retry, func(c context.Context) (*anthropic.MessageResponse, error) {
				return a.client.CreateMessage(c, a.request(p.prompt))
			})

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				res.Failures = append(res.Failures, Failure{SourceFile: p.target.SourceFile, Err: err})
				return nil
			}

			a.accountCall(&res.Usage, resp.Usage, false)

			filled, ferr := a.finish(gctx, p, resp)
			if ferr != nil {
				res.Failures = append(res.Failures, Failure{SourceFile: p.target.SourceFile, Err: ferr})
				return nil
			}
			res.Usage.FieldsFilled += filled
			return nil
		})
	}

	return g.Wait()
}

// fillBatch submits pending calls through the Message Batches API,
// polls to completion and merges the results back onto the targets. A
// batch-level breakdown fails every pending target rather than the
// run.
func (a *Assister) fillBatch(ctx context.Context, pending []pendingCall, res *Result) error {
	log := zap.L().With(zap.Int("items", len(pending)))

	items := make([]anthropic.BatchRequestItem, len(pending))
	byID := make(map[string]*pendingCall, len(pending))
	for i := range pending {
		id := fmt.Sprintf("doc-%d", i)
		items[i] = anthropic.BatchRequestItem{CustomID: id, Params: a.request(pending[i].prompt)}
		byID[id] = &pending[i]
	}

	// Fire the primer asynchronously so the shared system block is warm
	// by the time batch items execute; it overlaps with submission.
	primerDone := make(chan struct{})
	var primerUsage anthropic.TokenUsage
	go func() {
		defer close(primerDone)
		resp, err := anthropic.PrimerRequest(ctx, a.client, items[0].Params)
		if err != nil {
			zap.L().Debug("assist primer failed", zap.Error(err))
			return
		}
		primerUsage = resp.Usage
	}()
	defer func() {
		<-primerDone
		if primerUsage != (anthropic.TokenUsage{}) {
			a.accountCall(&res.Usage, primerUsage, false)
		}
	}()

	batch, err := a.client.CreateBatch(ctx, anthropic.BatchRequest{Requests: items})
	if err != nil {
		a.failAll(res, pending, eris.Wrap(err, "assist: create batch"))
		return nil
	}

	log.Info("assist batch submitted", zap.String("batch_id", batch.ID))

	batch, err = anthropic.PollBatch(ctx, a.client, batch.ID,
		anthropic.WithPollInterval(2*time.Second),
		anthropic.WithPollCap(15*time.Second),
		anthropic.WithPollTimeout(30*time.Minute),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.failAll(res, pending, eris.Wrap(err, "assist: poll batch"))
		return nil
	}

	log.Info("assist batch completed",
		zap.Int64("succeeded", batch.RequestCounts.Succeeded),
		zap.Int64("errored", batch.RequestCounts.Errored))

	iter, err := a.client.GetBatchResults(ctx, batch.ID)
	if err != nil {
		a.failAll(res, pending, eris.Wrap(err, "assist: get batch results"))
		return nil
	}
	defer iter.Close() //nolint:errcheck

	results, err := anthropic.CollectBatchResults(iter)
	if err != nil {
		a.failAll(res, pending, eris.Wrap(err, "assist: collect batch results"))
		return nil
	}

	for id, p := range byID {
		resp, ok := results[id]
		if !ok || resp == nil {
			res.Failures = append(res.Failures, Failure{SourceFile: p.target.SourceFile, Err: eris.New("assist: batch result missing")})
			continue
		}

		a.accountCall(&res.Usage, resp.Usage, true)

		filled, ferr := a.finish(ctx, p, resp)
		if ferr != nil {
			res.Failures = append(res.Failures, Failure{SourceFile: p.target.SourceFile, Err: ferr})
			continue
		}
		res.Usage.FieldsFilled += filled
	}

	return nil
}

// finish extracts the reply object, caches it and fills the target.
func (a *Assister) finish(ctx context.Context, p *pendingCall, resp *anthropic.MessageResponse) (int, error) {
	raw := firstJSONObject(replyText(resp))
	if raw == nil {
		return 0, eris.New("assist: no JSON object in reply")
	}
	rep, err := parseReply(raw)
	if err != nil {
		return 0, err
	}
	a.cacheReply(ctx, p.key, raw)
	return fillRecord(p.target.Record, p.target.Journal, rep), nil
}

// replayCached fills a target from a cached reply. A cache row that no
// longer parses counts as zero fills, not an error.
func (a *Assister) replayCached(t *Target, raw []byte) int {
	rep, err := parseReply(raw)
	if err != nil {
		zap.L().Debug("assist cached reply unusable",
			zap.String("source_file", t.SourceFile),
			zap.Error(err))
		return 0
	}
	return fillRecord(t.Record, t.Journal, rep)
}

// accountCall rolls one response's tokens and price into the usage and
// the shared tracker.
func (a *Assister) accountCall(u *Usage, tok anthropic.TokenUsage, isBatch bool) {
	callCost := a.calc.Claude(a.cfg.Model, isBatch,
		int(tok.InputTokens), int(tok.OutputTokens),
		int(tok.CacheCreationInputTokens), int(tok.CacheReadInputTokens))

	u.Calls++
	u.InputTokens += tok.InputTokens
	u.OutputTokens += tok.OutputTokens
	u.CostUSD += callCost

	if a.tracker != nil {
		a.tracker.AddAssist(callCost)
	}
}

// failAll marks every pending target failed with the same batch error.
func (a *Assister) failAll(res *Result, pending []pendingCall, err error) {
	zap.L().Warn("assist batch failed",
		zap.Int("items", len(pending)),
		zap.Error(err))
	for i := range pending {
		res.Failures = append(res.Failures, Failure{SourceFile: pending[i].target.SourceFile, Err: err})
	}
}

// Extraction wants the most likely reading of the document, not
// variety.
var zeroTemperature = 0.0

// request builds the API request for one prompt. The system block
// carries a cache breakpoint so direct and batched requests share the
// instruction prefix.
func (a *Assister) request(prompt string) anthropic.MessageRequest {
	return anthropic.MessageRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		System:      anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &zeroTemperature,
	}
}

// cachedReply looks up a previous reply for the key. Cache trouble is
// logged and treated as a miss.
func (a *Assister) cachedReply(ctx context.Context, key string) []byte {
	if a.store == nil {
		return nil
	}
	raw, err := a.store.GetAssistReply(ctx, key)
	if err != nil {
		zap.L().Debug("assist cache read failed", zap.Error(err))
		return nil
	}
	return raw
}

func (a *Assister) cacheReply(ctx context.Context, key string, raw []byte) {
	if a.store == nil {
		return
	}
	if err := a.store.SetAssistReply(ctx, key, raw, a.cfg.CacheTTL); err != nil {
		zap.L().Warn("assist cache write failed", zap.Error(err))
	}
}
