package convert

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cellarworks/tasting-cli/internal/model"
	"github.com/cellarworks/tasting-cli/internal/prompt"
	"github.com/cellarworks/tasting-cli/internal/provider"
	"github.com/cellarworks/tasting-cli/internal/scoring"
)

// ErrInFlight is returned when a conversion is requested for a capture that
// already has one running. Concurrent runs for the same capture would race
// to produce two candidates over the same input.
var ErrInFlight = eris.New("convert: conversion already in flight for capture")

// Store is the persistence surface the orchestrator needs.
type Store interface {
	GetCapture(ctx context.Context, id string) (*model.RawCapture, error)
	SaveRun(ctx context.Context, run *model.ConversionRun) error
	SaveNote(ctx context.Context, note *model.NoteCandidate) error
	MarkConverted(ctx context.Context, captureID, runID string) error
}

// Options tunes the orchestrator.
type Options struct {
	// MaxAttempts bounds provider calls per run, including the first.
	// Default: DefaultMaxAttempts.
	MaxAttempts int

	// Concurrency bounds parallel captures in ConvertAll. Default: 4.
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	return o
}

// Orchestrator is the conversion entry point. It owns the in-flight guard,
// drives the repair loop, and persists the full run history whatever the
// outcome.
type Orchestrator struct {
	provider provider.Provider
	store    Store
	pricer   Pricer
	opts     Options

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewOrchestrator wires a conversion orchestrator. pricer may be nil, in
// which case attempts carry zero cost.
func NewOrchestrator(p provider.Provider, store Store, pricer Pricer, opts Options) *Orchestrator {
	return &Orchestrator{
		provider: p,
		store:    store,
		pricer:   pricer,
		opts:     opts.withDefaults(),
		inFlight: make(map[string]struct{}),
	}
}

// Convert runs one conversion for a capture and returns the persisted run.
// Exhausted and provider-unavailable runs are structured outcomes, not
// errors; the error return covers missing captures, a conversion already in
// flight, persistence failures, and fatal provider errors.
func (o *Orchestrator) Convert(ctx context.Context, captureID string, hints model.Hints) (*model.ConversionRun, error) {
	if err := o.begin(captureID); err != nil {
		return nil, err
	}
	defer o.end(captureID)

	capture, err := o.store.GetCapture(ctx, captureID)
	if err != nil {
		return nil, eris.Wrap(err, "convert: load capture")
	}

	run := &model.ConversionRun{
		ID:            uuid.New().String(),
		CaptureID:     capture.ID,
		CreatedAt:     time.Now().UTC(),
		Provider:      o.provider.Name(),
		Model:         o.provider.Model(),
		PromptVersion: prompt.Version,
		InputHash:     contentHash(capture.RawText),
	}

	zap.L().Info("starting conversion",
		zap.String("run_id", run.ID),
		zap.String("capture_id", capture.ID),
		zap.String("provider", run.Provider),
		zap.String("model", run.Model),
	)

	initial, err := prompt.Build(capture, hints)
	if err != nil {
		return nil, eris.Wrap(err, "convert: build prompt")
	}

	loop := &repairLoop{
		provider:    o.provider,
		pricer:      o.pricer,
		maxAttempts: o.opts.MaxAttempts,
	}
	result, loopErr := loop.run(ctx, initial)
	run.Attempts = result.attempts
	var usage model.TokenUsage
	for _, a := range result.attempts {
		usage.Add(a.TokenUsage)
		run.TotalCost += a.CostUSD
	}
	run.TotalTokens = usage.InputTokens + usage.OutputTokens

	if loopErr != nil {
		return o.finishError(ctx, run, loopErr)
	}
	if result.succeeded() {
		return o.finishSuccess(ctx, run, capture, result.candidate)
	}
	return o.finishExhausted(ctx, run, result)
}

// finishSuccess normalizes scores, persists the candidate as a draft, and
// marks the capture converted. The provider-supplied total is discarded;
// the stored total always equals the subscore sum.
func (o *Orchestrator) finishSuccess(ctx context.Context, run *model.ConversionRun, capture *model.RawCapture, candidate *model.NoteCandidate) (*model.ConversionRun, error) {
	if err := scoring.Normalize(&candidate.Scores); err != nil {
		return nil, eris.Wrap(err, "convert: normalize scores")
	}

	now := time.Now().UTC()
	candidate.ID = uuid.New().String()
	candidate.CaptureID = capture.ID
	candidate.CreatedAt = now
	candidate.UpdatedAt = now

	run.Outcome = model.OutcomeSucceeded
	run.Candidate = candidate

	// Run first: the attempt history must exist before any artifact that
	// references it. A failure after SaveRun leaves a succeeded run whose
	// capture is still pending, which a retry supersedes cleanly.
	if err := o.store.SaveRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "convert: save run")
	}
	if err := o.store.SaveNote(ctx, candidate); err != nil {
		return nil, eris.Wrap(err, "convert: save note")
	}
	if err := o.store.MarkConverted(ctx, capture.ID, run.ID); err != nil {
		return nil, eris.Wrap(err, "convert: mark capture converted")
	}

	zap.L().Info("conversion succeeded",
		zap.String("run_id", run.ID),
		zap.Int("attempts", len(run.Attempts)),
		zap.Int("total", candidate.Scores.Total),
		zap.String("band", string(candidate.Scores.QualityBand)),
	)
	return run, nil
}

func (o *Orchestrator) finishExhausted(ctx context.Context, run *model.ConversionRun, result *loopResult) (*model.ConversionRun, error) {
	run.Outcome = model.OutcomeExhausted
	run.Violations = result.violations
	run.Error = result.parseErr

	if err := o.store.SaveRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "convert: save run")
	}

	zap.L().Warn("conversion exhausted",
		zap.String("run_id", run.ID),
		zap.Int("attempts", len(run.Attempts)),
		zap.Int("violations", len(run.Violations)),
	)
	return run, nil
}

// finishError handles runs that stopped on something other than parse or
// validation failure. No backend configured degrades to a persisted
// placeholder candidate; cancellation and fatal provider errors persist the
// attempts completed so far, then surface the error.
func (o *Orchestrator) finishError(ctx context.Context, run *model.ConversionRun, loopErr error) (*model.ConversionRun, error) {
	if errors.Is(loopErr, provider.ErrUnavailable) {
		return o.finishUnavailable(ctx, run)
	}

	if errors.Is(loopErr, context.Canceled) || errors.Is(loopErr, context.DeadlineExceeded) {
		run.Outcome = model.OutcomeCanceled
	} else {
		run.Outcome = model.OutcomeProviderError
	}
	run.Error = loopErr.Error()

	// Persist with a background context: the caller's may already be dead,
	// and the completed attempts must not be lost to the audit trail.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.store.SaveRun(saveCtx, run); err != nil {
		return nil, eris.Wrap(err, "convert: save interrupted run")
	}

	zap.L().Warn("conversion interrupted",
		zap.String("run_id", run.ID),
		zap.String("outcome", string(run.Outcome)),
		zap.Int("attempts", len(run.Attempts)),
		zap.Error(loopErr),
	)
	return run, loopErr
}

// finishUnavailable synthesizes a low-confidence placeholder candidate so
// the caller always gets something editable. Not an error.
func (o *Orchestrator) finishUnavailable(ctx context.Context, run *model.ConversionRun) (*model.ConversionRun, error) {
	now := time.Now().UTC()
	candidate := model.Placeholder(run.CaptureID)
	candidate.ID = uuid.New().String()
	candidate.CreatedAt = now
	candidate.UpdatedAt = now

	run.Outcome = model.OutcomeProviderUnavailable
	run.Candidate = candidate

	if err := o.store.SaveRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "convert: save run")
	}
	if err := o.store.SaveNote(ctx, candidate); err != nil {
		return nil, eris.Wrap(err, "convert: save placeholder note")
	}

	zap.L().Info("no provider configured, persisted placeholder",
		zap.String("run_id", run.ID),
		zap.String("capture_id", run.CaptureID),
	)
	return run, nil
}

// ConvertAll converts distinct captures concurrently, bounded by the
// configured concurrency. Duplicate IDs are collapsed; the in-flight guard
// holds regardless. Structured failure outcomes do not abort the batch.
func (o *Orchestrator) ConvertAll(ctx context.Context, captureIDs []string, hints model.Hints) ([]model.RunSummary, error) {
	ids := dedupe(captureIDs)
	summaries := make([]model.RunSummary, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			run, err := o.Convert(ctx, id, hints)
			if err != nil {
				return eris.Wrapf(err, "convert: capture %s", id)
			}
			summaries[i] = run.Summary()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (o *Orchestrator) begin(captureID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.inFlight[captureID]; ok {
		return ErrInFlight
	}
	o.inFlight[captureID] = struct{}{}
	return nil
}

func (o *Orchestrator) end(captureID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, captureID)
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
