package convert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarworks/tasting-cli/internal/cost"
	"github.com/cellarworks/tasting-cli/internal/model"
	"github.com/cellarworks/tasting-cli/internal/prompt"
	"github.com/cellarworks/tasting-cli/internal/provider"
)

const validResponse = `{
	"wine": {
		"producer": "Domaine Leflaive",
		"cuvee": "Puligny-Montrachet",
		"vintage": 2019,
		"country": "France",
		"region": "Burgundy",
		"color": "white",
		"style": "still",
		"sweetness": "dry"
	},
	"confidence": {"level": "high", "uncertainty_notes": ""},
	"readiness": {"drink_or_hold": "drink", "notes": ""},
	"faults": {"present": false, "suspected": [], "notes": ""},
	"scores": {
		"subscores": {
			"appearance": 2,
			"nose": 10,
			"palate": 17,
			"structure_balance": 17,
			"finish": 8,
			"typicity_complexity": 13,
			"overall_judgment": 17
		},
		"total": 40
	},
	"nose_notes": "citrus, struck match, white flowers"
}`

// invalidResponse has nose out of range.
const invalidResponse = `{
	"wine": {"producer": "Domaine Leflaive"},
	"confidence": {"level": "high"},
	"readiness": {"drink_or_hold": "drink"},
	"scores": {
		"subscores": {
			"appearance": 2,
			"nose": 13,
			"palate": 17,
			"structure_balance": 17,
			"finish": 8,
			"typicity_complexity": 13,
			"overall_judgment": 17
		}
	}
}`

type step struct {
	text string
	err  error
}

// scriptedProvider replays a fixed sequence of responses; the last step
// repeats once the script runs out.
type scriptedProvider struct {
	mu      sync.Mutex
	steps   []step
	prompts []prompt.Prompt
}

func (s *scriptedProvider) Name() string  { return "anthropic" }
func (s *scriptedProvider) Model() string { return "claude-sonnet-4-20250514" }

func (s *scriptedProvider) Submit(ctx context.Context, p prompt.Prompt) (*provider.RawResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, p)

	idx := len(s.prompts) - 1
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	st := s.steps[idx]
	if st.err != nil {
		return nil, st.err
	}
	return &provider.RawResponse{
		Text:  st.text,
		Model: s.Model(),
		Usage: model.TokenUsage{InputTokens: 800, OutputTokens: 400},
	}, nil
}

func (s *scriptedProvider) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

type memStore struct {
	mu        sync.Mutex
	captures  map[string]*model.RawCapture
	runs      []*model.ConversionRun
	notes     []*model.NoteCandidate
	converted map[string]string
	noteErr   error
}

func newMemStore(captures ...*model.RawCapture) *memStore {
	s := &memStore{
		captures:  make(map[string]*model.RawCapture),
		converted: make(map[string]string),
	}
	for _, c := range captures {
		s.captures[c.ID] = c
	}
	return s
}

func (s *memStore) GetCapture(_ context.Context, id string) (*model.RawCapture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.captures[id]
	if !ok {
		return nil, eris.Errorf("capture %s not found", id)
	}
	return c, nil
}

func (s *memStore) SaveRun(_ context.Context, run *model.ConversionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *memStore) SaveNote(_ context.Context, note *model.NoteCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noteErr != nil {
		return s.noteErr
	}
	s.notes = append(s.notes, note)
	return nil
}

func (s *memStore) MarkConverted(_ context.Context, captureID, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.converted[captureID] = runID
	return nil
}

func testCapture(id string) *model.RawCapture {
	return &model.RawCapture{
		ID:        id,
		RawText:   "2019 Leflaive Puligny. Citrus, struck match. Tense, long. Outstanding stuff.",
		CreatedAt: time.Now().UTC(),
	}
}

func TestConvertSucceedsFirstAttempt(t *testing.T) {
	p := &scriptedProvider{steps: []step{{text: validResponse}}}
	store := newMemStore(testCapture("cap-1"))
	o := NewOrchestrator(p, store, cost.NewCalculator(cost.DefaultRates()), Options{})

	run, err := o.Convert(context.Background(), "cap-1", nil)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSucceeded, run.Outcome)
	require.Len(t, run.Attempts, 1)
	assert.True(t, run.Attempts[0].Valid)
	assert.Equal(t, prompt.Version, run.PromptVersion)
	assert.Len(t, run.InputHash, 64)
	assert.Equal(t, 1200, run.TotalTokens)
	assert.Greater(t, run.TotalCost, 0.0)

	// Provider-supplied total of 40 is discarded.
	require.NotNil(t, run.Candidate)
	assert.Equal(t, 84, run.Candidate.Scores.Total)
	assert.Equal(t, model.BandGood, run.Candidate.Scores.QualityBand)
	assert.Equal(t, model.NoteStatusDraft, run.Candidate.Status)

	require.Len(t, store.notes, 1)
	require.Len(t, store.runs, 1)
	assert.Equal(t, run.ID, store.converted["cap-1"])
}

func TestConvertRepairsThenSucceeds(t *testing.T) {
	p := &scriptedProvider{steps: []step{
		{text: "not even close to json"},
		{text: validResponse},
	}}
	store := newMemStore(testCapture("cap-1"))
	o := NewOrchestrator(p, store, nil, Options{})

	run, err := o.Convert(context.Background(), "cap-1", nil)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSucceeded, run.Outcome)
	require.Len(t, run.Attempts, 2)
	assert.NotEmpty(t, run.Attempts[0].ParseError)
	assert.False(t, run.Attempts[0].Valid)
	assert.True(t, run.Attempts[1].Valid)
	assert.Equal(t, 2400, run.TotalTokens)

	// Candidate total equals the subscore sum.
	assert.Equal(t, 84, run.Candidate.Scores.Total)

	// Second prompt is the repair prompt carrying the failure.
	require.Equal(t, 2, p.calls())
	assert.Contains(t, p.prompts[1].User, "PROBLEMS")
	assert.Contains(t, p.prompts[1].User, "invalid JSON")
}

func TestConvertValidationFailureDrivesRepair(t *testing.T) {
	p := &scriptedProvider{steps: []step{
		{text: invalidResponse},
		{text: validResponse},
	}}
	store := newMemStore(testCapture("cap-1"))
	o := NewOrchestrator(p, store, nil, Options{})

	run, err := o.Convert(context.Background(), "cap-1", nil)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSucceeded, run.Outcome)
	require.Len(t, run.Attempts, 2)
	assert.NotEmpty(t, run.Attempts[0].Violations)

	assert.Contains(t, p.prompts[1].User, "scores.subscores.nose")
}

func TestConvertExhaustsAfterMaxAttempts(t *testing.T) {
	p := &scriptedProvider{steps: []step{{text: "still not json"}}}
	store := newMemStore(testCapture("cap-1"))
	o := NewOrchestrator(p, store, nil, Options{MaxAttempts: 3})

	run, err := o.Convert(context.Background(), "cap-1", nil)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeExhausted, run.Outcome)
	assert.Len(t, run.Attempts, 3)
	assert.Equal(t, 3, p.calls())
	assert.NotEmpty(t, run.Error)
	assert.Nil(t, run.Candidate)

	// The failed run is persisted for diagnosis; no note, no conversion mark.
	require.Len(t, store.runs, 1)
	assert.Empty(t, store.notes)
	assert.Empty(t, store.converted)
}

func TestConvertExhaustedCarriesLastViolations(t *testing.T) {
	p := &scriptedProvider{steps: []step{{text: invalidResponse}}}
	store := newMemStore(testCapture("cap-1"))
	o := NewOrchestrator(p, store, nil, Options{MaxAttempts: 2})

	run, err := o.Convert(context.Background(), "cap-1", nil)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeExhausted, run.Outcome)
	require.NotEmpty(t, run.Violations)
	assert.Equal(t, "scores.subscores.nose", run.Violations[0].Field)
}

func TestConvertNoProviderYieldsPlaceholder(t *testing.T) {
	store := newMemStore(testCapture("cap-1"))
	o := NewOrchestrator(provider.NewNull(), store, nil, Options{})

	run, err := o.Convert(context.Background(), "cap-1", nil)
	require.NoError(t, err, "missing provider is a fallback outcome, not an error")

	assert.Equal(t, model.OutcomeProviderUnavailable, run.Outcome)
	assert.Empty(t, run.Attempts)
	require.NotNil(t, run.Candidate)
	assert.Equal(t, model.ConfidenceLow, run.Candidate.Confidence.Level)
	assert.Equal(t, "cap-1", run.Candidate.CaptureID)
	require.Len(t, store.notes, 1)
	require.Len(t, store.runs, 1)
}

func TestConvertUnknownCapture(t *testing.T) {
	o := NewOrchestrator(provider.NewNull(), newMemStore(), nil, Options{})

	_, err := o.Convert(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load capture")
}

func TestConvertRejectsConcurrentRunForSameCapture(t *testing.T) {
	release := make(chan struct{})
	p := &blockingProvider{started: make(chan struct{}), release: release}
	store := newMemStore(testCapture("cap-1"))
	o := NewOrchestrator(p, store, nil, Options{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = o.Convert(context.Background(), "cap-1", nil)
	}()

	<-p.started

	_, err := o.Convert(context.Background(), "cap-1", nil)
	require.ErrorIs(t, err, ErrInFlight)

	close(release)
	<-done

	// Guard is released once the first run finishes.
	_, err = o.Convert(context.Background(), "cap-1", nil)
	require.NoError(t, err)
}

// blockingProvider holds its first Submit until released, then answers
// validly.
type blockingProvider struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (b *blockingProvider) Name() string  { return "anthropic" }
func (b *blockingProvider) Model() string { return "claude-sonnet-4-20250514" }

func (b *blockingProvider) Submit(ctx context.Context, _ prompt.Prompt) (*provider.RawResponse, error) {
	b.once.Do(func() {
		close(b.started)
		<-b.release
	})
	return &provider.RawResponse{Text: validResponse}, nil
}

func TestConvertCancellationPersistsCompletedAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &scriptedProvider{steps: []step{
		{text: invalidResponse},
		{err: context.Canceled},
	}}
	store := newMemStore(testCapture("cap-1"))
	o := NewOrchestrator(p, store, nil, Options{MaxAttempts: 3})

	cancel() // provider reports the cancellation on its second call

	run, err := o.Convert(ctx, "cap-1", nil)
	require.Error(t, err)
	require.NotNil(t, run)

	assert.Equal(t, model.OutcomeCanceled, run.Outcome)
	assert.Len(t, run.Attempts, 1, "attempt completed before cancel is kept")
	require.Len(t, store.runs, 1)
	assert.Equal(t, model.OutcomeCanceled, store.runs[0].Outcome)
}

func TestConvertFatalProviderError(t *testing.T) {
	p := &scriptedProvider{steps: []step{
		{err: &provider.AuthError{Provider: "anthropic", Err: eris.New("bad key")}},
	}}
	store := newMemStore(testCapture("cap-1"))
	o := NewOrchestrator(p, store, nil, Options{})

	run, err := o.Convert(context.Background(), "cap-1", nil)
	require.Error(t, err)
	var authErr *provider.AuthError
	assert.ErrorAs(t, err, &authErr)

	require.NotNil(t, run)
	assert.Equal(t, model.OutcomeProviderError, run.Outcome)
	require.Len(t, store.runs, 1)
}

func TestConvertAll(t *testing.T) {
	p := &scriptedProvider{steps: []step{{text: validResponse}}}
	store := newMemStore(testCapture("cap-1"), testCapture("cap-2"), testCapture("cap-3"))
	o := NewOrchestrator(p, store, nil, Options{Concurrency: 2})

	summaries, err := o.ConvertAll(context.Background(), []string{"cap-1", "cap-2", "cap-3", "cap-2"}, nil)
	require.NoError(t, err)

	require.Len(t, summaries, 3, "duplicate IDs collapse")
	for _, s := range summaries {
		assert.Equal(t, model.OutcomeSucceeded, s.Outcome)
		require.NotNil(t, s.Candidate)
		assert.Equal(t, 84, s.Candidate.Scores.Total)
	}
	assert.Len(t, store.converted, 3)
}

func TestRunSummaryOmitsPrompts(t *testing.T) {
	p := &scriptedProvider{steps: []step{{text: validResponse}}}
	store := newMemStore(testCapture("cap-1"))
	o := NewOrchestrator(p, store, nil, Options{})

	run, err := o.Convert(context.Background(), "cap-1", nil)
	require.NoError(t, err)

	s := run.Summary()
	assert.Equal(t, run.ID, s.RunID)
	assert.Equal(t, 1, s.Attempts)
	assert.Equal(t, model.OutcomeSucceeded, s.Outcome)
	assert.NotNil(t, s.Candidate)
}

func TestConvertInputHashStableAcrossRuns(t *testing.T) {
	p := &scriptedProvider{steps: []step{{text: validResponse}}}
	store := newMemStore(testCapture("cap-1"))
	o := NewOrchestrator(p, store, nil, Options{})

	first, err := o.Convert(context.Background(), "cap-1", nil)
	require.NoError(t, err)
	second, err := o.Convert(context.Background(), "cap-1", nil)
	require.NoError(t, err)

	// Same raw text, distinct runs, identical hash.
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.InputHash, second.InputHash)
	assert.Len(t, first.InputHash, 64)
}

func TestContentHashDiscriminates(t *testing.T) {
	texts := []string{
		"2019 Leflaive Puligny. Citrus, struck match.",
		"2019 Leflaive Puligny. Citrus, struck match. ", // trailing space
		"2019 leflaive puligny. citrus, struck match.",
		"2015 Barolo, tar and roses, firm grip.",
		"Pale straw, green apple, bracing acidity.",
		"",
	}

	seen := make(map[string]string, len(texts))
	for _, text := range texts {
		h := contentHash(text)
		assert.Len(t, h, 64)
		prev, dup := seen[h]
		assert.False(t, dup, "texts %q and %q share a hash", prev, text)
		seen[h] = text
	}

	assert.Equal(t, contentHash(texts[0]), contentHash(texts[0]))
}

func TestConvertRunSavedBeforeNoteFailure(t *testing.T) {
	p := &scriptedProvider{steps: []step{{text: validResponse}}}
	store := newMemStore(testCapture("cap-1"))
	store.noteErr = eris.New("disk full")
	o := NewOrchestrator(p, store, nil, Options{})

	_, err := o.Convert(context.Background(), "cap-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save note")

	// The attempt history survives the note failure; the capture stays
	// pending so a retry can supersede.
	require.Len(t, store.runs, 1)
	assert.Equal(t, model.OutcomeSucceeded, store.runs[0].Outcome)
	assert.Empty(t, store.notes)
	assert.Empty(t, store.converted)
}
