package model

import "time"

// RunOutcome is the terminal state of a conversion run.
type RunOutcome string

const (
	// OutcomeSucceeded means an attempt produced a schema-valid candidate.
	OutcomeSucceeded RunOutcome = "succeeded"
	// OutcomeExhausted means every attempt failed parse or validation.
	OutcomeExhausted RunOutcome = "exhausted"
	// OutcomeCanceled means the caller canceled mid-run; attempts completed
	// before cancellation are preserved.
	OutcomeCanceled RunOutcome = "canceled"
	// OutcomeProviderUnavailable means no provider was configured. Not an
	// error: the run carries a placeholder candidate instead.
	OutcomeProviderUnavailable RunOutcome = "provider_unavailable"
	// OutcomeProviderError means the backend failed fatally after transport
	// retries were spent. Attempts completed before the failure are kept.
	OutcomeProviderError RunOutcome = "provider_error"
)

// Violation is a single schema violation found by the validator.
type Violation struct {
	Field   string `json:"field"`
	Kind    string `json:"kind"` // "missing", "range", "enum", "type", "consistency"
	Message string `json:"message"`
}

// ConversionAttempt records one provider round-trip. Immutable once recorded.
type ConversionAttempt struct {
	Ordinal     int         `json:"ordinal"` // 1-based
	Prompt      string      `json:"prompt"`
	RawResponse string      `json:"raw_response"`
	ParseError  string      `json:"parse_error,omitempty"`
	Violations  []Violation `json:"violations,omitempty"`
	Valid       bool        `json:"valid"`
	TokenUsage  TokenUsage  `json:"token_usage"`
	CostUSD     float64     `json:"cost_usd"`
	Duration    int64       `json:"duration_ms"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ConversionRun aggregates the full ordered attempt history for one capture
// plus the terminal outcome. Append-only; a retry supersedes with a new run.
type ConversionRun struct {
	ID        string    `json:"id"`
	CaptureID string    `json:"capture_id"`
	CreatedAt time.Time `json:"created_at"`

	Provider      string `json:"provider"`
	Model         string `json:"model"`
	PromptVersion string `json:"prompt_version"`
	InputHash     string `json:"input_hash"` // sha256 of the raw text

	Attempts []ConversionAttempt `json:"attempts"`
	Outcome  RunOutcome          `json:"outcome"`
	// Candidate is set when Outcome is succeeded or provider_unavailable
	// (placeholder in the latter case).
	Candidate *NoteCandidate `json:"candidate,omitempty"`
	// Violations holds the final attempt's violations when exhausted.
	Violations []Violation `json:"violations,omitempty"`
	Error      string      `json:"error,omitempty"`

	TotalTokens int     `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost"`
}

// TokenUsage tallies provider token consumption for an attempt.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates usage from another attempt.
func (u *TokenUsage) Add(o TokenUsage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
}

// RunSummary is the caller-facing view of a run: outcome, candidate, and
// violations, without the internal attempt prompts.
type RunSummary struct {
	RunID      string         `json:"run_id"`
	CaptureID  string         `json:"capture_id"`
	Outcome    RunOutcome     `json:"outcome"`
	Candidate  *NoteCandidate `json:"candidate,omitempty"`
	Violations []Violation    `json:"violations,omitempty"`
	Attempts   int            `json:"attempts"`
	TotalCost  float64        `json:"total_cost"`
}

// Summary derives the caller-facing view from a run.
func (r *ConversionRun) Summary() RunSummary {
	return RunSummary{
		RunID:      r.ID,
		CaptureID:  r.CaptureID,
		Outcome:    r.Outcome,
		Candidate:  r.Candidate,
		Violations: r.Violations,
		Attempts:   len(r.Attempts),
		TotalCost:  r.TotalCost,
	}
}
