package convert

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cellarworks/tasting-cli/internal/model"
	"github.com/cellarworks/tasting-cli/internal/prompt"
	"github.com/cellarworks/tasting-cli/internal/provider"
	"github.com/cellarworks/tasting-cli/internal/schema"
)

// DefaultMaxAttempts bounds provider calls per run, including the first.
const DefaultMaxAttempts = 2

// Pricer attributes a USD cost to a completion call.
type Pricer interface {
	Completion(provider, model string, usage model.TokenUsage) float64
}

// loopResult is the terminal state of a repair loop: either a valid
// candidate or the last attempt's failure detail, always with the full
// attempt history.
type loopResult struct {
	attempts   []model.ConversionAttempt
	candidate  *model.NoteCandidate
	violations []model.Violation
	parseErr   string
}

func (r *loopResult) succeeded() bool { return r.candidate != nil }

// repairLoop submits a prompt and, while the response fails parsing or
// validation, rebuilds a repair prompt and resubmits, up to maxAttempts
// provider calls. Attempts run strictly sequentially; each depends on the
// previous attempt's failure detail. Every attempt is recorded before the
// loop moves on, so the history survives even an exhausted run.
type repairLoop struct {
	provider    provider.Provider
	pricer      Pricer
	maxAttempts int
}

// run drives the loop to a terminal state. A provider error aborts the loop;
// attempts completed before the error are still returned for persistence.
func (l *repairLoop) run(ctx context.Context, initial prompt.Prompt) (*loopResult, error) {
	result := &loopResult{}
	current := initial

	for ordinal := 1; ordinal <= l.maxAttempts; ordinal++ {
		start := time.Now()
		resp, err := l.provider.Submit(ctx, current)
		if err != nil {
			return result, err
		}

		attempt := model.ConversionAttempt{
			Ordinal:     ordinal,
			Prompt:      current.User,
			RawResponse: resp.Text,
			TokenUsage:  resp.Usage,
			Duration:    time.Since(start).Milliseconds(),
			CreatedAt:   time.Now().UTC(),
		}
		if l.pricer != nil {
			attempt.CostUSD = l.pricer.Completion(l.provider.Name(), l.provider.Model(), resp.Usage)
		}

		parsed, parseErr := Parse(resp.Text)
		if parseErr != nil {
			attempt.ParseError = parseErr.Diagnostic
			result.attempts = append(result.attempts, attempt)
			result.parseErr = parseErr.Diagnostic
			result.violations = nil

			zap.L().Warn("response failed to parse",
				zap.Int("attempt", ordinal),
				zap.String("diagnostic", parseErr.Diagnostic),
			)
			current = prompt.BuildRepair(initial, resp.Text, parseErr.Diagnostic, nil)
			continue
		}

		candidate, violations := schema.Validate(parsed)
		if len(violations) == 0 {
			attempt.Valid = true
			result.attempts = append(result.attempts, attempt)
			result.candidate = candidate
			result.parseErr = ""
			result.violations = nil
			return result, nil
		}

		attempt.Violations = violations
		result.attempts = append(result.attempts, attempt)
		result.parseErr = ""
		result.violations = violations

		zap.L().Warn("response failed validation",
			zap.Int("attempt", ordinal),
			zap.Int("violations", len(violations)),
		)
		current = prompt.BuildRepair(initial, resp.Text, "", violations)
	}

	return result, nil
}
