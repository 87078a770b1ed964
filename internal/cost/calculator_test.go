package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cellarworks/tasting-cli/internal/model"
)

func testRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"sonnet": {Input: 3.00, Output: 15.00},
		},
		OpenAI: map[string]ModelRate{
			"gpt-4o": {Input: 2.50, Output: 10.00},
		},
	}
}

func TestCompletion(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name     string
		provider string
		model    string
		usage    model.TokenUsage
		want     float64
	}{
		{
			name:     "anthropic sonnet",
			provider: "anthropic",
			model:    "sonnet",
			usage:    model.TokenUsage{InputTokens: 1_000_000, OutputTokens: 100_000},
			want:     3.00 + 1.50,
		},
		{
			name:     "openai gpt-4o",
			provider: "openai",
			model:    "gpt-4o",
			usage:    model.TokenUsage{InputTokens: 2_000_000, OutputTokens: 500_000},
			want:     5.00 + 5.00,
		},
		{
			name:     "unknown model costs zero",
			provider: "anthropic",
			model:    "unknown",
			usage:    model.TokenUsage{InputTokens: 1_000_000},
			want:     0,
		},
		{
			name:     "unknown provider costs zero",
			provider: "null",
			model:    "sonnet",
			usage:    model.TokenUsage{InputTokens: 1_000_000},
			want:     0,
		},
		{
			name:     "zero usage",
			provider: "anthropic",
			model:    "sonnet",
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Completion(tt.provider, tt.model, tt.usage)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestDefaultRatesCoverConfiguredModels(t *testing.T) {
	t.Parallel()
	rates := DefaultRates()

	assert.NotEmpty(t, rates.Anthropic)
	assert.NotEmpty(t, rates.OpenAI)
	assert.Contains(t, rates.Anthropic, "claude-sonnet-4-20250514")
	assert.Contains(t, rates.OpenAI, "gpt-4o")
}
