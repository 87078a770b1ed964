package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cellarworks/tasting-cli/internal/model"
)

func TestComputeRunStats(t *testing.T) {
	runs := []model.ConversionRun{
		{
			Outcome:     model.OutcomeSucceeded,
			Attempts:    []model.ConversionAttempt{{Ordinal: 1}},
			TotalTokens: 1000,
			TotalCost:   0.01,
		},
		{
			Outcome:     model.OutcomeSucceeded,
			Attempts:    []model.ConversionAttempt{{Ordinal: 1}, {Ordinal: 2}},
			TotalTokens: 2500,
			TotalCost:   0.03,
		},
		{
			Outcome:     model.OutcomeExhausted,
			Attempts:    []model.ConversionAttempt{{Ordinal: 1}, {Ordinal: 2}},
			TotalTokens: 2000,
			TotalCost:   0.02,
		},
		{
			Outcome: model.OutcomeProviderUnavailable,
		},
		{
			Outcome:  model.OutcomeProviderError,
			Attempts: []model.ConversionAttempt{{Ordinal: 1}},
		},
	}

	s := computeRunStats(runs)

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.FirstTry)
	assert.Equal(t, 1, s.Exhausted)
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, 1, s.Unavailable)
	assert.Equal(t, 6, s.Attempts)
	assert.Equal(t, 5500, s.TotalTokens)
	assert.InDelta(t, 0.06, s.TotalCost, 1e-9)
}

func TestComputeRunStatsEmpty(t *testing.T) {
	s := computeRunStats(nil)
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 0, s.Attempts)
}

func TestFormatRunsList(t *testing.T) {
	runs := []model.ConversionRun{
		{
			ID:        "aaaaaaaa-1111-2222-3333-444444444444",
			CaptureID: "bbbbbbbb-1111-2222-3333-444444444444",
			Outcome:   model.OutcomeSucceeded,
			Attempts:  []model.ConversionAttempt{{Ordinal: 1}},
			Provider:  "anthropic",
			TotalCost: 0.0123,
			CreatedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "aaaaaaaa")
	assert.Contains(t, out, "bbbbbbbb")
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "anthropic")
	assert.Contains(t, out, "$0.0123")
	assert.Contains(t, out, "2026-03-14 09:30")
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{
		Total:     3,
		Succeeded: 2,
		FirstTry:  1,
		Exhausted: 1,
		TotalCost: 0.05,
	})

	out := buf.String()
	assert.Contains(t, out, "Total runs:")
	assert.Contains(t, out, "Succeeded:")
	assert.Contains(t, out, "$0.0500")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "aaaaaaaa", truncateID("aaaaaaaa-1111-2222-3333-444444444444"))
	assert.Equal(t, "short", truncateID("short"))
}
