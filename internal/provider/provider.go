// Package provider abstracts the AI backends used for tasting note
// conversion. Every backend takes a finished prompt and returns raw text;
// parsing and validation of that text happen elsewhere. Backend failures
// are mapped onto a small error taxonomy so the conversion loop can decide
// what is fatal and what is worth retrying.
package provider

import (
	"context"

	"github.com/cellarworks/tasting-cli/internal/model"
	"github.com/cellarworks/tasting-cli/internal/prompt"
)

// RawResponse is the unparsed output of a single provider call.
type RawResponse struct {
	Text  string
	Model string
	Usage model.TokenUsage
}

// Provider submits prompts to an AI backend.
type Provider interface {
	// Name identifies the backend ("anthropic", "openai", "null").
	Name() string

	// Model reports the model identifier calls will use.
	Model() string

	// Submit sends the prompt and returns the raw completion text.
	// Errors are classified into the taxonomy in errors.go.
	Submit(ctx context.Context, p prompt.Prompt) (*RawResponse, error)
}
