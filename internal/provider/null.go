package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cellarworks/tasting-cli/internal/prompt"
)

// ErrUnavailable is returned when no AI backend is configured. Callers fall
// back to a placeholder candidate instead of failing the whole operation.
var ErrUnavailable = eris.New("provider: no backend configured")

// nullProvider is the stand-in used when no API key is present.
type nullProvider struct{}

// NewNull returns the provider used when no backend is configured. Every
// Submit fails with ErrUnavailable.
func NewNull() Provider {
	return nullProvider{}
}

func (nullProvider) Name() string  { return "null" }
func (nullProvider) Model() string { return "" }

func (nullProvider) Submit(_ context.Context, _ prompt.Prompt) (*RawResponse, error) {
	return nil, ErrUnavailable
}
