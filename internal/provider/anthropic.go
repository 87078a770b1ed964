package provider

import (
	"context"
	"errors"

	"github.com/cellarworks/tasting-cli/internal/model"
	"github.com/cellarworks/tasting-cli/internal/prompt"
	"github.com/cellarworks/tasting-cli/pkg/anthropic"
)

const anthropicMaxTokens = 4096

// anthropicProvider adapts pkg/anthropic to the Provider interface.
type anthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates a Provider backed by the Anthropic messages API.
func NewAnthropic(client anthropic.Client, model string) Provider {
	return &anthropicProvider{client: client, model: model}
}

func (p *anthropicProvider) Name() string  { return "anthropic" }
func (p *anthropicProvider) Model() string { return p.model }

func (p *anthropicProvider) Submit(ctx context.Context, pr prompt.Prompt) (*RawResponse, error) {
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.model,
		MaxTokens: anthropicMaxTokens,
		System:    pr.System,
		Messages: []anthropic.Message{
			{Role: "user", Content: pr.User},
		},
	})
	if err != nil {
		var statusErr *anthropic.StatusError
		if errors.As(err, &statusErr) {
			return nil, classifyStatus(p.Name(), statusErr.Code, err)
		}
		return nil, classifyTransport(p.Name(), err)
	}

	return &RawResponse{
		Text:  resp.Text,
		Model: resp.Model,
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}
