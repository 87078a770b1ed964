package provider

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/cellarworks/tasting-cli/internal/model"
	"github.com/cellarworks/tasting-cli/internal/prompt"
	"github.com/cellarworks/tasting-cli/pkg/openai"
)

// openaiProvider adapts pkg/openai to the Provider interface.
type openaiProvider struct {
	client openai.Client
	model  string
}

// NewOpenAI creates a Provider backed by the OpenAI chat completions API.
func NewOpenAI(client openai.Client, model string) Provider {
	return &openaiProvider{client: client, model: model}
}

func (p *openaiProvider) Name() string  { return "openai" }
func (p *openaiProvider) Model() string { return p.model }

func (p *openaiProvider) Submit(ctx context.Context, pr prompt.Prompt) (*RawResponse, error) {
	resp, err := p.client.ChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.Message{
			{Role: "system", Content: pr.System},
			{Role: "user", Content: pr.User},
		},
	})
	if err != nil {
		var statusErr *openai.StatusError
		if errors.As(err, &statusErr) {
			return nil, classifyStatus(p.Name(), statusErr.Code, err)
		}
		return nil, classifyTransport(p.Name(), err)
	}

	if len(resp.Choices) == 0 {
		return nil, eris.New("openai: response has no choices")
	}

	return &RawResponse{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
