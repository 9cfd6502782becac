package llm

import (
	"context"

	"github.com/sells-group/briefing-cli/pkg/anthropic"
	"github.com/sells-group/briefing-cli/pkg/openai"
)

// AnthropicBackend serves claude models through the Messages API.
type AnthropicBackend struct {
	client anthropic.Client
}

// NewAnthropicBackend wraps an Anthropic client.
func NewAnthropicBackend(client anthropic.Client) *AnthropicBackend {
	return &AnthropicBackend{client: client}
}

// Complete implements Backend.
func (b *AnthropicBackend) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := b.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(req.Model, req.Phase)
	return resp.Text(), nil
}

// OpenAIBackend serves chat models through chat completions. Temperature is
// not forwarded; reasoning models reject anything but their default.
type OpenAIBackend struct {
	client openai.Client
}

// NewOpenAIBackend wraps an OpenAI client.
func NewOpenAIBackend(client openai.Client) *OpenAIBackend {
	return &OpenAIBackend{client: client}
}

// Complete implements Backend.
func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := b.client.ChatCompletion(ctx, openai.ChatRequest{
		Model:     req.Model,
		System:    req.System,
		Prompt:    req.Prompt,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	resp.Usage.Log(req.Model, req.Phase)
	return resp.Content, nil
}
