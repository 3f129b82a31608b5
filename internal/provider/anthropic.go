package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicSystemPrompt = "You summarize documents for a personal memory store. " +
	"Respond with the summary text only."

// AnthropicSummarizer generates summaries with the Anthropic API.
type AnthropicSummarizer struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicSummarizer creates a summarizer backed by the Anthropic
// API. Options: model (default claude-3-5-haiku-latest), api_key. The
// SDK falls back to ANTHROPIC_API_KEY when no key is configured.
func NewAnthropicSummarizer(opts map[string]string) *AnthropicSummarizer {
	model := opts["model"]
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	var clientOpts []option.RequestOption
	if key := opts["api_key"]; key != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(key))
	}
	client := anthropic.NewClient(clientOpts...)
	return &AnthropicSummarizer{client: &client, model: model}
}

func (s *AnthropicSummarizer) Summarize(ctx context.Context, req SummarizeRequest) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(summaryPrompt(req))),
		},
		System: []anthropic.TextBlockParam{
			{Text: anthropicSystemPrompt},
		},
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text in anthropic response")
	}
	return clampSummary(text, req.MaxLength), nil
}

func (s *AnthropicSummarizer) ModelName() string { return s.model }
