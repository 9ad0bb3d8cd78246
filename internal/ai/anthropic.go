package ai

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	baseURL   string
	maxTokens int64
}

// NewAnthropicProvider creates an Anthropic provider. baseURL may be empty.
func NewAnthropicProvider(baseURL string, maxTokens int) *AnthropicProvider {
	return &AnthropicProvider{baseURL: baseURL, maxTokens: tokenLimit(maxTokens)}
}

// Generate sends prompt as a single user message.
func (p *AnthropicProvider) Generate(ctx context.Context, apiKey, model, prompt string) (string, error) {
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithMaxRetries(0),
	}
	if p.baseURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(p.baseURL))
	}
	client := anthropic.NewClient(opts...)

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: p.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &ProviderError{Provider: ProviderAnthropic, StatusCode: apiErr.StatusCode, Err: err}
		}
		return "", &ProviderError{Provider: ProviderAnthropic, Err: err}
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &ProviderError{Provider: ProviderAnthropic, Message: "response contained no text content"}
	}
	return sb.String(), nil
}

func tokenLimit(maxTokens int) int64 {
	switch {
	case maxTokens <= 0:
		return 4096
	case maxTokens > math.MaxInt32:
		return math.MaxInt32
	}
	return int64(maxTokens)
}
