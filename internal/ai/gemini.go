package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider calls the Gemini generateContent API.
type GeminiProvider struct {
	baseURL   string
	maxTokens int32
}

// NewGeminiProvider creates a Gemini provider. baseURL may be empty.
func NewGeminiProvider(baseURL string, maxTokens int) *GeminiProvider {
	return &GeminiProvider{baseURL: baseURL, maxTokens: int32(tokenLimit(maxTokens))}
}

// Generate sends prompt as user content and concatenates the text parts of the first
// candidate that has any.
func (p *GeminiProvider) Generate(ctx context.Context, apiKey, model, prompt string) (string, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", &ProviderError{Provider: ProviderGemini, Message: "failed to create client", Err: err}
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: p.maxTokens,
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &ProviderError{Provider: ProviderGemini, StatusCode: apiErr.Code, Err: err}
		}
		var apiErrPtr *genai.APIError
		if errors.As(err, &apiErrPtr) {
			return "", &ProviderError{Provider: ProviderGemini, StatusCode: apiErrPtr.Code, Err: err}
		}
		return "", &ProviderError{Provider: ProviderGemini, Err: err}
	}

	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range candidate.Content.Parts {
			if part != nil && !part.Thought {
				sb.WriteString(part.Text)
			}
		}
		if sb.Len() > 0 {
			return sb.String(), nil
		}
	}
	return "", &ProviderError{Provider: ProviderGemini, Message: "response contained no text content"}
}
