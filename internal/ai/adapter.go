// Package ai sends review prompts to a configurable large-language-model provider.
package ai

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/aimd54/component-directory/internal/config"
	"github.com/aimd54/component-directory/internal/metrics"
	"github.com/aimd54/component-directory/pkg/logger"
)

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Provider is one LLM backend. Implementations own their request and response shapes,
// return the model's plain text, and never retry.
type Provider interface {
	Generate(ctx context.Context, apiKey, model, prompt string) (string, error)
}

// Request is a single generation request. Empty APIKey or Model fall back to the
// configured defaults for the provider.
type Request struct {
	Provider string
	APIKey   string
	Model    string
	Prompt   string
}

// Result is the generated text and the backend that produced it.
type Result struct {
	Text     string
	Provider string
	Model    string
}

// Adapter dispatches requests to the named provider.
type Adapter struct {
	providers       map[string]Provider
	defaults        map[string]config.AIProviderConfig
	defaultProvider string
	timeout         time.Duration
	log             *logger.Logger
}

// NewAdapter creates an adapter with the Anthropic, OpenAI and Gemini providers.
func NewAdapter(cfg *config.AIConfig, log *logger.Logger) *Adapter {
	providers := map[string]Provider{
		ProviderAnthropic: NewAnthropicProvider(cfg.Anthropic.BaseURL, cfg.MaxTokens),
		ProviderOpenAI:    NewOpenAIProvider(cfg.OpenAI.BaseURL, cfg.MaxTokens),
		ProviderGemini:    NewGeminiProvider(cfg.Gemini.BaseURL, cfg.MaxTokens),
	}
	return NewAdapterWithProviders(providers, cfg, log)
}

// NewAdapterWithProviders creates an adapter over explicit providers (for testing).
func NewAdapterWithProviders(providers map[string]Provider, cfg *config.AIConfig, log *logger.Logger) *Adapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Adapter{
		providers: providers,
		defaults: map[string]config.AIProviderConfig{
			ProviderAnthropic: cfg.Anthropic,
			ProviderOpenAI:    cfg.OpenAI,
			ProviderGemini:    cfg.Gemini,
		},
		defaultProvider: cfg.DefaultProvider,
		timeout:         timeout,
		log:             log,
	}
}

// Providers returns the registered provider names, sorted.
func (a *Adapter) Providers() []string {
	names := make([]string, 0, len(a.providers))
	for name := range a.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate sends the prompt to the requested provider and returns its text output.
func (a *Adapter) Generate(ctx context.Context, req Request) (*Result, error) {
	name := strings.ToLower(strings.TrimSpace(req.Provider))
	if name == "" {
		name = a.defaultProvider
	}

	provider, ok := a.providers[name]
	if !ok {
		return nil, &ProviderError{Provider: name, Message: "unknown provider"}
	}

	defaults := a.defaults[name]
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = defaults.APIKey
	}
	model := req.Model
	if model == "" {
		model = defaults.Model
	}
	if apiKey == "" {
		return nil, &ProviderError{Provider: name, Message: "no API key configured"}
	}
	if model == "" {
		return nil, &ProviderError{Provider: name, Message: "no model configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	text, err := provider.Generate(ctx, apiKey, model, req.Prompt)
	elapsed := time.Since(start)

	if err == nil && strings.TrimSpace(text) == "" {
		err = &ProviderError{Provider: name, Message: "response contained no text content"}
	}
	if err != nil {
		metrics.ObserveProviderCall(name, "error", elapsed.Seconds())
		var providerErr *ProviderError
		if !errors.As(err, &providerErr) {
			err = &ProviderError{Provider: name, Err: err}
		}
		a.log.Warn().
			Err(err).
			Str("provider", name).
			Str("model", model).
			Dur("duration", elapsed).
			Msg("AI provider call failed")
		return nil, err
	}

	metrics.ObserveProviderCall(name, "success", elapsed.Seconds())
	a.log.Debug().
		Str("provider", name).
		Str("model", model).
		Int("response_chars", len(text)).
		Dur("duration", elapsed).
		Msg("AI provider call succeeded")

	return &Result{Text: text, Provider: name, Model: model}, nil
}
