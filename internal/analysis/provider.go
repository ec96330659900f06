package analysis

import (
	"context"
	"errors"
	"time"

	"resumind/internal/llm"
	"resumind/internal/llm/gemini"
	"resumind/internal/llm/ollama"
	"resumind/internal/llm/openrouter"
	"resumind/internal/shared/config"
	"resumind/internal/shared/telemetry"
)

// NewProvider builds the adapter selected by cfg.LLMProvider. A missing
// credential does not fail startup: the returned provider reports the
// *llm.ConfigError on every call so the endpoint can surface it.
func NewProvider(ctx context.Context, cfg config.Config) (llm.Provider, error) {
	kind, err := llm.ParseProviderKind(cfg.LLMProvider)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.LLMTimeoutSeconds) * time.Second

	var provider llm.Provider
	switch kind {
	case llm.KindOllama:
		provider = ollama.New(cfg.OllamaBaseURL, cfg.OllamaModel, timeout)
	case llm.KindGemini:
		provider, err = gemini.New(ctx, gemini.Options{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Timeout: timeout,
		})
	default:
		provider, err = openrouter.New(openrouter.Options{
			APIKey:   cfg.OpenRouterAPIKey,
			Model:    cfg.OpenRouterModel,
			BaseURL:  cfg.OpenRouterBaseURL,
			AppTitle: cfg.OpenRouterAppTitle,
			Referer:  cfg.OpenRouterReferer,
			Timeout:  timeout,
		})
	}

	var cfgErr *llm.ConfigError
	if errors.As(err, &cfgErr) {
		telemetry.Warn("analysis.provider_unconfigured", map[string]any{
			"provider": string(kind),
			"env":      cfgErr.EnvVar,
		})
		return unconfigured{kind: kind, err: cfgErr}, nil
	}
	if err != nil {
		return nil, err
	}
	telemetry.Info("analysis.provider_ready", map[string]any{
		"provider": string(kind),
		"model":    provider.Model(),
	})
	return provider, nil
}

type unconfigured struct {
	kind llm.ProviderKind
	err  *llm.ConfigError
}

func (u unconfigured) Kind() llm.ProviderKind { return u.kind }

func (u unconfigured) Model() string { return "" }

func (u unconfigured) Complete(context.Context, llm.CompletionRequest) (string, error) {
	return "", u.err
}
