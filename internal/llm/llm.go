// Package llm defines the completion-provider seam used by the analysis
// gateway. Adapters only shape requests and unwrap response envelopes; they
// never interpret the completion text.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// ProviderKind tags the configured completion backend.
type ProviderKind string

const (
	KindOpenRouter ProviderKind = "openrouter"
	KindOllama     ProviderKind = "ollama"
	KindGemini     ProviderKind = "gemini"
)

// ParseProviderKind maps LLM_PROVIDER values onto a ProviderKind.
func ParseProviderKind(raw string) (ProviderKind, error) {
	switch ProviderKind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindOpenRouter, "":
		return KindOpenRouter, nil
	case KindOllama:
		return KindOllama, nil
	case KindGemini, "google":
		return KindGemini, nil
	default:
		return "", fmt.Errorf("unknown LLM_PROVIDER %q (want openrouter, ollama or gemini)", raw)
	}
}

// DisplayName is the provider name used in user-facing error messages.
func (k ProviderKind) DisplayName() string {
	switch k {
	case KindOpenRouter:
		return "OpenRouter"
	case KindOllama:
		return "Ollama"
	case KindGemini:
		return "Gemini"
	default:
		return string(k)
	}
}

// CompletionRequest is a single-turn chat completion.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// JSONMode asks backends that support it to constrain output to JSON.
	JSONMode bool
}

// Provider performs one completion and returns the raw completion text.
//
// Implementations report failures as *StatusError, *TransportError,
// *EnvelopeError or *ConfigError.
type Provider interface {
	Kind() ProviderKind
	Model() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
