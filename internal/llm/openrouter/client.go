// Package openrouter adapts the OpenAI-compatible OpenRouter chat API to llm.Provider.
package openrouter

import (
	"strings"
	"time"

	"resumind/internal/llm"
	"resumind/internal/llm/openaicompat"
)

const (
	DefaultModel   = "openrouter/free"
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultTimeout = 120 * time.Second
)

// Options configures the client.
type Options struct {
	APIKey   string
	Model    string
	BaseURL  string
	AppTitle string
	Referer  string
	Timeout  time.Duration
}

// Client implements llm.Provider against OpenRouter.
type Client = openaicompat.Client

// New builds a client. A missing API key is reported as *llm.ConfigError.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, &llm.ConfigError{Provider: llm.KindOpenRouter, EnvVar: "OPENROUTER_API_KEY"}
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return openaicompat.New(openaicompat.Options{
		Kind:    llm.KindOpenRouter,
		APIKey:  opts.APIKey,
		Model:   opts.Model,
		BaseURL: opts.BaseURL,
		Timeout: opts.Timeout,
		Headers: map[string]string{
			"X-Title":      opts.AppTitle,
			"HTTP-Referer": opts.Referer,
		},
	}), nil
}
