// Package ollama adapts a local Ollama server to llm.Provider through its
// OpenAI-compatible /v1 API.
package ollama

import (
	"strings"
	"time"

	"resumind/internal/llm"
	"resumind/internal/llm/openaicompat"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.1"
	DefaultTimeout = 120 * time.Second

	// Ollama ignores the key, but the OpenAI wire format expects one.
	placeholderKey = "ollama"
)

// Client implements llm.Provider against Ollama.
type Client = openaicompat.Client

// New builds a client for the server at baseURL. Ollama needs no credential.
func New(baseURL, model string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return openaicompat.New(openaicompat.Options{
		Kind:       llm.KindOllama,
		APIKey:     placeholderKey,
		Model:      model,
		BaseURL:    strings.TrimRight(baseURL, "/") + "/v1",
		Timeout:    timeout,
		JSONObject: true,
	})
}
