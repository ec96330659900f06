package llm

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// StatusError is a non-2xx response from the provider.
type StatusError struct {
	Provider   ProviderKind
	StatusCode int
	StatusText string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error %d %s", e.Provider.DisplayName(), e.StatusCode, e.StatusText)
}

// TransportError means the request never produced a response.
type TransportError struct {
	Provider ProviderKind
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("Failed to call %s API: %v", e.Provider.DisplayName(), e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// EnvelopeError is a 2xx response whose envelope could not be unwrapped into
// completion text.
type EnvelopeError struct {
	Provider ProviderKind
	Message  string
	Details  string
	Err      error
}

func (e *EnvelopeError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s API response missing completion content", e.Provider.DisplayName())
}

func (e *EnvelopeError) Unwrap() error { return e.Err }

// ConfigError reports a missing credential or setting.
type ConfigError struct {
	Provider ProviderKind
	EnvVar   string
}

func (e *ConfigError) Error() string {
	return e.EnvVar + " environment variable is not configured"
}

// StatusTextFor extracts the reason phrase from an http.Response status line,
// falling back to the standard text for code.
func StatusTextFor(code int, statusLine string) string {
	prefix := strconv.Itoa(code) + " "
	if text := strings.TrimSpace(strings.TrimPrefix(statusLine, prefix)); text != "" && text != statusLine {
		return text
	}
	return http.StatusText(code)
}
