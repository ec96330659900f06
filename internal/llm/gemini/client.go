// Package gemini adapts the Gemini API (google.golang.org/genai) to llm.Provider.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/genai"

	"resumind/internal/llm"
)

const (
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 120 * time.Second
)

// Options configures the client. BaseURL is only set in tests.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Client implements llm.Provider against Gemini.
type Client struct {
	client *genai.Client
	model  string
}

// New builds a client. A missing API key is reported as *llm.ConfigError.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, &llm.ConfigError{Provider: llm.KindGemini, EnvVar: "GEMINI_API_KEY"}
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: opts.Timeout},
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(opts.BaseURL, "/") + "/"}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Client{client: client, model: opts.Model}, nil
}

func (c *Client) Kind() llm.ProviderKind { return llm.KindGemini }

func (c *Client) Model() string { return c.model }

// Complete calls GenerateContent once and returns the concatenated text parts.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](float32(req.Temperature)),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), config)
	if err != nil {
		return "", classify(err)
	}
	text := resp.Text()
	if text == "" {
		details := ""
		if raw, mErr := json.Marshal(resp); mErr == nil {
			details = string(raw)
		}
		return "", &llm.EnvelopeError{
			Provider: llm.KindGemini,
			Message:  "Gemini API response missing candidates[0].content.parts",
			Details:  details,
		}
	}
	return text, nil
}

func classify(err error) error {
	if apiErr, ok := asAPIError(err); ok {
		body, _ := json.Marshal(map[string]any{
			"code":    apiErr.Code,
			"status":  apiErr.Status,
			"message": apiErr.Message,
		})
		return &llm.StatusError{
			Provider:   llm.KindGemini,
			StatusCode: apiErr.Code,
			StatusText: llm.StatusTextFor(apiErr.Code, ""),
			Body:       string(body),
		}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &llm.TransportError{Provider: llm.KindGemini, Err: err}
	}
	return &llm.EnvelopeError{
		Provider: llm.KindGemini,
		Message:  "Failed to parse Gemini API response",
		Details:  err.Error(),
		Err:      err,
	}
}

// asAPIError accepts both the value and pointer forms genai may return.
func asAPIError(err error) (genai.APIError, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return *p, true
	}
	return genai.APIError{}, false
}

var _ llm.Provider = (*Client)(nil)
