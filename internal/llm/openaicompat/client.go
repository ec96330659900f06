// Package openaicompat talks to any OpenAI-compatible chat completions
// endpoint. OpenRouter and Ollama's /v1 API are both served through it.
package openaicompat

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"resumind/internal/llm"
)

const DefaultTimeout = 120 * time.Second

// Options configures a Client.
type Options struct {
	Kind    llm.ProviderKind
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
	// JSONObject sends response_format json_object for requests in JSON mode.
	JSONObject bool
}

// Client implements llm.Provider over the chat completions API.
type Client struct {
	client     openai.Client
	kind       llm.ProviderKind
	model      string
	jsonObject bool
}

// New builds a client. The caller validates credentials.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/") + "/"),
		option.WithHTTPClient(&http.Client{Timeout: opts.Timeout}),
		// retry policy belongs to the caller
		option.WithMaxRetries(0),
	}
	for k, v := range opts.Headers {
		if v != "" {
			reqOpts = append(reqOpts, option.WithHeader(k, v))
		}
	}
	return &Client{
		client:     openai.NewClient(reqOpts...),
		kind:       opts.Kind,
		model:      opts.Model,
		jsonObject: opts.JSONObject,
	}
}

func (c *Client) Kind() llm.ProviderKind { return c.kind }

func (c *Client) Model() string { return c.model }

// Complete sends one chat completion and returns choices[0].message.content.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSONMode && c.jsonObject {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", Classify(c.kind, err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", &llm.EnvelopeError{
			Provider: c.kind,
			Message:  c.kind.DisplayName() + " API response missing choices[0].message.content",
			Details:  completion.RawJSON(),
		}
	}
	return completion.Choices[0].Message.Content, nil
}

// Classify maps an openai-go error onto the llm error kinds. A non-2xx
// response keeps the provider's body exactly as sent.
func Classify(kind llm.ProviderKind, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		statusLine := ""
		body, ok := "", false
		if apiErr.Response != nil {
			statusLine = apiErr.Response.Status
			body, ok = readBody(apiErr.Response)
		}
		if !ok {
			body = apiErr.RawJSON()
		}
		if !ok && body == "" {
			body = apiErr.Error()
		}
		return &llm.StatusError{
			Provider:   kind,
			StatusCode: apiErr.StatusCode,
			StatusText: llm.StatusTextFor(apiErr.StatusCode, statusLine),
			Body:       body,
		}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &llm.TransportError{Provider: kind, Err: err}
	}
	// a 2xx body the SDK could not decode
	return &llm.EnvelopeError{
		Provider: kind,
		Message:  "Failed to parse " + kind.DisplayName() + " API response",
		Details:  err.Error(),
		Err:      err,
	}
}

// readBody returns the error response body, which the SDK leaves readable.
func readBody(resp *http.Response) (string, bool) {
	if resp.Body == nil {
		return "", false
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

var _ llm.Provider = (*Client)(nil)
