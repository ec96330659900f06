package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"resumind/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Options{APIKey: "sk-test", BaseURL: srv.URL, AppTitle: "Resumind"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCompleteReturnsMessageContent(t *testing.T) {
	var gotBody map[string]any
	var gotAuth, gotTitle string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTitle = r.Header.Get("X-Title")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"openrouter/free","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"overallScore\":1}"}}]}`))
	})

	got, err := c.Complete(context.Background(), llm.AnalysisRequest("resume", "title", "desc"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"overallScore":1}` {
		t.Fatalf("unexpected content %q", got)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotTitle != "Resumind" {
		t.Fatalf("unexpected X-Title %q", gotTitle)
	}
	if gotBody["model"] != DefaultModel {
		t.Fatalf("unexpected model %v", gotBody["model"])
	}
	if gotBody["temperature"] != 0.7 {
		t.Fatalf("unexpected temperature %v", gotBody["temperature"])
	}
	if msgs, _ := gotBody["messages"].([]any); len(msgs) != 2 {
		t.Fatalf("expected system+user messages, got %v", gotBody["messages"])
	}
}

func TestCompleteMapsNon2xxToStatusError(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","code":429}}`))
	})

	_, err := c.Complete(context.Background(), llm.AnalysisRequest("r", "t", "d"))
	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %T %v", err, err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected status %d", statusErr.StatusCode)
	}
	if statusErr.Body != `{"error":{"message":"rate limited","code":429}}` {
		t.Fatalf("body not kept verbatim: %q", statusErr.Body)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestCompleteMissingContentIsEnvelopeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	})

	_, err := c.Complete(context.Background(), llm.AnalysisRequest("r", "t", "d"))
	var envErr *llm.EnvelopeError
	if !errors.As(err, &envErr) {
		t.Fatalf("expected EnvelopeError, got %T %v", err, err)
	}
}

func TestCompleteUnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c, err := New(Options{APIKey: "sk-test", BaseURL: base})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Complete(context.Background(), llm.AnalysisRequest("r", "t", "d"))
	var transportErr *llm.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %T %v", err, err)
	}
}

func TestNewWithoutKeyIsConfigError(t *testing.T) {
	_, err := New(Options{})
	var cfgErr *llm.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.EnvVar != "OPENROUTER_API_KEY" {
		t.Fatalf("expected ConfigError for OPENROUTER_API_KEY, got %v", err)
	}
}
