package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"resumind/internal/feedback"
	"resumind/internal/llm"
)

// RemoteError is a non-2xx answer from a remote analyze endpoint.
type RemoteError struct {
	Status     int
	StatusText string
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("Analyze API error: %d %s. %s", e.Status, e.StatusText, e.Body)
}

// RemoteClient calls POST {BaseURL}/api/analyze on another resumind server.
type RemoteClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewRemoteClient returns a client for baseURL. A zero timeout means none,
// leaving the server's own provider timeout in charge.
func NewRemoteClient(baseURL string, timeout time.Duration) *RemoteClient {
	return &RemoteClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// RequestAnalysis mirrors Gateway.RequestAnalysis over HTTP.
func (c *RemoteClient) RequestAnalysis(ctx context.Context, resumeText, jobTitle, jobDescription string) (feedback.Feedback, error) {
	payload, err := json.Marshal(AnalyzeRequest{
		ResumeText:     resumeText,
		JobTitle:       jobTitle,
		JobDescription: jobDescription,
	})
	if err != nil {
		return feedback.Feedback{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/analyze", bytes.NewReader(payload))
	if err != nil {
		return feedback.Feedback{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return feedback.Feedback{}, fmt.Errorf("call analyze API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return feedback.Feedback{}, fmt.Errorf("read analyze response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return feedback.Feedback{}, &RemoteError{
			Status:     resp.StatusCode,
			StatusText: llm.StatusTextFor(resp.StatusCode, resp.Status),
			Body:       string(body),
		}
	}
	return feedback.Decode(string(body))
}
