// Package analysis turns résumé text plus a target job into structured
// feedback by way of a configured completion provider.
package analysis

import (
	"context"
	"time"

	"resumind/internal/feedback"
	"resumind/internal/llm"
	"resumind/internal/shared/metrics"
	"resumind/internal/shared/telemetry"
)

// Gateway performs one analysis per call. It never retries.
type Gateway struct {
	provider llm.Provider
}

// NewGateway wraps provider.
func NewGateway(provider llm.Provider) *Gateway {
	return &Gateway{provider: provider}
}

// Provider returns the configured backend.
func (g *Gateway) Provider() llm.Provider { return g.provider }

// RequestAnalysis sends the analysis prompt and decodes the completion.
// Failures are *GatewayError.
func (g *Gateway) RequestAnalysis(ctx context.Context, resumeText, jobTitle, jobDescription string) (feedback.Feedback, error) {
	start := time.Now()
	kind := g.provider.Kind()

	fb, err := g.request(ctx, resumeText, jobTitle, jobDescription)

	outcome := "ok"
	fields := map[string]any{
		"provider":    string(kind),
		"model":       g.provider.Model(),
		"duration_ms": time.Since(start).Milliseconds(),
		"prompt_len":  len(resumeText),
	}
	if err != nil {
		gwErr := classify(kind, err)
		outcome = string(gwErr.Kind)
		fields["outcome"] = outcome
		fields["error"] = gwErr.Message
		if gwErr.Status != 0 {
			fields["upstream_status"] = gwErr.Status
		}
		telemetry.Error("analysis.gateway", fields)
		metrics.ObserveGateway(outcome, metrics.SinceMillis(start))
		return feedback.Feedback{}, gwErr
	}
	fields["outcome"] = outcome
	fields["overall_score"] = fb.OverallScore
	telemetry.Info("analysis.gateway", fields)
	metrics.ObserveGateway(outcome, metrics.SinceMillis(start))
	return fb, nil
}

func (g *Gateway) request(ctx context.Context, resumeText, jobTitle, jobDescription string) (feedback.Feedback, error) {
	text, err := g.provider.Complete(ctx, llm.AnalysisRequest(resumeText, jobTitle, jobDescription))
	if err != nil {
		return feedback.Feedback{}, err
	}
	return feedback.Decode(text)
}
