package runs

import (
	"context"

	"resumind/internal/pipeline"
	"resumind/internal/shared/telemetry"
)

// Sink projects status updates in process, for deployments without a broker.
type Sink struct {
	Projector *Projector
}

func (s Sink) Publish(ctx context.Context, u pipeline.StatusUpdate) {
	if s.Projector == nil {
		return
	}
	// The projection outlives the request; a cancelled client still gets its
	// final status recorded.
	if _, err := s.Projector.Apply(context.WithoutCancel(ctx), pipeline.MessageFor(u)); err != nil {
		telemetry.Warn("runs.project_failed", map[string]any{
			"run_id": u.RunID,
			"stage":  string(u.Stage),
			"err":    err,
		})
	}
}

var _ pipeline.StatusSink = Sink{}
