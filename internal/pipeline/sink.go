package pipeline

import (
	"context"
	"time"

	"resumind/internal/queue"
	"resumind/internal/shared/telemetry"
)

// StatusUpdate is one observable transition of a run.
type StatusUpdate struct {
	RunID     string
	RequestID string
	Stage     Stage
	Status    string
	RecordID  string
	Failed    bool
	At        time.Time
}

// StatusSink receives every status change of a run, in order.
type StatusSink interface {
	Publish(ctx context.Context, u StatusUpdate)
}

// SinkFunc adapts a function to StatusSink.
type SinkFunc func(ctx context.Context, u StatusUpdate)

func (f SinkFunc) Publish(ctx context.Context, u StatusUpdate) { f(ctx, u) }

// LogSink writes each update as a structured log line.
type LogSink struct{}

func (LogSink) Publish(_ context.Context, u StatusUpdate) {
	fields := map[string]any{
		"run_id": u.RunID,
		"stage":  string(u.Stage),
		"status": u.Status,
	}
	if u.RequestID != "" {
		fields["request_id"] = u.RequestID
	}
	if u.RecordID != "" {
		fields["record_id"] = u.RecordID
	}
	if u.Failed {
		telemetry.Warn("pipeline.status", fields)
		return
	}
	telemetry.Info("pipeline.status", fields)
}

// QueueSink forwards updates to a broker. Send failures are logged and dropped;
// status publishing never fails a run.
type QueueSink struct {
	Client queue.Client
}

func (s QueueSink) Publish(ctx context.Context, u StatusUpdate) {
	if s.Client == nil {
		return
	}
	if err := s.Client.Send(ctx, MessageFor(u)); err != nil {
		telemetry.Warn("pipeline.status_publish_failed", map[string]any{
			"run_id": u.RunID,
			"stage":  string(u.Stage),
			"err":    err,
		})
	}
}

// MessageFor is the broker representation of u.
func MessageFor(u StatusUpdate) queue.Message {
	return queue.Message{
		RunID:      u.RunID,
		RequestID:  u.RequestID,
		RecordID:   u.RecordID,
		Stage:      string(u.Stage),
		Status:     u.Status,
		Failed:     u.Failed,
		OccurredAt: u.At.UTC().Format(time.RFC3339Nano),
		Version:    queue.MessageVersion,
	}
}

// MultiSink fans an update out to each sink in order.
type MultiSink []StatusSink

func (m MultiSink) Publish(ctx context.Context, u StatusUpdate) {
	for _, s := range m {
		if s != nil {
			s.Publish(ctx, u)
		}
	}
}
