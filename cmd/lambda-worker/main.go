// Command lambda-worker projects status messages delivered by an SQS event
// source mapping. Build with:
//
//	GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker
package main

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"resumind/internal/bootstrap"
	"resumind/internal/runs"
	"resumind/internal/shared/config"
	"resumind/internal/shared/telemetry"
)

var loadProjector = sync.OnceValues(func() (messageHandler, error) {
	store, err := bootstrap.OpenKV(context.Background(), config.Load())
	if err != nil {
		return nil, err
	}
	return runs.NewProjector(store), nil
})

type messageHandler interface {
	HandleMessage(ctx context.Context, body string) error
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	h, err := loadProjector()
	if err != nil {
		log.Printf("bootstrap error: %v", err)
		return events.SQSEventResponse{BatchItemFailures: allFailed(event)}, err
	}
	return processBatch(ctx, h, event), nil
}

// processBatch reports only store failures back to SQS; messages that can
// never be projected are logged and dropped.
func processBatch(ctx context.Context, h messageHandler, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		err := h.HandleMessage(ctx, record.Body)
		if err == nil {
			continue
		}
		var procErr runs.ErrProcess
		if errors.As(err, &procErr) {
			telemetry.Error("lambda.status.failed", map[string]any{
				"sqs_message_id": record.MessageId,
				"run_id":         procErr.RunID,
				"error":          err.Error(),
			})
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
			continue
		}
		meta := runs.ComputeMeta(record.Body)
		telemetry.Error("lambda.status.unrecoverable", map[string]any{
			"sqs_message_id": record.MessageId,
			"body_len":       meta.BodyLen,
			"body_sha256":    meta.BodySHA,
			"error":          err.Error(),
		})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func allFailed(event events.SQSEvent) []events.SQSBatchItemFailure {
	failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
	for _, record := range event.Records {
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return failures
}

func main() {
	lambda.Start(handler)
}
