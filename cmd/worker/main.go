// Command worker consumes pipeline status messages from SQS or RabbitMQ and
// folds them into the run projection served by GET /api/v1/runs/:id.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"resumind/internal/bootstrap"
	"resumind/internal/runs"
	"resumind/internal/shared/config"
	"resumind/internal/shared/storage/kv"
	"resumind/internal/shared/telemetry"
)

const (
	defaultVisibilitySeconds  = 60
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
)

// messageHandler is satisfied by *runs.Projector.
type messageHandler interface {
	HandleMessage(ctx context.Context, body string) error
}

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenKV(ctx, cfg)
	if err != nil {
		log.Fatalf("open kv: %v", err)
	}
	if c, ok := store.(kv.Closer); ok {
		defer c.Close()
	}
	projector := runs.NewProjector(store)

	concurrency := envInt("WORKER_CONCURRENCY", defaultWorkerConcurrency)
	shutdownTimeout := time.Duration(envInt("WORKER_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	switch cfg.StatusQueue {
	case "sqs":
		err = runSQS(ctx, cfg, projector, concurrency, shutdownTimeout)
	case "amqp":
		err = runAMQP(ctx, cfg, projector)
	default:
		log.Fatal("STATUS_QUEUE must be sqs or amqp")
	}
	if err != nil {
		log.Fatalf("worker: %v", err)
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func runSQS(ctx context.Context, cfg config.Config, h messageHandler, concurrency int, shutdownTimeout time.Duration) error {
	queueURL := strings.TrimSpace(cfg.StatusSQSQueueURL)
	if queueURL == "" {
		return errors.New("STATUS_SQS_QUEUE_URL is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return err
	}
	var client sqsAPI = sqs.NewFromConfig(awsCfg)
	visibilitySeconds := envInt("STATUS_SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)

	sem := make(chan struct{}, max(1, concurrency))
	var wg sync.WaitGroup

	log.Printf("worker started queue=%s concurrency=%d visibility=%ds", queueURL, concurrency, visibilitySeconds)

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			log.Printf("receive message: %v", err)
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(ctx, client, queueURL, h, m)
			}(msg)
		}
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight messages", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight messages")
	}
	return nil
}

// handleMessage deletes the message once projected, or when it can never be
// projected. Store failures leave it for redelivery.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, h messageHandler, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	err := h.HandleMessage(ctx, body)
	if err == nil {
		deleteMessage(ctx, client, queueURL, msg)
		return
	}

	fields := baseFields(msg)
	fields["error"] = err.Error()
	var procErr runs.ErrProcess
	if errors.As(err, &procErr) {
		fields["run_id"] = procErr.RunID
		telemetry.Error("worker.status.failed", fields)
		return
	}

	meta := runs.ComputeMeta(body)
	fields["body_len"] = meta.BodyLen
	if meta.BodySHA != "" {
		fields["body_sha256"] = meta.BodySHA
	}
	telemetry.Error("worker.status.unrecoverable", fields)
	deleteMessage(ctx, client, queueURL, msg)
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.status.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg)
		fields["error"] = err.Error()
		telemetry.Error("worker.status.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message) map[string]any {
	return map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	parsed, err := strconv.Atoi(msg.Attributes["ApproximateReceiveCount"])
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
