package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/streadway/amqp"

	"resumind/internal/runs"
	"resumind/internal/shared/config"
	"resumind/internal/shared/telemetry"
)

const defaultAMQPQueue = "resume_status_projection"

func runAMQP(ctx context.Context, cfg config.Config, h messageHandler) error {
	if strings.TrimSpace(cfg.AMQPURL) == "" {
		return errors.New("AMQP_URL is required")
	}
	queueName := strings.TrimSpace(os.Getenv("STATUS_AMQP_QUEUE"))
	if queueName == "" {
		queueName = defaultAMQPQueue
	}

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(cfg.AMQPExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "resume.status.#", cfg.AMQPExchange, false, nil); err != nil {
		return fmt.Errorf("amqp bind: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "resumind-worker", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	log.Printf("worker started exchange=%s queue=%s", cfg.AMQPExchange, q.Name)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			handleDelivery(ctx, h, d)
		}
	}
}

// handleDelivery acks projected and unprojectable messages and requeues
// store failures.
func handleDelivery(ctx context.Context, h messageHandler, d amqp.Delivery) {
	err := h.HandleMessage(ctx, string(d.Body))
	if err == nil {
		_ = d.Ack(false)
		return
	}

	fields := map[string]any{
		"amqp_message_id": d.MessageId,
		"routing_key":     d.RoutingKey,
		"redelivered":     d.Redelivered,
		"error":           err.Error(),
	}
	var procErr runs.ErrProcess
	if errors.As(err, &procErr) {
		fields["run_id"] = procErr.RunID
		telemetry.Error("worker.status.failed", fields)
		_ = d.Nack(false, true)
		return
	}
	telemetry.Error("worker.status.unrecoverable", fields)
	_ = d.Ack(false)
}
