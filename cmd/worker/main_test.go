package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/streadway/amqp"

	"resumind/internal/queue"
	"resumind/internal/runs"
	"resumind/internal/shared/storage/kv"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeHandler struct {
	err error
}

func (f fakeHandler) HandleMessage(context.Context, string) error { return f.err }

func sqsMessage(t *testing.T, id string, body string) sqstypes.Message {
	t.Helper()
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("r-" + id),
		Body:          aws.String(body),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func encoded(t *testing.T, msg queue.Message) string {
	t.Helper()
	body, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(body)
}

func TestWorkerProjectsAndDeletes(t *testing.T) {
	client := &fakeSQS{}
	projector := runs.NewProjector(kv.NewMemoryStore())
	body := encoded(t, queue.Message{
		RunID:      "run-1",
		Stage:      "persisting",
		Status:     "Saving analysis...",
		OccurredAt: "2026-03-01T12:00:00Z",
	})

	handleMessage(context.Background(), client, "queue", projector, sqsMessage(t, "m1", body))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	st, err := projector.Get(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if st.Stage != "persisting" {
		t.Fatalf("expected persisting, got %s", st.Stage)
	}
}

func TestWorkerKeepsMessageOnStoreFailure(t *testing.T) {
	client := &fakeSQS{}
	h := fakeHandler{err: runs.ErrProcess{RunID: "run-2", Err: errors.New("boom")}}

	handleMessage(context.Background(), client, "queue", h, sqsMessage(t, "m2", `{"runId":"run-2","stage":"validating"}`))

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesUnprojectableMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{bad-json"},
		{"empty", ""},
		{"missing run id", `{"stage":"validating"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeSQS{}
			projector := runs.NewProjector(kv.NewMemoryStore())

			handleMessage(context.Background(), client, "queue", projector, sqsMessage(t, "m3", tt.body))

			if len(client.deleted) != 1 {
				t.Fatalf("expected delete, got %d", len(client.deleted))
			}
		})
	}
}

type fakeAcknowledger struct {
	acked   int
	nacked  int
	requeue bool
}

func (f *fakeAcknowledger) Ack(uint64, bool) error { f.acked++; return nil }

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked++
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(uint64, bool) error { return nil }

func TestDeliveryAckSemantics(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantAcked  int
		wantNacked int
	}{
		{"projected", nil, 1, 0},
		{"store failure", runs.ErrProcess{RunID: "r", Err: errors.New("down")}, 0, 1},
		{"undecodable", runs.ErrDecode{Err: errors.New("bad")}, 1, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			handleDelivery(context.Background(), fakeHandler{err: tt.err}, amqp.Delivery{Acknowledger: ack, Body: []byte("{}")})
			if ack.acked != tt.wantAcked || ack.nacked != tt.wantNacked {
				t.Fatalf("acked=%d nacked=%d", ack.acked, ack.nacked)
			}
			if tt.wantNacked == 1 && !ack.requeue {
				t.Fatal("expected requeue on store failure")
			}
		})
	}
}
