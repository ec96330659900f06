package queue

import "encoding/json"

// MessageVersion is bumped when Message changes shape.
const MessageVersion = 1

// Message is one pipeline status transition.
type Message struct {
	RunID      string `json:"runId"`
	RequestID  string `json:"requestId,omitempty"`
	RecordID   string `json:"recordId,omitempty"`
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	Failed     bool   `json:"failed,omitempty"`
	OccurredAt string `json:"occurredAt"`
	Version    int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// RoutingKey is the AMQP topic key for msg, e.g. "resume.status.persisting".
func RoutingKey(msg Message) string {
	if msg.Stage == "" {
		return "resume.status"
	}
	return "resume.status." + msg.Stage
}
