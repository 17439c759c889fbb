package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChangeMessage announces a committed mutation of a resource. The worker
// records it; nothing else is fetched.
type ChangeMessage struct {
	// MessageID travels as the AMQP message id, not in the body.
	MessageID string    `json:"-"`
	Resource  string    `json:"resource"`
	Operation string    `json:"operation"`
	Version   int64     `json:"version"`
	IDs       []int64   `json:"ids"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeMessage(resource, operation string, version int64, ids []int64) *ChangeMessage {
	if ids == nil {
		ids = []int64{}
	}
	return &ChangeMessage{
		MessageID: uuid.NewString(),
		Resource:  resource,
		Operation: operation,
		Version:   version,
		IDs:       ids,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON parses a body. messageID falls back to a key
// derived from the content so redeliveries still deduplicate.
func ChangeMessageFromJSON(data []byte, messageID string) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Resource == "" || msg.Operation == "" {
		return nil, fmt.Errorf("change message missing resource or operation")
	}
	if messageID == "" {
		messageID = fmt.Sprintf("%s:%s:%d", msg.Resource, msg.Operation, msg.Version)
	}
	msg.MessageID = messageID
	if msg.IDs == nil {
		msg.IDs = []int64{}
	}
	return &msg, nil
}
