package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventType names what happened to a transaction.
type EventType string

const (
	EventTransactionRecorded EventType = "transaction.recorded"
	EventTransactionDeleted  EventType = "transaction.deleted"
)

var ErrMalformedMessage = errors.New("malformed message")

// TransactionEvent is a lightweight notification carrying only the
// transaction id; consumers load the rest from the database.
type TransactionEvent struct {
	Event     EventType `json:"event"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionEvent(event EventType, id string) *TransactionEvent {
	return &TransactionEvent{
		Event:     event,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and validates a message body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	switch msg.Event {
	case EventTransactionRecorded, EventTransactionDeleted:
	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrMalformedMessage, msg.Event)
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformedMessage)
	}
	return &msg, nil
}
