// Package events carries the small JSON messages the binaries exchange over
// AMQP: ingest completions and freshly labeled transactions. Messages hold
// ids only; consumers fetch the full rows from the database.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	TypeIngestCompleted    = "ingest.completed"
	TypeTransactionLabeled = "transaction.labeled"
)

// Message is the envelope published on the events queue.
type Message struct {
	Type          string    `json:"type"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Category      string    `json:"category,omitempty"`
	Inserted      int       `json:"inserted,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewIngestCompleted announces that a download run stored new transactions.
func NewIngestCompleted(inserted int) *Message {
	return &Message{
		Type:      TypeIngestCompleted,
		Inserted:  inserted,
		Timestamp: time.Now(),
	}
}

// NewTransactionLabeled announces a manual or rule-derived label.
func NewTransactionLabeled(transactionID, category string) *Message {
	return &Message{
		Type:          TypeTransactionLabeled,
		TransactionID: transactionID,
		Category:      category,
		Timestamp:     time.Now(),
	}
}

func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case TypeIngestCompleted, TypeTransactionLabeled:
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return &msg, nil
}
