package amqp

import (
	"encoding/json"
	"time"
)

// TransactionEventMessage notifies the export worker that a ledger row was
// created. It carries only the ID; the worker reads the full row from the
// database so the queue never holds financial data.
type TransactionEventMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionEventMessage(id string) *TransactionEventMessage {
	return &TransactionEventMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionEventMessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
