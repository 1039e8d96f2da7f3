package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TransactionRecordedMessage announces a new ledger entry. It carries only
// identifiers; consumers load the transaction from storage.
type TransactionRecordedMessage struct {
	MessageID     string    `json:"message_id"`
	TransactionID int64     `json:"transaction_id"`
	ChildID       int64     `json:"child_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionRecordedMessage(transactionID, childID int64) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		MessageID:     uuid.NewString(),
		TransactionID: transactionID,
		ChildID:       childID,
		Timestamp:     time.Now().UTC(),
	}
}

func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
