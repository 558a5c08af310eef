package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"spartispese/internal/core"
)

// ExpenseCreatedMessage announces a newly persisted expense. It carries ids
// only; consumers load the full record from storage.
type ExpenseCreatedMessage struct {
	ExpenseID  string    `json:"expense_id"`
	GroupID    string    `json:"group_id"`
	CategoryID int64     `json:"category_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewExpenseCreatedMessage builds the message for e.
func NewExpenseCreatedMessage(e core.Expense) *ExpenseCreatedMessage {
	return &ExpenseCreatedMessage{
		ExpenseID:  e.ID,
		GroupID:    e.GroupID,
		CategoryID: e.Category.ID,
		Timestamp:  time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseCreatedMessageFromJSON decodes a message and rejects bodies without
// an expense id.
func ExpenseCreatedMessageFromJSON(data []byte) (*ExpenseCreatedMessage, error) {
	var msg ExpenseCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ExpenseID == "" {
		return nil, errors.New("message has no expense_id")
	}
	return &msg, nil
}
