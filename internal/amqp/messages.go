package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"spendboard/internal/core"
)

// Action names the mutation a TransactionEvent reports.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return true
	}
	return false
}

// TransactionEvent is published after a successful mutation. For deletions it
// carries the record as it was before removal.
type TransactionEvent struct {
	Action    Action          `json:"action"`
	ID        string          `json:"id"`
	Reason    string          `json:"reason"`
	Amount    decimal.Decimal `json:"amount"`
	Type      core.TxType     `json:"type"`
	Category  string          `json:"category"`
	Date      core.Date       `json:"date"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewTransactionEvent(action Action, tx core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Action:    action,
		ID:        tx.ID,
		Reason:    tx.Reason,
		Amount:    tx.Amount,
		Type:      tx.Type,
		Category:  tx.Category,
		Date:      tx.Date,
		Timestamp: time.Now().UTC(),
	}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Action.Valid() {
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("event without transaction id")
	}
	return &msg, nil
}
