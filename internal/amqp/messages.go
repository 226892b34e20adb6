package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
)

// TransactionSyncMessage asks the worker to mirror one transaction.
// It carries only identifiers; the worker loads the row from the database.
type TransactionSyncMessage struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(id, userID int64) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		ID:        id,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// BudgetAlertMessage carries a budget alert to the notification worker.
type BudgetAlertMessage struct {
	UserID      int64           `json:"user_id"`
	Email       string          `json:"email"`
	CategoryID  int             `json:"category_id"`
	Category    string          `json:"category"`
	Limit       decimal.Decimal `json:"limit_amount"`
	Spent       decimal.Decimal `json:"spent"`
	UsedPercent decimal.Decimal `json:"used_percent"`
	Month       string          `json:"month"`
	Timestamp   time.Time       `json:"timestamp"`
}

func NewBudgetAlertMessage(a core.BudgetAlert) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		UserID:      a.UserID,
		Email:       a.Email,
		CategoryID:  int(a.CategoryID),
		Category:    a.Category,
		Limit:       a.Limit,
		Spent:       a.Spent,
		UsedPercent: a.UsedPercent,
		Month:       a.Month.String(),
		Timestamp:   time.Now(),
	}
}

func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Alert converts the message back into the domain alert.
func (m *BudgetAlertMessage) Alert() (core.BudgetAlert, error) {
	month, err := core.ParseMonth(m.Month)
	if err != nil {
		return core.BudgetAlert{}, fmt.Errorf("alert month: %w", err)
	}
	return core.BudgetAlert{
		UserID:      m.UserID,
		Email:       m.Email,
		CategoryID:  core.CategoryID(m.CategoryID),
		Category:    m.Category,
		Limit:       m.Limit,
		Spent:       m.Spent,
		UsedPercent: m.UsedPercent,
		Month:       month,
	}, nil
}
