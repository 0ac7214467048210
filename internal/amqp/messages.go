package amqp

import (
	"encoding/json"
	"time"

	"github.com/careledger/ndis-ledger/internal/event_bus"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerMessage is the wire form of a committed ledger transaction.
type LedgerMessage struct {
	Type                  string          `json:"type"`
	TransactionId         uuid.UUID       `json:"transactionId"`
	ReversesTransactionId *uuid.UUID      `json:"reversesTransactionId,omitempty"`
	TenantId              int             `json:"tenantId"`
	BudgetId              int             `json:"budgetId"`
	ClientId              int             `json:"clientId,omitempty"`
	ShiftId               int             `json:"shiftId,omitempty"`
	Category              string          `json:"category"`
	ShiftType             string          `json:"shiftType,omitempty"`
	Ratio                 string          `json:"ratio,omitempty"`
	Hours                 decimal.Decimal `json:"hours"`
	Rate                  decimal.Decimal `json:"rate"`
	Amount                decimal.Decimal `json:"amount"`
	Remaining             decimal.Decimal `json:"remaining"`
	CreatedAt             time.Time       `json:"createdAt"`
}

func NewRecordedMessage(e event_bus.TransactionRecorded) LedgerMessage {
	return LedgerMessage{
		Type:          string(event_bus.TransactionRecordedType),
		TransactionId: e.TransactionId,
		TenantId:      e.TenantId,
		BudgetId:      e.BudgetId,
		ClientId:      e.ClientId,
		ShiftId:       e.ShiftId,
		Category:      e.Category,
		ShiftType:     e.ShiftType,
		Ratio:         e.Ratio,
		Hours:         e.Hours,
		Rate:          e.Rate,
		Amount:        e.Amount,
		Remaining:     e.Remaining,
		CreatedAt:     e.CreatedAt,
	}
}

func NewReversedMessage(e event_bus.TransactionReversed) LedgerMessage {
	reverses := e.ReversesTransactionId
	return LedgerMessage{
		Type:                  string(event_bus.TransactionReversedType),
		TransactionId:         e.TransactionId,
		ReversesTransactionId: &reverses,
		TenantId:              e.TenantId,
		BudgetId:              e.BudgetId,
		Category:              e.Category,
		Amount:                e.Amount,
		Remaining:             e.Remaining,
		CreatedAt:             e.CreatedAt,
	}
}

func (m LedgerMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerMessageFromJSON(data []byte) (LedgerMessage, error) {
	var msg LedgerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return LedgerMessage{}, err
	}
	return msg, nil
}
