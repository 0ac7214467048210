package event_bus

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionRecordedType EventType = "ledger.transaction.recorded"
	TransactionReversedType EventType = "ledger.transaction.reversed"
)

// TransactionRecorded is published after a shift charge has been committed to the ledger.
type TransactionRecorded struct {
	TransactionId uuid.UUID
	TenantId      int
	BudgetId      int
	ClientId      int
	ShiftId       int
	Category      string
	ShiftType     string
	Ratio         string
	Hours         decimal.Decimal
	Rate          decimal.Decimal
	Amount        decimal.Decimal
	// Remaining is the category balance right after the charge.
	Remaining decimal.Decimal
	CreatedAt time.Time
}

// TransactionReversed is published after an offsetting transaction has been committed.
type TransactionReversed struct {
	TransactionId         uuid.UUID
	ReversesTransactionId uuid.UUID
	TenantId              int
	BudgetId              int
	Category              string
	Amount                decimal.Decimal
	Remaining             decimal.Decimal
	CreatedAt             time.Time
}
