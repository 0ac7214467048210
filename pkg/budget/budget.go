package budget

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Category string

const (
	CommunityAccess  Category = "CommunityAccess"
	SIL              Category = "SIL"
	CapacityBuilding Category = "CapacityBuilding"
)

var Categories = []Category{CommunityAccess, SIL, CapacityBuilding}

// ParseCategory accepts the canonical names and their snake_case spellings, case-insensitively.
func ParseCategory(s string) (Category, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	for _, c := range Categories {
		if strings.ToLower(string(c)) == normalized {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

type Balance struct {
	Funded    decimal.Decimal
	Remaining decimal.Decimal
}

// Spent is the amount charged against the category so far.
func (b Balance) Spent() decimal.Decimal {
	return b.Funded.Sub(b.Remaining)
}

// Budget holds a participant's funding, one per client per tenant.
// Balances change only through transactions.
type Budget struct {
	Id               int
	TenantId         int
	ClientId         int
	CommunityAccess  Balance
	SIL              Balance
	CapacityBuilding Balance
	// PriceOverrides maps a shift type label to a negotiated hourly rate replacing the pricing table.
	PriceOverrides map[string]decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (b Budget) Balance(c Category) (Balance, error) {
	switch c {
	case CommunityAccess:
		return b.CommunityAccess, nil
	case SIL:
		return b.SIL, nil
	case CapacityBuilding:
		return b.CapacityBuilding, nil
	}
	return Balance{}, fmt.Errorf("%w: %q", ErrInvalidCategory, c)
}

func (b Budget) PriceOverride(shiftType string) (decimal.Decimal, bool) {
	rate, ok := b.PriceOverrides[shiftType]
	return rate, ok
}

// Transaction is an immutable ledger entry. A charge references the shift it pays for,
// a reversal references the charge it offsets and carries a negative amount.
type Transaction struct {
	Id                    uuid.UUID
	BudgetId              int
	TenantId              int
	Category              Category
	ShiftType             string
	Ratio                 string
	Hours                 decimal.Decimal
	Rate                  decimal.Decimal
	Amount                decimal.Decimal
	ShiftId               *int
	ReversesTransactionId *uuid.UUID
	CreatedByUserId       *int
	Description           string
	CreatedAt             time.Time
}

func (t Transaction) IsReversal() bool {
	return t.ReversesTransactionId != nil
}
