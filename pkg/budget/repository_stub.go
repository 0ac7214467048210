package budget

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RepositoryStub is an in-memory ledger with the same rules as RepositoryImpl:
// one charge per shift, no negative balances, tenant checked on every write.
type RepositoryStub struct {
	mu           sync.Mutex
	nextId       int
	budgets      map[int]Budget
	transactions []Transaction
	// ShiftTenants, when set, maps shift ids to their tenant to emulate the composite shift reference.
	ShiftTenants map[int]int
	// ApplyErr, when set, is returned by ApplyTransaction before anything is written.
	ApplyErr error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{nextId: 100, budgets: map[int]Budget{}}
}

func (s *RepositoryStub) GetBudget(ctx context.Context, clientId int, tenantId int) (Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.budgets {
		if b.ClientId == clientId && b.TenantId == tenantId {
			return b, nil
		}
	}
	return Budget{}, ErrBudgetNotFound
}

func (s *RepositoryStub) GetBudgetById(ctx context.Context, budgetId int, tenantId int) (Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[budgetId]
	if !ok || b.TenantId != tenantId {
		return Budget{}, ErrBudgetNotFound
	}
	return b, nil
}

func (s *RepositoryStub) GetRemaining(ctx context.Context, budgetId int, tenantId int, category Category) (decimal.Decimal, error) {
	b, err := s.GetBudgetById(ctx, budgetId, tenantId)
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := b.Balance(category)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.Remaining, nil
}

func (s *RepositoryStub) CreateBudget(ctx context.Context, budget Budget) (Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.budgets {
		if b.ClientId == budget.ClientId && b.TenantId == budget.TenantId {
			return Budget{}, ErrBudgetExists
		}
	}
	s.nextId++
	budget.Id = s.nextId
	budget.CommunityAccess.Remaining = budget.CommunityAccess.Funded
	budget.SIL.Remaining = budget.SIL.Funded
	budget.CapacityBuilding.Remaining = budget.CapacityBuilding.Funded
	budget.CreatedAt = time.Now()
	budget.UpdatedAt = budget.CreatedAt
	s.budgets[budget.Id] = budget
	return budget, nil
}

func (s *RepositoryStub) ApplyTransaction(ctx context.Context, t Transaction) (Transaction, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ApplyErr != nil {
		return Transaction{}, decimal.Zero, s.ApplyErr
	}
	if t.ShiftId == nil || t.Amount.IsNegative() {
		return Transaction{}, decimal.Zero, ErrInvalidAmount
	}
	b, ok := s.budgets[t.BudgetId]
	if !ok {
		return Transaction{}, decimal.Zero, ErrBudgetNotFound
	}
	if b.TenantId != t.TenantId {
		return Transaction{}, decimal.Zero, fmt.Errorf("%w: budget %d", ErrTenantMismatch, t.BudgetId)
	}
	if owner, known := s.ShiftTenants[*t.ShiftId]; known && owner != t.TenantId {
		return Transaction{}, decimal.Zero, fmt.Errorf("%w: shift %d", ErrTenantMismatch, *t.ShiftId)
	}
	for _, existing := range s.transactions {
		if existing.ShiftId != nil && *existing.ShiftId == *t.ShiftId {
			return Transaction{}, decimal.Zero, ErrDuplicateTransaction
		}
	}
	balance, err := b.Balance(t.Category)
	if err != nil {
		return Transaction{}, decimal.Zero, err
	}
	if balance.Remaining.LessThan(t.Amount) {
		return Transaction{}, decimal.Zero, ErrInsufficientFunds
	}
	balance.Remaining = balance.Remaining.Sub(t.Amount)
	s.budgets[b.Id] = withBalance(b, t.Category, balance)

	if t.Id == uuid.Nil {
		t.Id = uuid.New()
	}
	t.CreatedAt = time.Now()
	s.transactions = append(s.transactions, t)
	return t, balance.Remaining, nil
}

func (s *RepositoryStub) ReverseTransaction(
	ctx context.Context,
	tenantId int,
	transactionId uuid.UUID,
	userId *int,
	description string,
) (Transaction, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var original *Transaction
	for i := range s.transactions {
		if s.transactions[i].Id == transactionId && s.transactions[i].TenantId == tenantId {
			original = &s.transactions[i]
		}
	}
	if original == nil {
		return Transaction{}, decimal.Zero, ErrTransactionNotFound
	}
	if original.IsReversal() {
		return Transaction{}, decimal.Zero, ErrReversalOfReversal
	}
	for _, existing := range s.transactions {
		if existing.ReversesTransactionId != nil && *existing.ReversesTransactionId == transactionId {
			return Transaction{}, decimal.Zero, ErrAlreadyReversed
		}
	}
	b := s.budgets[original.BudgetId]
	balance, _ := b.Balance(original.Category)
	balance.Remaining = balance.Remaining.Add(original.Amount)
	s.budgets[b.Id] = withBalance(b, original.Category, balance)

	reversed := original.Id
	reversal := Transaction{
		Id:                    uuid.New(),
		BudgetId:              original.BudgetId,
		TenantId:              tenantId,
		Category:              original.Category,
		ShiftType:             original.ShiftType,
		Ratio:                 original.Ratio,
		Hours:                 original.Hours.Neg(),
		Rate:                  original.Rate,
		Amount:                original.Amount.Neg(),
		ReversesTransactionId: &reversed,
		CreatedByUserId:       userId,
		Description:           description,
		CreatedAt:             time.Now(),
	}
	s.transactions = append(s.transactions, reversal)
	return reversal, balance.Remaining, nil
}

func (s *RepositoryStub) ListTransactions(ctx context.Context, budgetId int, tenantId int) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		t := s.transactions[i]
		if t.BudgetId == budgetId && t.TenantId == tenantId {
			result = append(result, t)
		}
	}
	return result, nil
}

// HasShiftTransaction reports whether a charge exists for the shift.
func (s *RepositoryStub) HasShiftTransaction(shiftId int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.ShiftId != nil && *t.ShiftId == shiftId {
			return true
		}
	}
	return false
}

// Transactions returns every stored transaction ordered by shift id, reversals last.
func (s *RepositoryStub) Transactions() []Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := append([]Transaction(nil), s.transactions...)
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].ShiftId == nil || result[j].ShiftId == nil {
			return result[j].ShiftId == nil && result[i].ShiftId != nil
		}
		return *result[i].ShiftId < *result[j].ShiftId
	})
	return result
}

func withBalance(b Budget, c Category, balance Balance) Budget {
	switch c {
	case CommunityAccess:
		b.CommunityAccess = balance
	case SIL:
		b.SIL = balance
	case CapacityBuilding:
		b.CapacityBuilding = balance
	}
	b.UpdatedAt = time.Now()
	return b
}
