package budget

import (
	"context"
	"fmt"

	"github.com/careledger/ndis-ledger/internal/event_bus"
	"github.com/careledger/ndis-ledger/pkg/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Service interface {
	GetBudget(ctx context.Context, clientId int) (Budget, error)
	// GetRemainingBalance is the read path used by budget displays.
	GetRemainingBalance(ctx context.Context, clientId int, category Category) (decimal.Decimal, error)
	CreateBudget(ctx context.Context, budget Budget) (Budget, error)
	ListTransactions(ctx context.Context, budgetId int) ([]Transaction, error)
	ReverseTransaction(ctx context.Context, transactionId uuid.UUID, reason string) (Transaction, error)
}

type ServiceImpl struct {
	repo     Repository
	eventBus *event_bus.EventBus
}

func NewService(repo Repository, eventBus *event_bus.EventBus) *ServiceImpl {
	return &ServiceImpl{repo: repo, eventBus: eventBus}
}

func (s *ServiceImpl) GetBudget(ctx context.Context, clientId int) (Budget, error) {
	tenantId, err := tenant.CurrentId(ctx)
	if err != nil {
		return Budget{}, fmt.Errorf("failed to get current tenant: %w", err)
	}
	return s.repo.GetBudget(ctx, clientId, tenantId)
}

func (s *ServiceImpl) GetRemainingBalance(ctx context.Context, clientId int, category Category) (decimal.Decimal, error) {
	b, err := s.GetBudget(ctx, clientId)
	if err != nil {
		return decimal.Zero, err
	}
	return s.repo.GetRemaining(ctx, b.Id, b.TenantId, category)
}

func (s *ServiceImpl) CreateBudget(ctx context.Context, budget Budget) (Budget, error) {
	tenantId, err := tenant.CurrentId(ctx)
	if err != nil {
		return Budget{}, fmt.Errorf("failed to get current tenant: %w", err)
	}
	budget.TenantId = tenantId
	created, err := s.repo.CreateBudget(ctx, budget)
	if err != nil {
		return Budget{}, err
	}
	log.WithFields(log.Fields{"tenant_id": tenantId, "client_id": created.ClientId, "budget_id": created.Id}).
		Info("budget created")
	return created, nil
}

func (s *ServiceImpl) ListTransactions(ctx context.Context, budgetId int) ([]Transaction, error) {
	tenantId, err := tenant.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current tenant: %w", err)
	}
	if _, err := s.repo.GetBudgetById(ctx, budgetId, tenantId); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, budgetId, tenantId)
}

// ReverseTransaction offsets a charge with a new negative entry. History is never edited.
func (s *ServiceImpl) ReverseTransaction(ctx context.Context, transactionId uuid.UUID, reason string) (Transaction, error) {
	tenantId, err := tenant.CurrentId(ctx)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to get current tenant: %w", err)
	}
	var userId *int
	if id, err := tenant.CurrentUserId(ctx); err == nil {
		userId = &id
	}

	reversal, remaining, err := s.repo.ReverseTransaction(ctx, tenantId, transactionId, userId, reason)
	if err != nil {
		return Transaction{}, err
	}
	log.WithFields(log.Fields{
		"tenant_id":      tenantId,
		"transaction_id": transactionId,
		"reversal_id":    reversal.Id,
		"amount":         reversal.Amount.StringFixed(2),
	}).Info("transaction reversed")

	// committed: subscriber failures are only logged and the caller's cancellation does not apply
	err = s.eventBus.Publish(event_bus.NewEvent(context.WithoutCancel(ctx), event_bus.TransactionReversedType, event_bus.TransactionReversed{
		TransactionId:         reversal.Id,
		ReversesTransactionId: transactionId,
		TenantId:              tenantId,
		BudgetId:              reversal.BudgetId,
		Category:              string(reversal.Category),
		Amount:                reversal.Amount,
		Remaining:             remaining,
		CreatedAt:             reversal.CreatedAt,
	}))
	if err != nil {
		log.Errorf("failed to publish transaction reversed event: %v", err)
	}
	return reversal, nil
}
