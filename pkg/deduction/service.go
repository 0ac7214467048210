package deduction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/careledger/ndis-ledger/internal/event_bus"
	"github.com/careledger/ndis-ledger/pkg/budget"
	"github.com/careledger/ndis-ledger/pkg/pricing"
	"github.com/careledger/ndis-ledger/pkg/shift"
	"github.com/careledger/ndis-ledger/pkg/tenant"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Service interface {
	// DeductForShift charges a completed shift of the current tenant to its client's budget.
	DeductForShift(ctx context.Context, shiftId int) (budget.Transaction, error)
	// Deduct charges an already loaded shift. The shift must belong to the current tenant.
	Deduct(ctx context.Context, s shift.Shift) (budget.Transaction, error)
}

type ServiceImpl struct {
	shifts          shift.Repository
	tenants         tenant.Repository
	budgets         budget.Repository
	resolver        pricing.Resolver
	eventBus        *event_bus.EventBus
	defaultLocation *time.Location
}

func NewService(
	shifts shift.Repository,
	tenants tenant.Repository,
	budgets budget.Repository,
	resolver pricing.Resolver,
	eventBus *event_bus.EventBus,
	defaultLocation *time.Location,
) *ServiceImpl {
	if defaultLocation == nil {
		defaultLocation = time.UTC
	}
	return &ServiceImpl{
		shifts:          shifts,
		tenants:         tenants,
		budgets:         budgets,
		resolver:        resolver,
		eventBus:        eventBus,
		defaultLocation: defaultLocation,
	}
}

func (s *ServiceImpl) DeductForShift(ctx context.Context, shiftId int) (budget.Transaction, error) {
	tenantId, err := tenant.CurrentId(ctx)
	if err != nil {
		return budget.Transaction{}, fmt.Errorf("failed to get current tenant: %w", err)
	}
	sh, err := s.shifts.GetCompletedShift(ctx, tenantId, shiftId)
	if err != nil {
		return budget.Transaction{}, err
	}
	return s.Deduct(ctx, sh)
}

func (s *ServiceImpl) Deduct(ctx context.Context, sh shift.Shift) (budget.Transaction, error) {
	tenantId, err := tenant.CurrentId(ctx)
	if err != nil {
		return budget.Transaction{}, fmt.Errorf("failed to get current tenant: %w", err)
	}
	logger := log.WithFields(log.Fields{"tenant_id": tenantId, "shift_id": sh.Id})
	if sh.ClientId != nil {
		logger = logger.WithField("client_id", *sh.ClientId)
	}

	t, remaining, err := s.deduct(ctx, tenantId, sh)
	if err != nil {
		switch Kind(err) {
		case KindDuplicateTransaction:
			logger.Debug("shift already charged")
		case KindTenantMismatch, KindInternal:
			logger.WithField("reason", Kind(err)).Errorf("shift deduction failed: %v", err)
		default:
			logger.WithField("reason", Kind(err)).Warnf("shift not charged: %v", err)
		}
		return budget.Transaction{}, err
	}

	logger.WithFields(log.Fields{
		"transaction_id": t.Id,
		"budget_id":      t.BudgetId,
		"category":       t.Category,
		"amount":         t.Amount.StringFixed(2),
		"remaining":      remaining.StringFixed(2),
	}).Info("shift charged")

	// the charge is committed, so a cancelled caller must not drop the event
	err = s.eventBus.Publish(event_bus.NewEvent(context.WithoutCancel(ctx), event_bus.TransactionRecordedType, event_bus.TransactionRecorded{
		TransactionId: t.Id,
		TenantId:      tenantId,
		BudgetId:      t.BudgetId,
		ClientId:      *sh.ClientId,
		ShiftId:       sh.Id,
		Category:      string(t.Category),
		ShiftType:     t.ShiftType,
		Ratio:         t.Ratio,
		Hours:         t.Hours,
		Rate:          t.Rate,
		Amount:        t.Amount,
		Remaining:     remaining,
		CreatedAt:     t.CreatedAt,
	}))
	if err != nil {
		logger.Errorf("failed to publish transaction recorded event: %v", err)
	}
	return t, nil
}

func (s *ServiceImpl) deduct(ctx context.Context, tenantId int, sh shift.Shift) (budget.Transaction, decimal.Decimal, error) {
	if sh.TenantId != tenantId {
		return budget.Transaction{}, decimal.Zero, fmt.Errorf("%w: shift %d belongs to tenant %d", ErrTenantMismatch, sh.Id, sh.TenantId)
	}
	if !sh.Eligible() {
		return budget.Transaction{}, decimal.Zero, fmt.Errorf("%w: shift %d is %s and needs start and end time", ErrInvalidShiftData, sh.Id, sh.Status)
	}
	if sh.ClientId == nil {
		return budget.Transaction{}, decimal.Zero, fmt.Errorf("%w: shift %d has no client", ErrInvalidShiftData, sh.Id)
	}

	hours, err := pricing.Hours(*sh.StartTime, *sh.EndTime)
	if err != nil {
		return budget.Transaction{}, decimal.Zero, fmt.Errorf("%w: shift %d from %s to %s", err, sh.Id,
			sh.StartTime.Format(time.RFC3339), sh.EndTime.Format(time.RFC3339))
	}

	b, err := s.budgets.GetBudget(ctx, *sh.ClientId, tenantId)
	if err != nil {
		if errors.Is(err, budget.ErrBudgetNotFound) {
			return budget.Transaction{}, decimal.Zero, fmt.Errorf("%w: client %d", ErrNoBudgetFound, *sh.ClientId)
		}
		return budget.Transaction{}, decimal.Zero, err
	}

	t, err := s.tenants.GetTenant(ctx, tenantId)
	if err != nil {
		return budget.Transaction{}, decimal.Zero, err
	}

	resolution, err := s.resolver.ResolveRate(ctx, *sh.StartTime, t.Location(s.defaultLocation), sh.StaffRatio, tenantId, b)
	if err != nil {
		return budget.Transaction{}, decimal.Zero, err
	}

	category, err := categoryFor(sh, resolution.ShiftType)
	if err != nil {
		return budget.Transaction{}, decimal.Zero, err
	}

	amount := pricing.Cost(resolution.Rate, hours)
	shiftId := sh.Id
	stored, remaining, err := s.budgets.ApplyTransaction(ctx, budget.Transaction{
		BudgetId:        b.Id,
		TenantId:        tenantId,
		Category:        category,
		ShiftType:       string(resolution.ShiftType),
		Ratio:           resolution.Ratio,
		Hours:           hours,
		Rate:            resolution.Rate,
		Amount:          amount,
		ShiftId:         &shiftId,
		CreatedByUserId: createdBy(sh, t),
		Description: fmt.Sprintf("%s shift %d on %s: %sh at %s/h (%s, %s)",
			resolution.ShiftType, sh.Id, sh.StartTime.In(t.Location(s.defaultLocation)).Format(time.DateOnly),
			hours.String(), resolution.Rate.StringFixed(2), resolution.Ratio, resolution.Source),
	})
	if err != nil {
		return budget.Transaction{}, decimal.Zero, err
	}
	return stored, remaining, nil
}

// categoryFor prefers the category recorded on the shift. Day shifts default to community
// access, overnight shifts to SIL.
func categoryFor(sh shift.Shift, shiftType pricing.ShiftType) (budget.Category, error) {
	if sh.FundingCategory != "" {
		c, err := budget.ParseCategory(sh.FundingCategory)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidShiftData, err)
		}
		return c, nil
	}
	switch shiftType {
	case pricing.ActiveNight, pricing.Sleepover:
		return budget.SIL, nil
	default:
		return budget.CommunityAccess, nil
	}
}

func createdBy(sh shift.Shift, t tenant.Tenant) *int {
	if sh.UserId != nil {
		return sh.UserId
	}
	return t.AdminUserId
}
