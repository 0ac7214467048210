package deduction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/careledger/ndis-ledger/internal/event_bus"
	"github.com/careledger/ndis-ledger/pkg/budget"
	"github.com/careledger/ndis-ledger/pkg/pricing"
	"github.com/careledger/ndis-ledger/pkg/shift"
	"github.com/careledger/ndis-ledger/pkg/tenant"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tenantId = 1
	clientId = 11
	adminId  = 99
)

type testEnv struct {
	ctx       context.Context
	service   *ServiceImpl
	shifts    *shift.RepositoryStub
	budgets   *budget.RepositoryStub
	rates     *pricing.RepositoryStub
	budget    budget.Budget
	published []event_bus.TransactionRecorded
}

func setupTestService(t *testing.T, communityAccess string) *testEnv {
	t.Helper()
	ctx := tenant.WithTenant(context.Background(), tenantId)
	admin := adminId
	tenants := tenant.NewRepositoryStub(tenant.Tenant{Id: tenantId, Name: "Sunrise Care", Timezone: "UTC", AdminUserId: &admin})
	budgets := budget.NewRepositoryStub()
	b, err := budgets.CreateBudget(ctx, budget.Budget{
		TenantId:        tenantId,
		ClientId:        clientId,
		CommunityAccess: budget.Balance{Funded: decimal.RequireFromString(communityAccess)},
		SIL:             budget.Balance{Funded: decimal.RequireFromString("1000.00")},
	})
	require.NoError(t, err)
	shifts := shift.NewRepositoryStub()
	shifts.ChargedShifts = budgets.HasShiftTransaction
	rates := pricing.NewRepositoryStub().
		Set(tenantId, pricing.AM, "1:1", "29.07").
		Set(tenantId, pricing.Sleepover, "1:1", "50.00")
	bus := event_bus.NewEventBus()

	env := &testEnv{
		ctx:     ctx,
		service: NewService(shifts, tenants, budgets, pricing.NewResolver(rates), bus, time.UTC),
		shifts:  shifts,
		budgets: budgets,
		rates:   rates,
		budget:  b,
	}
	event_bus.SubscribeTyped[event_bus.TransactionRecorded](bus, event_bus.TransactionRecordedType,
		func(e event_bus.EventT[event_bus.TransactionRecorded]) error {
			env.published = append(env.published, e.Data)
			return nil
		})
	return env
}

func completedShift(id int, start time.Time, duration time.Duration) shift.Shift {
	client := clientId
	end := start.Add(duration)
	return shift.Shift{
		Id:        id,
		TenantId:  tenantId,
		ClientId:  &client,
		StartTime: &start,
		EndTime:   &end,
		Status:    shift.StatusCompleted,
	}
}

var morning = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func (env *testEnv) remaining(t *testing.T, c budget.Category) string {
	t.Helper()
	r, err := env.budgets.GetRemaining(env.ctx, env.budget.Id, tenantId, c)
	require.NoError(t, err)
	return r.StringFixed(2)
}

func TestServiceImpl_DeductForShift(t *testing.T) {
	t.Run("should charge a completed shift exactly once", func(t *testing.T) {
		// given
		env := setupTestService(t, "100.00")
		env.shifts.Add(completedShift(42, morning, 2*time.Hour))

		// when
		tx, err := env.service.DeductForShift(env.ctx, 42)

		// then
		require.NoError(t, err)
		assert.Equal(t, "58.14", tx.Amount.StringFixed(2))
		assert.Equal(t, "29.07", tx.Rate.StringFixed(2))
		assert.Equal(t, "2", tx.Hours.String())
		assert.Equal(t, budget.CommunityAccess, tx.Category)
		assert.Equal(t, "AM", tx.ShiftType)
		assert.Equal(t, "1:1", tx.Ratio)
		assert.Equal(t, 42, *tx.ShiftId)
		assert.Contains(t, tx.Description, "shift 42")
		assert.Equal(t, "41.86", env.remaining(t, budget.CommunityAccess))
		require.Len(t, env.published, 1)
		assert.Equal(t, "41.86", env.published[0].Remaining.StringFixed(2))

		// and when
		_, err = env.service.DeductForShift(env.ctx, 42)

		// then
		assert.ErrorIs(t, err, ErrDuplicateTransaction)
		assert.Equal(t, KindDuplicateTransaction, Kind(err))
		assert.Equal(t, "41.86", env.remaining(t, budget.CommunityAccess))
		assert.Len(t, env.budgets.Transactions(), 1)
		assert.Len(t, env.published, 1)
	})

	t.Run("should not find shifts that are not completed", func(t *testing.T) {
		// given
		env := setupTestService(t, "100.00")
		sh := completedShift(42, morning, 2*time.Hour)
		sh.Status = shift.StatusScheduled
		env.shifts.Add(sh)

		// when
		_, err := env.service.DeductForShift(env.ctx, 42)

		// then
		assert.Equal(t, KindShiftNotFound, Kind(err))
	})

	t.Run("should require a tenant", func(t *testing.T) {
		// given
		env := setupTestService(t, "100.00")

		// when
		_, err := env.service.DeductForShift(context.Background(), 42)

		// then
		assert.ErrorIs(t, err, tenant.ErrNoTenant)
	})

	t.Run("should charge each shift once under concurrent calls", func(t *testing.T) {
		// given
		env := setupTestService(t, "100.00")
		env.shifts.Add(completedShift(42, morning, 2*time.Hour))
		const attempts = 10

		// when
		var wg sync.WaitGroup
		errs := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = env.service.DeductForShift(env.ctx, 42)
			}(i)
		}
		wg.Wait()

		// then
		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ErrDuplicateTransaction)
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, "41.86", env.remaining(t, budget.CommunityAccess))
	})
}

func TestServiceImpl_Deduct(t *testing.T) {
	cases := []struct {
		name   string
		modify func(sh *shift.Shift)
		err    error
	}{
		{"missing client", func(sh *shift.Shift) { sh.ClientId = nil }, ErrInvalidShiftData},
		{"missing start time", func(sh *shift.Shift) { sh.StartTime = nil }, ErrInvalidShiftData},
		{"missing end time", func(sh *shift.Shift) { sh.EndTime = nil }, ErrInvalidShiftData},
		{"not completed", func(sh *shift.Shift) { sh.Status = shift.StatusCancelled }, ErrInvalidShiftData},
		{"unknown funding category", func(sh *shift.Shift) { sh.FundingCategory = "Transport" }, ErrInvalidShiftData},
		{"end before start", func(sh *shift.Shift) {
			end := sh.StartTime.Add(-time.Hour)
			sh.EndTime = &end
		}, ErrInvalidDuration},
		{"longer than a day", func(sh *shift.Shift) {
			end := sh.StartTime.Add(25 * time.Hour)
			sh.EndTime = &end
		}, ErrInvalidDuration},
		{"client without budget", func(sh *shift.Shift) {
			other := 12
			sh.ClientId = &other
		}, ErrNoBudgetFound},
		{"no pricing for shift type", func(sh *shift.Shift) {
			start := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
			end := start.Add(time.Hour)
			sh.StartTime, sh.EndTime = &start, &end
		}, ErrNoRateFound},
		{"shift of another tenant", func(sh *shift.Shift) { sh.TenantId = 2 }, ErrTenantMismatch},
	}
	for _, c := range cases {
		t.Run("should reject "+c.name+" without touching the ledger", func(t *testing.T) {
			// given
			env := setupTestService(t, "100.00")
			sh := completedShift(42, morning, 2*time.Hour)
			c.modify(&sh)

			// when
			_, err := env.service.Deduct(env.ctx, sh)

			// then
			assert.ErrorIs(t, err, c.err)
			assert.Empty(t, env.budgets.Transactions())
			assert.Equal(t, "100.00", env.remaining(t, budget.CommunityAccess))
			assert.Empty(t, env.published)
		})
	}

	t.Run("should leave the shift unprocessed when funds are insufficient", func(t *testing.T) {
		// given
		env := setupTestService(t, "50.00")

		// when
		_, err := env.service.Deduct(env.ctx, completedShift(42, morning, 2*time.Hour))

		// then
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, KindInsufficientFunds, Kind(err))
		assert.False(t, env.budgets.HasShiftTransaction(42))
		assert.Equal(t, "50.00", env.remaining(t, budget.CommunityAccess))
	})

	t.Run("should charge overnight shifts to SIL", func(t *testing.T) {
		// given
		env := setupTestService(t, "100.00")
		start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

		// when
		tx, err := env.service.Deduct(env.ctx, completedShift(43, start, 6*time.Hour))

		// then
		require.NoError(t, err)
		assert.Equal(t, budget.SIL, tx.Category)
		assert.Equal(t, "Sleepover", tx.ShiftType)
		assert.Equal(t, "300.00", tx.Amount.StringFixed(2))
		assert.Equal(t, "700.00", env.remaining(t, budget.SIL))
		assert.Equal(t, "100.00", env.remaining(t, budget.CommunityAccess))
	})

	t.Run("should prefer the funding category of the shift", func(t *testing.T) {
		// given
		env := setupTestService(t, "100.00")
		sh := completedShift(44, time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC), time.Hour)
		sh.FundingCategory = "community_access"

		// when
		tx, err := env.service.Deduct(env.ctx, sh)

		// then
		require.NoError(t, err)
		assert.Equal(t, budget.CommunityAccess, tx.Category)
		assert.Equal(t, "50.00", env.remaining(t, budget.CommunityAccess))
	})

	t.Run("should scale the base rate by the staff ratio", func(t *testing.T) {
		// given
		env := setupTestService(t, "100.00")
		env.rates.Set(tenantId, pricing.AM, "1:1", "30.00")
		sh := completedShift(45, morning, 2*time.Hour)
		sh.StaffRatio = "1:2"

		// when
		tx, err := env.service.Deduct(env.ctx, sh)

		// then
		require.NoError(t, err)
		assert.Equal(t, "15.00", tx.Rate.StringFixed(2))
		assert.Equal(t, "30.00", tx.Amount.StringFixed(2))
		assert.Equal(t, "1:2", tx.Ratio)
	})

	t.Run("should use the budget override verbatim", func(t *testing.T) {
		// given
		env := setupTestService(t, "100.00")
		b, err := env.budgets.CreateBudget(env.ctx, budget.Budget{
			TenantId:        tenantId,
			ClientId:        12,
			CommunityAccess: budget.Balance{Funded: decimal.RequireFromString("100.00")},
			PriceOverrides:  map[string]decimal.Decimal{"AM": decimal.RequireFromString("40.00")},
		})
		require.NoError(t, err)
		sh := completedShift(46, morning, 90*time.Minute)
		sh.ClientId = &b.ClientId
		sh.StaffRatio = "2:1"

		// when
		tx, err := env.service.Deduct(env.ctx, sh)

		// then
		require.NoError(t, err)
		assert.Equal(t, "40.00", tx.Rate.StringFixed(2))
		assert.Equal(t, "60.00", tx.Amount.StringFixed(2))
	})

	t.Run("should charge the cent rate it stores for a sub-cent override", func(t *testing.T) {
		// given
		env := setupTestService(t, "100.00")
		b, err := env.budgets.CreateBudget(env.ctx, budget.Budget{
			TenantId:        tenantId,
			ClientId:        12,
			CommunityAccess: budget.Balance{Funded: decimal.RequireFromString("100.00")},
			PriceOverrides:  map[string]decimal.Decimal{"AM": decimal.RequireFromString("29.075")},
		})
		require.NoError(t, err)
		sh := completedShift(47, morning, 2*time.Hour)
		sh.ClientId = &b.ClientId

		// when
		tx, err := env.service.Deduct(env.ctx, sh)

		// then
		require.NoError(t, err)
		assert.Equal(t, "29.08", tx.Rate.String())
		assert.Equal(t, "58.16", tx.Amount.StringFixed(2))
		assert.True(t, tx.Amount.Equal(tx.Rate.Mul(tx.Hours).Round(2)))
	})

	t.Run("should publish the committed charge when the caller is gone", func(t *testing.T) {
		// given
		env := setupTestService(t, "100.00")
		ctx, cancel := context.WithCancel(env.ctx)
		cancel()

		// when
		tx, err := env.service.Deduct(ctx, completedShift(48, morning, 2*time.Hour))

		// then
		require.NoError(t, err)
		require.Len(t, env.published, 1)
		assert.Equal(t, tx.Id, env.published[0].TransactionId)
		assert.Equal(t, 48, env.published[0].ShiftId)
	})

	t.Run("should attribute the charge to the assignee, else the tenant admin", func(t *testing.T) {
		// given
		env := setupTestService(t, "100.00")
		assignee := 5
		assigned := completedShift(47, morning, time.Hour)
		assigned.UserId = &assignee

		// when
		assignedTx, err := env.service.Deduct(env.ctx, assigned)
		require.NoError(t, err)
		unassignedTx, err := env.service.Deduct(env.ctx, completedShift(48, morning, time.Hour))
		require.NoError(t, err)

		// then
		assert.Equal(t, assignee, *assignedTx.CreatedByUserId)
		assert.Equal(t, adminId, *unassignedTx.CreatedByUserId)
	})

	t.Run("should surface storage failures as internal errors", func(t *testing.T) {
		// given
		env := setupTestService(t, "100.00")
		env.budgets.ApplyErr = errors.New("connection reset")

		// when
		_, err := env.service.Deduct(env.ctx, completedShift(49, morning, time.Hour))

		// then
		assert.Equal(t, KindInternal, Kind(err))
	})
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, KindDuplicateTransaction, Kind(budget.ErrDuplicateTransaction))
	assert.Equal(t, KindTenantMismatch, Kind(errors.Join(errors.New("insert"), budget.ErrTenantMismatch)))
	assert.Equal(t, KindNoRateFound, Kind(pricing.ErrNoRateFound))
	assert.Equal(t, KindInternal, Kind(errors.New("boom")))
}
