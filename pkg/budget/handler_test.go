package budget

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// remainingOnly answers GetRemainingBalance with a fixed amount and everything else from the stub.
type remainingOnly struct {
	*ServiceImpl
	remaining decimal.Decimal
	calls     int
}

func (s *remainingOnly) GetRemainingBalance(ctx context.Context, clientId int, category Category) (decimal.Decimal, error) {
	s.calls++
	if _, err := s.ServiceImpl.GetRemainingBalance(ctx, clientId, category); err != nil {
		return decimal.Zero, err
	}
	return s.remaining, nil
}

func TestHandler_GetBalance(t *testing.T) {
	ctx, service, repo, _ := setupTestService(t)
	b, err := service.CreateBudget(ctx, Budget{
		ClientId:        11,
		CommunityAccess: Balance{Funded: decimal.RequireFromString("100.00")},
	})
	require.NoError(t, err)
	shiftId := 42
	_, _, err = repo.ApplyTransaction(ctx, Transaction{
		BudgetId: b.Id,
		TenantId: 1,
		Category: CommunityAccess,
		Amount:   decimal.RequireFromString("58.14"),
		ShiftId:  &shiftId,
	})
	require.NoError(t, err)

	serve := func(s Service, path string) *httptest.ResponseRecorder {
		r := mux.NewRouter()
		r.HandleFunc("/api/clients/{clientId}/balance", NewHandler(s).GetBalance).Methods("GET")
		req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	t.Run("should report funded, remaining and spent of the category", func(t *testing.T) {
		// when
		rec := serve(service, "/api/clients/11/balance?category=CommunityAccess")

		// then
		require.Equal(t, http.StatusOK, rec.Code)
		var dto BalanceDTO
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
		assert.Equal(t, b.Id, dto.BudgetId)
		assert.Equal(t, CommunityAccess, dto.Category)
		assert.Equal(t, "100.00", dto.Funded.StringFixed(2))
		assert.Equal(t, "41.86", dto.Remaining.StringFixed(2))
		assert.Equal(t, "58.14", dto.Spent.StringFixed(2))
	})

	t.Run("should read the remaining amount through the service balance lookup", func(t *testing.T) {
		// given
		s := &remainingOnly{ServiceImpl: service, remaining: decimal.RequireFromString("12.50")}

		// when
		rec := serve(s, "/api/clients/11/balance?category=community_access")

		// then
		require.Equal(t, http.StatusOK, rec.Code)
		var dto BalanceDTO
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
		assert.Equal(t, 1, s.calls)
		assert.Equal(t, "12.50", dto.Remaining.StringFixed(2))
		assert.Equal(t, "87.50", dto.Spent.StringFixed(2))
	})

	t.Run("should answer not found for clients without budget", func(t *testing.T) {
		// when
		rec := serve(service, "/api/clients/12/balance?category=SIL")

		// then
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("should reject unknown categories", func(t *testing.T) {
		// when
		rec := serve(service, "/api/clients/11/balance?category=Transport")

		// then
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
