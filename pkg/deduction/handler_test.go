package deduction

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/careledger/ndis-ledger/pkg/budget"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_DeductForShift(t *testing.T) {
	env := setupTestService(t, "100.00")
	env.shifts.Add(completedShift(42, morning, 2*time.Hour))
	r := mux.NewRouter()
	r.HandleFunc("/api/shifts/{shiftId}/deduction", NewHandler(env.service).DeductForShift).Methods("POST")

	call := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil).WithContext(env.ctx)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	t.Run("should return the created transaction", func(t *testing.T) {
		// when
		rec := call("/api/shifts/42/deduction")

		// then
		require.Equal(t, http.StatusCreated, rec.Code)
		var dto budget.TransactionDTO
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
		assert.Equal(t, "58.14", dto.Amount.StringFixed(2))
		assert.Equal(t, 42, *dto.ShiftId)
	})

	t.Run("should answer conflict for a charged shift", func(t *testing.T) {
		// when
		rec := call("/api/shifts/42/deduction")

		// then
		require.Equal(t, http.StatusConflict, rec.Code)
		var dto ErrorDTO
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
		assert.Equal(t, KindDuplicateTransaction, dto.Kind)
	})

	t.Run("should answer not found for unknown shifts", func(t *testing.T) {
		// when
		rec := call("/api/shifts/7/deduction")

		// then
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("should reject malformed ids", func(t *testing.T) {
		// when
		rec := call("/api/shifts/abc/deduction")

		// then
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
