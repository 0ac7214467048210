package deduction

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/careledger/ndis-ledger/pkg/budget"
	"github.com/careledger/ndis-ledger/pkg/tenant"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type ErrorDTO struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service}
}

// DeductForShift godoc
// @Summary Charge a completed shift to the client's budget
// @Description Records one transaction per shift. A repeated call returns 409 with kind DuplicateTransaction.
// @Tags Deduction
// @Produce json
// @Param shiftId path int true "Shift ID"
// @Success 201 {object} budget.TransactionDTO
// @Failure 404 {object} ErrorDTO "Shift or budget not found"
// @Failure 409 {object} ErrorDTO "Shift already charged"
// @Failure 422 {object} ErrorDTO "Shift cannot be charged"
// @Router /api/shifts/{shiftId}/deduction [post]
// @Security XTenantId
func (h *Handler) DeductForShift(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	shiftId, err := strconv.Atoi(mux.Vars(r)["shiftId"])
	if err != nil {
		http.Error(w, "Invalid shift id", http.StatusBadRequest)
		return
	}
	log.Debugf("Deducting shift %d", shiftId)

	t, err := h.service.DeductForShift(r.Context(), shiftId)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(budget.TransactionToDTO(t)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := Kind(err)
	status := http.StatusInternalServerError
	switch kind {
	case KindShiftNotFound, KindNoBudgetFound, KindTenantNotFound:
		status = http.StatusNotFound
	case KindDuplicateTransaction:
		status = http.StatusConflict
	case KindInvalidShiftData, KindInvalidDuration, KindNoRateFound, KindInsufficientFunds:
		status = http.StatusUnprocessableEntity
	case KindTenantMismatch:
		status = http.StatusForbidden
	}
	if errors.Is(err, tenant.ErrNoTenant) {
		status = http.StatusForbidden
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorDTO{Kind: kind, Message: err.Error()}); err != nil {
		log.Errorf("failed to encode error response: %v", err)
	}
}
