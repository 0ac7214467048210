package budget

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/careledger/ndis-ledger/pkg/tenant"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type BalanceDTO struct {
	ClientId  int             `json:"clientId"`
	BudgetId  int             `json:"budgetId"`
	Category  Category        `json:"category"`
	Funded    decimal.Decimal `json:"funded"`
	Remaining decimal.Decimal `json:"remaining"`
	Spent     decimal.Decimal `json:"spent"`
}

type BudgetDTO struct {
	Id                        int                        `json:"id,omitempty"`
	ClientId                  int                        `json:"clientId"`
	CommunityAccessFunded     decimal.Decimal            `json:"communityAccessFunded"`
	CommunityAccessRemaining  decimal.Decimal            `json:"communityAccessRemaining"`
	SILFunded                 decimal.Decimal            `json:"silFunded"`
	SILRemaining              decimal.Decimal            `json:"silRemaining"`
	CapacityBuildingFunded    decimal.Decimal            `json:"capacityBuildingFunded"`
	CapacityBuildingRemaining decimal.Decimal            `json:"capacityBuildingRemaining"`
	PriceOverrides            map[string]decimal.Decimal `json:"priceOverrides,omitempty"`
}

type TransactionDTO struct {
	Id                    uuid.UUID       `json:"id"`
	BudgetId              int             `json:"budgetId"`
	Category              Category        `json:"category"`
	ShiftType             string          `json:"shiftType,omitempty"`
	Ratio                 string          `json:"ratio,omitempty"`
	Hours                 decimal.Decimal `json:"hours"`
	Rate                  decimal.Decimal `json:"rate"`
	Amount                decimal.Decimal `json:"amount"`
	ShiftId               *int            `json:"shiftId,omitempty"`
	ReversesTransactionId *uuid.UUID      `json:"reversesTransactionId,omitempty"`
	CreatedByUserId       *int            `json:"createdByUserId,omitempty"`
	Description           string          `json:"description"`
	CreatedAt             time.Time       `json:"createdAt"`
}

type ReversalRequestDTO struct {
	Reason string `json:"reason"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service}
}

// GetBalance godoc
// @Summary Get remaining balance of a funding category
// @Tags Budget
// @Produce json
// @Param clientId path int true "Client ID"
// @Param category query string true "Funding category"
// @Success 200 {object} BalanceDTO
// @Failure 400 {string} string "Invalid category"
// @Failure 404 {string} string "No budget found"
// @Router /api/clients/{clientId}/balance [get]
// @Security XTenantId
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	clientId, err := strconv.Atoi(mux.Vars(r)["clientId"])
	if err != nil {
		http.Error(w, "Invalid client id", http.StatusBadRequest)
		return
	}
	category, err := ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	remaining, err := h.service.GetRemainingBalance(r.Context(), clientId, category)
	if err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	b, err := h.service.GetBudget(r.Context(), clientId)
	if err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	balance, _ := b.Balance(category)
	balance.Remaining = remaining

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(BalanceDTO{
		ClientId:  clientId,
		BudgetId:  b.Id,
		Category:  category,
		Funded:    balance.Funded,
		Remaining: balance.Remaining,
		Spent:     balance.Spent(),
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// GetBudget godoc
// @Summary Get the budget of a client
// @Tags Budget
// @Produce json
// @Param clientId path int true "Client ID"
// @Success 200 {object} BudgetDTO
// @Failure 404 {string} string "No budget found"
// @Router /api/clients/{clientId}/budget [get]
// @Security XTenantId
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	clientId, err := strconv.Atoi(mux.Vars(r)["clientId"])
	if err != nil {
		http.Error(w, "Invalid client id", http.StatusBadRequest)
		return
	}
	b, err := h.service.GetBudget(r.Context(), clientId)
	if err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(budgetToDTO(b)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// CreateBudget godoc
// @Summary Create the budget of a client
// @Description Remaining balances start equal to the funded amounts
// @Tags Budget
// @Accept json
// @Produce json
// @Param clientId path int true "Client ID"
// @Param budget body BudgetDTO true "Funding"
// @Success 201 {object} BudgetDTO
// @Failure 400 {string} string "Bad Request"
// @Failure 409 {string} string "Budget already exists"
// @Router /api/clients/{clientId}/budget [post]
// @Security XTenantId
func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating new budget")
	w.Header().Set("Content-Type", "application/json")
	clientId, err := strconv.Atoi(mux.Vars(r)["clientId"])
	if err != nil {
		http.Error(w, "Invalid client id", http.StatusBadRequest)
		return
	}
	var dto BudgetDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	dto.ClientId = clientId

	created, err := h.service.CreateBudget(r.Context(), dtoToBudget(dto))
	if err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(budgetToDTO(created)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// ListTransactions godoc
// @Summary List ledger entries of a budget
// @Description Newest first, reversals included
// @Tags Budget
// @Produce json
// @Param budgetId path int true "Budget ID"
// @Success 200 {array} TransactionDTO
// @Failure 404 {string} string "No budget found"
// @Router /api/budgets/{budgetId}/transactions [get]
// @Security XTenantId
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	budgetId, err := strconv.Atoi(mux.Vars(r)["budgetId"])
	if err != nil {
		http.Error(w, "Invalid budget id", http.StatusBadRequest)
		return
	}
	transactions, err := h.service.ListTransactions(r.Context(), budgetId)
	if err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	dtos := make([]TransactionDTO, 0, len(transactions))
	for _, t := range transactions {
		dtos = append(dtos, TransactionToDTO(t))
	}
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// ReverseTransaction godoc
// @Summary Reverse a shift charge
// @Description Appends an offsetting transaction and restores the category balance
// @Tags Budget
// @Accept json
// @Produce json
// @Param transactionId path string true "Transaction ID"
// @Param reversal body ReversalRequestDTO false "Reason"
// @Success 201 {object} TransactionDTO
// @Failure 404 {string} string "Transaction not found"
// @Failure 409 {string} string "Transaction already reversed"
// @Router /api/transactions/{transactionId}/reversal [post]
// @Security XTenantId
// @Security XUserId
func (h *Handler) ReverseTransaction(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	transactionId, err := uuid.Parse(mux.Vars(r)["transactionId"])
	if err != nil {
		http.Error(w, "Invalid transaction id", http.StatusBadRequest)
		return
	}
	var request ReversalRequestDTO
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	reversal, err := h.service.ReverseTransaction(r.Context(), transactionId, request.Reason)
	if err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(TransactionToDTO(reversal)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// StatusFor maps ledger errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, tenant.ErrNoTenant):
		return http.StatusForbidden
	case errors.Is(err, ErrBudgetNotFound), errors.Is(err, ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidCategory), errors.Is(err, ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, ErrBudgetExists),
		errors.Is(err, ErrDuplicateTransaction),
		errors.Is(err, ErrAlreadyReversed),
		errors.Is(err, ErrReversalOfReversal):
		return http.StatusConflict
	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTenantMismatch):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func TransactionToDTO(t Transaction) TransactionDTO {
	return TransactionDTO{
		Id:                    t.Id,
		BudgetId:              t.BudgetId,
		Category:              t.Category,
		ShiftType:             t.ShiftType,
		Ratio:                 t.Ratio,
		Hours:                 t.Hours,
		Rate:                  t.Rate,
		Amount:                t.Amount,
		ShiftId:               t.ShiftId,
		ReversesTransactionId: t.ReversesTransactionId,
		CreatedByUserId:       t.CreatedByUserId,
		Description:           t.Description,
		CreatedAt:             t.CreatedAt,
	}
}

func budgetToDTO(b Budget) BudgetDTO {
	return BudgetDTO{
		Id:                        b.Id,
		ClientId:                  b.ClientId,
		CommunityAccessFunded:     b.CommunityAccess.Funded,
		CommunityAccessRemaining:  b.CommunityAccess.Remaining,
		SILFunded:                 b.SIL.Funded,
		SILRemaining:              b.SIL.Remaining,
		CapacityBuildingFunded:    b.CapacityBuilding.Funded,
		CapacityBuildingRemaining: b.CapacityBuilding.Remaining,
		PriceOverrides:            b.PriceOverrides,
	}
}

func dtoToBudget(dto BudgetDTO) Budget {
	return Budget{
		ClientId:         dto.ClientId,
		CommunityAccess:  Balance{Funded: dto.CommunityAccessFunded},
		SIL:              Balance{Funded: dto.SILFunded},
		CapacityBuilding: Balance{Funded: dto.CapacityBuildingFunded},
		PriceOverrides:   dto.PriceOverrides,
	}
}
