package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Deduction
	r.HandleFunc("/api/shifts/{shiftId}/deduction", deps.DeductionHandler.DeductForShift).Methods("POST")

	// Budget
	r.HandleFunc("/api/clients/{clientId}/balance", deps.BudgetHandler.GetBalance).Queries("category", "{category}").Methods("GET")
	r.HandleFunc("/api/clients/{clientId}/budget", deps.BudgetHandler.GetBudget).Methods("GET")
	r.HandleFunc("/api/clients/{clientId}/budget", deps.BudgetHandler.CreateBudget).Methods("POST")
	r.HandleFunc("/api/budgets/{budgetId}/transactions", deps.BudgetHandler.ListTransactions).Methods("GET")
	r.HandleFunc("/api/transactions/{transactionId}/reversal", deps.BudgetHandler.ReverseTransaction).Methods("POST")

	// Backfill
	r.HandleFunc("/api/backfill", deps.BackfillHandler.RunBackfill).Methods("POST")
}
