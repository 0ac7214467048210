package backfill

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Report describes one reconciliation run. Errors is the worklist of shifts that still need attention,
// TenantErrors lists tenants whose shifts could not be read at all.
type Report struct {
	TenantIds    []int           `json:"tenantIds"`
	Processed    []Processed     `json:"processed"`
	Skipped      []Skipped       `json:"skipped"`
	Errors       []Failure       `json:"errors"`
	TenantErrors []TenantFailure `json:"tenantErrors"`
	StartedAt    time.Time       `json:"startedAt"`
	FinishedAt   time.Time       `json:"finishedAt"`
}

type Processed struct {
	ShiftId       int             `json:"shiftId"`
	TenantId      int             `json:"tenantId"`
	TransactionId uuid.UUID       `json:"transactionId"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
}

// Skipped is a shift that was already charged, typically by a concurrent deduction.
type Skipped struct {
	ShiftId  int    `json:"shiftId"`
	TenantId int    `json:"tenantId"`
	Reason   string `json:"reason"`
}

type Failure struct {
	ShiftId  int    `json:"shiftId"`
	TenantId int    `json:"tenantId"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

type TenantFailure struct {
	TenantId int    `json:"tenantId"`
	Message  string `json:"message"`
}

func newReport() Report {
	return Report{
		TenantIds:    []int{},
		Processed:    []Processed{},
		Skipped:      []Skipped{},
		Errors:       []Failure{},
		TenantErrors: []TenantFailure{},
	}
}

func (r *Report) sort() {
	sort.Slice(r.Processed, func(i, j int) bool { return r.Processed[i].ShiftId < r.Processed[j].ShiftId })
	sort.Slice(r.Skipped, func(i, j int) bool { return r.Skipped[i].ShiftId < r.Skipped[j].ShiftId })
	sort.Slice(r.Errors, func(i, j int) bool { return r.Errors[i].ShiftId < r.Errors[j].ShiftId })
}
