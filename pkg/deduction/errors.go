package deduction

import (
	"errors"

	"github.com/careledger/ndis-ledger/pkg/budget"
	"github.com/careledger/ndis-ledger/pkg/pricing"
	"github.com/careledger/ndis-ledger/pkg/shift"
	"github.com/careledger/ndis-ledger/pkg/tenant"
)

var (
	ErrInvalidShiftData     = errors.New("invalid shift data")
	ErrInvalidDuration      = pricing.ErrInvalidDuration
	ErrNoBudgetFound        = budget.ErrBudgetNotFound
	ErrNoRateFound          = pricing.ErrNoRateFound
	ErrInsufficientFunds    = budget.ErrInsufficientFunds
	ErrDuplicateTransaction = budget.ErrDuplicateTransaction
	ErrTenantMismatch       = budget.ErrTenantMismatch
	ErrShiftNotFound        = shift.ErrShiftNotFound
)

const (
	KindInvalidShiftData     = "InvalidShiftData"
	KindInvalidDuration      = "InvalidDuration"
	KindNoBudgetFound        = "NoBudgetFound"
	KindNoRateFound          = "NoRateFound"
	KindInsufficientFunds    = "InsufficientFunds"
	KindDuplicateTransaction = "DuplicateTransaction"
	KindTenantMismatch       = "TenantMismatch"
	KindShiftNotFound        = "ShiftNotFound"
	KindTenantNotFound       = "TenantNotFound"
	KindInternal             = "Internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrTenantMismatch, KindTenantMismatch},
	{ErrInvalidShiftData, KindInvalidShiftData},
	{ErrInvalidDuration, KindInvalidDuration},
	{ErrNoBudgetFound, KindNoBudgetFound},
	{ErrNoRateFound, KindNoRateFound},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrDuplicateTransaction, KindDuplicateTransaction},
	{ErrShiftNotFound, KindShiftNotFound},
	{tenant.ErrTenantNotFound, KindTenantNotFound},
}

// Kind names the deduction outcome of err, "" for nil and KindInternal for anything unrecognised.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
