package budget

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrBudgetNotFound       = errors.New("no budget found")
	ErrBudgetExists         = errors.New("budget already exists for client")
	ErrInvalidCategory      = errors.New("invalid budget category")
	ErrInvalidAmount        = errors.New("invalid transaction amount")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrDuplicateTransaction = errors.New("duplicate transaction for shift")
	ErrTenantMismatch       = errors.New("tenant mismatch")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrAlreadyReversed      = errors.New("transaction already reversed")
	ErrReversalOfReversal   = errors.New("reversal transactions cannot be reversed")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// mapPgError turns constraint rejections into ledger errors. Any other error is returned unchanged.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case "budget_transactions_shift_id_key":
			return ErrDuplicateTransaction
		case "budget_transactions_reverses_key":
			return ErrAlreadyReversed
		case "budgets_client_tenant_key":
			return ErrBudgetExists
		}
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrTenantMismatch, pgErr.ConstraintName)
	case pgCheckViolation:
		if pgErr.ConstraintName == "budgets_remaining_non_negative" {
			return ErrInsufficientFunds
		}
	}
	return err
}
