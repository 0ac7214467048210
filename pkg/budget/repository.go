package budget

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	// GetBudget returns the budget of a client, or ErrBudgetNotFound.
	GetBudget(ctx context.Context, clientId int, tenantId int) (Budget, error)
	GetBudgetById(ctx context.Context, budgetId int, tenantId int) (Budget, error)
	GetRemaining(ctx context.Context, budgetId int, tenantId int, category Category) (decimal.Decimal, error)
	CreateBudget(ctx context.Context, budget Budget) (Budget, error)
	// ApplyTransaction records a charge and decrements the category balance in one database transaction.
	// It returns the stored transaction and the remaining balance after the charge.
	ApplyTransaction(ctx context.Context, t Transaction) (Transaction, decimal.Decimal, error)
	// ReverseTransaction appends an offsetting entry for a charge and restores its category balance.
	ReverseTransaction(ctx context.Context, tenantId int, transactionId uuid.UUID, userId *int, description string) (Transaction, decimal.Decimal, error)
	ListTransactions(ctx context.Context, budgetId int, tenantId int) ([]Transaction, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

// remainingColumn returns the balance column of a category. Column names never come from input.
func remainingColumn(c Category) (string, error) {
	switch c {
	case CommunityAccess:
		return "community_access_remaining", nil
	case SIL:
		return "sil_remaining", nil
	case CapacityBuilding:
		return "capacity_building_remaining", nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, c)
}

const selectBudgetColumns = `b.id, b.tenant_id, b.client_id,
	b.community_access_funded::text, b.community_access_remaining::text,
	b.sil_funded::text, b.sil_remaining::text,
	b.capacity_building_funded::text, b.capacity_building_remaining::text,
	b.price_overrides::text, b.created_at, b.updated_at`

func (r *RepositoryImpl) GetBudget(ctx context.Context, clientId int, tenantId int) (Budget, error) {
	query := `SELECT ` + selectBudgetColumns + ` FROM budgets b WHERE b.client_id = $1 AND b.tenant_id = $2`
	return r.getBudget(ctx, query, clientId, tenantId)
}

func (r *RepositoryImpl) GetBudgetById(ctx context.Context, budgetId int, tenantId int) (Budget, error) {
	query := `SELECT ` + selectBudgetColumns + ` FROM budgets b WHERE b.id = $1 AND b.tenant_id = $2`
	return r.getBudget(ctx, query, budgetId, tenantId)
}

func (r *RepositoryImpl) getBudget(ctx context.Context, query string, id int, tenantId int) (Budget, error) {
	b, err := scanBudget(r.db.QueryRow(ctx, query, id, tenantId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Budget{}, ErrBudgetNotFound
		}
		err := fmt.Errorf("could not get budget: %w", err)
		log.Error(err)
		return Budget{}, err
	}
	return b, nil
}

func (r *RepositoryImpl) GetRemaining(ctx context.Context, budgetId int, tenantId int, category Category) (decimal.Decimal, error) {
	column, err := remainingColumn(category)
	if err != nil {
		return decimal.Zero, err
	}
	query := `SELECT ` + column + `::text FROM budgets WHERE id = $1 AND tenant_id = $2`

	var remaining string
	if err := r.db.QueryRow(ctx, query, budgetId, tenantId).Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrBudgetNotFound
		}
		err := fmt.Errorf("could not get remaining balance: %w", err)
		log.Error(err)
		return decimal.Zero, err
	}
	return decimal.NewFromString(remaining)
}

func (r *RepositoryImpl) CreateBudget(ctx context.Context, budget Budget) (Budget, error) {
	overrides, err := marshalOverrides(budget.PriceOverrides)
	if err != nil {
		return Budget{}, err
	}
	for _, c := range Categories {
		balance, _ := budget.Balance(c)
		if balance.Funded.IsNegative() {
			return Budget{}, fmt.Errorf("%w: negative funding for %s", ErrInvalidAmount, c)
		}
	}

	query := `INSERT INTO budgets AS b (
					tenant_id,
					client_id,
					community_access_funded,
					community_access_remaining,
					sil_funded,
					sil_remaining,
					capacity_building_funded,
					capacity_building_remaining,
					price_overrides
				) VALUES ($1, $2, $3::numeric, $3::numeric, $4::numeric, $4::numeric, $5::numeric, $5::numeric, $6::jsonb)
				RETURNING ` + selectBudgetColumns

	created, err := scanBudget(r.db.QueryRow(ctx, query,
		budget.TenantId,
		budget.ClientId,
		budget.CommunityAccess.Funded.String(),
		budget.SIL.Funded.String(),
		budget.CapacityBuilding.Funded.String(),
		overrides,
	))
	if err != nil {
		mapped := mapPgError(err)
		if mapped == err {
			err = fmt.Errorf("could not create budget: %w", err)
			log.Error(err)
			return Budget{}, err
		}
		return Budget{}, mapped
	}
	return created, nil
}

// ApplyTransaction locks the budget row, so charges against one budget are serialized while
// charges against different budgets proceed in parallel.
func (r *RepositoryImpl) ApplyTransaction(ctx context.Context, t Transaction) (Transaction, decimal.Decimal, error) {
	if t.ShiftId == nil {
		return Transaction{}, decimal.Zero, fmt.Errorf("%w: charge without shift", ErrInvalidAmount)
	}
	if t.Amount.IsNegative() {
		return Transaction{}, decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidAmount, t.Amount)
	}
	column, err := remainingColumn(t.Category)
	if err != nil {
		return Transaction{}, decimal.Zero, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Transaction{}, decimal.Zero, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	remaining, err := lockBalance(ctx, tx, column, t.BudgetId, t.TenantId)
	if err != nil {
		return Transaction{}, decimal.Zero, err
	}

	var charged bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM budget_transactions WHERE shift_id = $1)`, *t.ShiftId).Scan(&charged)
	if err != nil {
		err := fmt.Errorf("could not check shift transaction: %w", err)
		log.Error(err)
		return Transaction{}, decimal.Zero, err
	}
	if charged {
		return Transaction{}, decimal.Zero, ErrDuplicateTransaction
	}

	if remaining.LessThan(t.Amount) {
		return Transaction{}, decimal.Zero, fmt.Errorf("%w: %s remaining %s, charge %s", ErrInsufficientFunds, t.Category, remaining, t.Amount)
	}

	stored, err := insertTransaction(ctx, tx, t)
	if err != nil {
		return Transaction{}, decimal.Zero, err
	}

	after, err := adjustBalance(ctx, tx, column, t.BudgetId, t.TenantId, t.Amount.Neg())
	if err != nil {
		return Transaction{}, decimal.Zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, decimal.Zero, fmt.Errorf("could not commit transaction: %w", mapPgError(err))
	}
	return stored, after, nil
}

func (r *RepositoryImpl) ReverseTransaction(
	ctx context.Context,
	tenantId int,
	transactionId uuid.UUID,
	userId *int,
	description string,
) (Transaction, decimal.Decimal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Transaction{}, decimal.Zero, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	query := `SELECT ` + selectTransactionColumns + ` FROM budget_transactions t WHERE t.id = $1 AND t.tenant_id = $2`
	original, err := scanTransaction(tx.QueryRow(ctx, query, transactionId, tenantId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, decimal.Zero, ErrTransactionNotFound
		}
		err := fmt.Errorf("could not get transaction: %w", err)
		log.Error(err)
		return Transaction{}, decimal.Zero, err
	}
	if original.IsReversal() {
		return Transaction{}, decimal.Zero, ErrReversalOfReversal
	}

	column, err := remainingColumn(original.Category)
	if err != nil {
		return Transaction{}, decimal.Zero, err
	}
	if _, err := lockBalance(ctx, tx, column, original.BudgetId, tenantId); err != nil {
		return Transaction{}, decimal.Zero, err
	}

	var reversed bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM budget_transactions WHERE reverses_transaction_id = $1)`, original.Id).Scan(&reversed)
	if err != nil {
		err := fmt.Errorf("could not check reversal: %w", err)
		log.Error(err)
		return Transaction{}, decimal.Zero, err
	}
	if reversed {
		return Transaction{}, decimal.Zero, ErrAlreadyReversed
	}

	if description == "" {
		description = fmt.Sprintf("Reversal of transaction %s", original.Id)
	}
	stored, err := insertTransaction(ctx, tx, Transaction{
		BudgetId:              original.BudgetId,
		TenantId:              tenantId,
		Category:              original.Category,
		ShiftType:             original.ShiftType,
		Ratio:                 original.Ratio,
		Hours:                 original.Hours.Neg(),
		Rate:                  original.Rate,
		Amount:                original.Amount.Neg(),
		ReversesTransactionId: &original.Id,
		CreatedByUserId:       userId,
		Description:           description,
	})
	if err != nil {
		return Transaction{}, decimal.Zero, err
	}

	after, err := adjustBalance(ctx, tx, column, original.BudgetId, tenantId, original.Amount)
	if err != nil {
		return Transaction{}, decimal.Zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, decimal.Zero, fmt.Errorf("could not commit transaction: %w", mapPgError(err))
	}
	return stored, after, nil
}

func (r *RepositoryImpl) ListTransactions(ctx context.Context, budgetId int, tenantId int) ([]Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + `
			  FROM budget_transactions t
			  WHERE t.budget_id = $1 AND t.tenant_id = $2
			  ORDER BY t.created_at DESC, t.id`

	rows, err := r.db.Query(ctx, query, budgetId, tenantId)
	if err != nil {
		err := fmt.Errorf("could not query transactions: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return transactions, nil
}

// lockBalance takes the row lock on a budget and returns the current balance of the column.
// A budget id that exists under another tenant is reported as ErrTenantMismatch.
func lockBalance(ctx context.Context, tx pgx.Tx, column string, budgetId int, tenantId int) (decimal.Decimal, error) {
	query := `SELECT tenant_id, ` + column + `::text FROM budgets WHERE id = $1 FOR UPDATE`

	var (
		ownerTenantId int
		remaining     string
	)
	if err := tx.QueryRow(ctx, query, budgetId).Scan(&ownerTenantId, &remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrBudgetNotFound
		}
		err := fmt.Errorf("could not lock budget %d: %w", budgetId, err)
		log.Error(err)
		return decimal.Zero, err
	}
	if ownerTenantId != tenantId {
		log.Errorf("budget %d belongs to tenant %d, write attempted for tenant %d", budgetId, ownerTenantId, tenantId)
		return decimal.Zero, fmt.Errorf("%w: budget %d", ErrTenantMismatch, budgetId)
	}
	return decimal.NewFromString(remaining)
}

func adjustBalance(ctx context.Context, tx pgx.Tx, column string, budgetId int, tenantId int, delta decimal.Decimal) (decimal.Decimal, error) {
	query := `UPDATE budgets SET ` + column + ` = ` + column + ` + $1::numeric, updated_at = NOW()
			  WHERE id = $2 AND tenant_id = $3
			  RETURNING ` + column + `::text`

	var after string
	if err := tx.QueryRow(ctx, query, delta.String(), budgetId, tenantId).Scan(&after); err != nil {
		mapped := mapPgError(err)
		if mapped == err {
			err = fmt.Errorf("could not update balance: %w", err)
			log.Error(err)
			return decimal.Zero, err
		}
		return decimal.Zero, mapped
	}
	return decimal.NewFromString(after)
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t Transaction) (Transaction, error) {
	if t.Id == uuid.Nil {
		t.Id = uuid.New()
	}
	query := `INSERT INTO budget_transactions (
					id,
					budget_id,
					tenant_id,
					category,
					shift_type,
					ratio,
					hours,
					rate,
					amount,
					shift_id,
					reverses_transaction_id,
					created_by_user_id,
					description
				) VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7::numeric, $8::numeric, $9::numeric, $10, $11, $12, $13)
				RETURNING created_at`

	err := tx.QueryRow(ctx, query,
		t.Id,
		t.BudgetId,
		t.TenantId,
		string(t.Category),
		t.ShiftType,
		t.Ratio,
		t.Hours.String(),
		t.Rate.String(),
		t.Amount.String(),
		t.ShiftId,
		t.ReversesTransactionId,
		t.CreatedByUserId,
		t.Description,
	).Scan(&t.CreatedAt)
	if err != nil {
		mapped := mapPgError(err)
		if mapped == err {
			err = fmt.Errorf("could not insert transaction: %w", err)
			log.Error(err)
			return Transaction{}, err
		}
		if errors.Is(mapped, ErrTenantMismatch) {
			log.Errorf("ledger write rejected by tenant constraint: %v", mapped)
		}
		return Transaction{}, mapped
	}
	return t, nil
}

func rollback(ctx context.Context, tx pgx.Tx) {
	// no-op when the transaction was already committed
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		log.Errorf("rollback error: %v", err)
	}
}

const selectTransactionColumns = `t.id, t.budget_id, t.tenant_id, t.category, t.shift_type, t.ratio,
	t.hours::text, t.rate::text, t.amount::text, t.shift_id, t.reverses_transaction_id,
	t.created_by_user_id, t.description, t.created_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t                     Transaction
		category              string
		shiftType             sql.NullString
		ratio                 sql.NullString
		hours, rate, amount   string
		shiftId               sql.NullInt64
		reversesTransactionId *uuid.UUID
		createdByUserId       sql.NullInt64
	)
	if err := row.Scan(
		&t.Id,
		&t.BudgetId,
		&t.TenantId,
		&category,
		&shiftType,
		&ratio,
		&hours,
		&rate,
		&amount,
		&shiftId,
		&reversesTransactionId,
		&createdByUserId,
		&t.Description,
		&t.CreatedAt,
	); err != nil {
		return Transaction{}, err
	}
	t.Category = Category(category)
	t.ShiftType = shiftType.String
	t.Ratio = ratio.String
	t.ShiftId = nullableInt(shiftId)
	t.ReversesTransactionId = reversesTransactionId
	t.CreatedByUserId = nullableInt(createdByUserId)

	var err error
	if t.Hours, err = decimal.NewFromString(hours); err != nil {
		return Transaction{}, err
	}
	if t.Rate, err = decimal.NewFromString(rate); err != nil {
		return Transaction{}, err
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func scanBudget(row pgx.Row) (Budget, error) {
	var (
		b                       Budget
		caFunded, caRemaining   string
		silFunded, silRemaining string
		cbFunded, cbRemaining   string
		overrides               string
		createdAt, updatedAt    time.Time
	)
	if err := row.Scan(
		&b.Id,
		&b.TenantId,
		&b.ClientId,
		&caFunded, &caRemaining,
		&silFunded, &silRemaining,
		&cbFunded, &cbRemaining,
		&overrides,
		&createdAt,
		&updatedAt,
	); err != nil {
		return Budget{}, err
	}
	b.CreatedAt = createdAt
	b.UpdatedAt = updatedAt

	var err error
	if b.CommunityAccess, err = parseBalance(caFunded, caRemaining); err != nil {
		return Budget{}, err
	}
	if b.SIL, err = parseBalance(silFunded, silRemaining); err != nil {
		return Budget{}, err
	}
	if b.CapacityBuilding, err = parseBalance(cbFunded, cbRemaining); err != nil {
		return Budget{}, err
	}
	if err := json.Unmarshal([]byte(overrides), &b.PriceOverrides); err != nil {
		return Budget{}, fmt.Errorf("could not decode price overrides: %w", err)
	}
	return b, nil
}

func parseBalance(funded, remaining string) (Balance, error) {
	f, err := decimal.NewFromString(funded)
	if err != nil {
		return Balance{}, err
	}
	r, err := decimal.NewFromString(remaining)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Funded: f, Remaining: r}, nil
}

func marshalOverrides(overrides map[string]decimal.Decimal) (string, error) {
	if len(overrides) == 0 {
		return "{}", nil
	}
	for shiftType, rate := range overrides {
		if rate.IsNegative() {
			return "", fmt.Errorf("%w: negative override for %s", ErrInvalidAmount, shiftType)
		}
	}
	data, err := json.Marshal(overrides)
	if err != nil {
		return "", fmt.Errorf("could not encode price overrides: %w", err)
	}
	return string(data), nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
