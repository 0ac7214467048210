package test_utils

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// Fixtures inserts the rows owned by external collaborators (tenants, users, clients, shifts,
// pricing) that ledger tests need.
type Fixtures struct {
	t  *testing.T
	db *pgxpool.Pool
}

func NewFixtures(t *testing.T, db *pgxpool.Pool) *Fixtures {
	return &Fixtures{t: t, db: db}
}

func (f *Fixtures) Tenant(name string, timezone string) int {
	f.t.Helper()
	var id int
	err := f.db.QueryRow(context.Background(),
		`INSERT INTO tenants (name, timezone) VALUES ($1, NULLIF($2, '')) RETURNING id`, name, timezone).Scan(&id)
	require.NoError(f.t, err)
	return id
}

func (f *Fixtures) User(tenantId int, name string) int {
	f.t.Helper()
	var id int
	err := f.db.QueryRow(context.Background(),
		`INSERT INTO users (tenant_id, name) VALUES ($1, $2) RETURNING id`, tenantId, name).Scan(&id)
	require.NoError(f.t, err)
	return id
}

func (f *Fixtures) TenantAdmin(tenantId int, userId int) {
	f.t.Helper()
	_, err := f.db.Exec(context.Background(), `UPDATE tenants SET admin_user_id = $1 WHERE id = $2`, userId, tenantId)
	require.NoError(f.t, err)
}

func (f *Fixtures) Client(tenantId int, name string) int {
	f.t.Helper()
	var id int
	err := f.db.QueryRow(context.Background(),
		`INSERT INTO clients (tenant_id, name) VALUES ($1, $2) RETURNING id`, tenantId, name).Scan(&id)
	require.NoError(f.t, err)
	return id
}

type ShiftRow struct {
	TenantId        int
	ClientId        *int
	UserId          *int
	StartTime       *time.Time
	EndTime         *time.Time
	Status          string
	StaffRatio      string
	FundingCategory string
}

func (f *Fixtures) Shift(s ShiftRow) int {
	f.t.Helper()
	if s.Status == "" {
		s.Status = "completed"
	}
	var id int
	err := f.db.QueryRow(context.Background(),
		`INSERT INTO shifts (tenant_id, client_id, user_id, start_time, end_time, status, staff_ratio, funding_category)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, '')) RETURNING id`,
		s.TenantId, s.ClientId, s.UserId, s.StartTime, s.EndTime, s.Status, s.StaffRatio, s.FundingCategory,
	).Scan(&id)
	require.NoError(f.t, err)
	return id
}

func (f *Fixtures) PricingRate(tenantId int, shiftType string, ratio string, hourlyRate string) {
	f.t.Helper()
	_, err := f.db.Exec(context.Background(),
		`INSERT INTO pricing_rates (tenant_id, shift_type, ratio, hourly_rate) VALUES ($1, $2, $3, $4::numeric)`,
		tenantId, shiftType, ratio, hourlyRate)
	require.NoError(f.t, err)
}

// Budget inserts a budget with community access funding only and returns its id.
func (f *Fixtures) Budget(tenantId int, clientId int, communityAccess string) int {
	f.t.Helper()
	var id int
	err := f.db.QueryRow(context.Background(),
		`INSERT INTO budgets (tenant_id, client_id, community_access_funded, community_access_remaining)
		 VALUES ($1, $2, $3::numeric, $3::numeric) RETURNING id`, tenantId, clientId, communityAccess).Scan(&id)
	require.NoError(f.t, err)
	return id
}

// Charge records a ledger row for a shift without touching the balance.
func (f *Fixtures) Charge(tenantId int, budgetId int, shiftId int, amount string) {
	f.t.Helper()
	_, err := f.db.Exec(context.Background(),
		`INSERT INTO budget_transactions (id, budget_id, tenant_id, category, amount, shift_id)
		 VALUES (gen_random_uuid(), $1, $2, 'CommunityAccess', $3::numeric, $4)`,
		budgetId, tenantId, amount, shiftId)
	require.NoError(f.t, err)
}

func Ptr[T any](v T) *T {
	return &v
}
