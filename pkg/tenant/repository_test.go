package tenant

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/careledger/ndis-ledger/internal/test_utils"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var pgContainer *postgres.PostgresContainer
var openDb func() *pgxpool.Pool

func TestMain(m *testing.M) {
	pgContainer, openDb = test_utils.TestWithDB()
	code := m.Run()
	if err := testcontainers.TerminateContainer(pgContainer); err != nil {
		log.Errorf("failed to terminate container: %s", err)
	}
	os.Exit(code)
}

func setupTestRepository(t *testing.T) (context.Context, *RepositoryImpl, *test_utils.Fixtures) {
	ctx := context.Background()
	db := openDb()
	t.Cleanup(func() {
		db.Close()
		err := pgContainer.Restore(ctx)
		require.NoError(t, err)
	})
	return ctx, NewRepository(db), test_utils.NewFixtures(t, db)
}

func TestRepositoryImpl_GetTenant(t *testing.T) {
	t.Run("should read timezone and admin", func(t *testing.T) {
		// given
		ctx, repo, f := setupTestRepository(t)
		id := f.Tenant("Sunrise Care", "Australia/Perth")
		adminId := f.User(id, "Admin")
		f.TenantAdmin(id, adminId)

		// when
		tenant, err := repo.GetTenant(ctx, id)

		// then
		require.NoError(t, err)
		assert.Equal(t, "Sunrise Care", tenant.Name)
		assert.Equal(t, "Australia/Perth", tenant.Timezone)
		require.NotNil(t, tenant.AdminUserId)
		assert.Equal(t, adminId, *tenant.AdminUserId)
		assert.Equal(t, "Australia/Perth", tenant.Location(time.UTC).String())
	})

	t.Run("should fall back to the default location", func(t *testing.T) {
		// given
		ctx, repo, f := setupTestRepository(t)
		id := f.Tenant("Sunrise Care", "")

		// when
		tenant, err := repo.GetTenant(ctx, id)

		// then
		require.NoError(t, err)
		assert.Nil(t, tenant.AdminUserId)
		assert.Equal(t, time.UTC, tenant.Location(time.UTC))
	})

	t.Run("should report unknown tenants", func(t *testing.T) {
		// given
		ctx, repo, _ := setupTestRepository(t)

		// when
		_, err := repo.GetTenant(ctx, 404)

		// then
		assert.ErrorIs(t, err, ErrTenantNotFound)
	})
}

func TestRepositoryImpl_ListTenantIds(t *testing.T) {
	// given
	ctx, repo, f := setupTestRepository(t)
	first := f.Tenant("Sunrise Care", "")
	second := f.Tenant("Harbour Support", "")

	// when
	ids, err := repo.ListTenantIds(ctx)

	// then
	require.NoError(t, err)
	assert.Equal(t, []int{first, second}, ids)
}
