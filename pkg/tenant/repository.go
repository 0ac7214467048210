package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var ErrTenantNotFound = errors.New("tenant not found")

type Repository interface {
	GetTenant(ctx context.Context, tenantId int) (Tenant, error)
	ListTenantIds(ctx context.Context) ([]int, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) GetTenant(ctx context.Context, tenantId int) (Tenant, error) {
	query := `SELECT id, name, timezone, admin_user_id FROM tenants WHERE id = $1`

	var (
		t           Tenant
		timezone    sql.NullString
		adminUserId sql.NullInt64
	)
	err := r.db.QueryRow(ctx, query, tenantId).Scan(&t.Id, &t.Name, &timezone, &adminUserId)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrTenantNotFound
		}
		err := fmt.Errorf("could not get tenant %d: %w", tenantId, err)
		log.Error(err)
		return Tenant{}, err
	}
	t.Timezone = timezone.String
	if adminUserId.Valid {
		id := int(adminUserId.Int64)
		t.AdminUserId = &id
	}
	return t, nil
}

func (r *RepositoryImpl) ListTenantIds(ctx context.Context) ([]int, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM tenants ORDER BY id`)
	if err != nil {
		err := fmt.Errorf("could not query tenants: %w", err)
		log.Error(err)
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		err := fmt.Errorf("error scanning tenants: %w", err)
		log.Error(err)
		return nil, err
	}
	return ids, nil
}
