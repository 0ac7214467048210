package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrRateNotFound = errors.New("pricing rate not found")

type Repository interface {
	GetPricingRate(ctx context.Context, shiftType ShiftType, ratio string, tenantId int) (decimal.Decimal, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) GetPricingRate(ctx context.Context, shiftType ShiftType, ratio string, tenantId int) (decimal.Decimal, error) {
	query := `SELECT hourly_rate::text FROM pricing_rates WHERE shift_type = $1 AND ratio = $2 AND tenant_id = $3`

	var rate string
	err := r.db.QueryRow(ctx, query, string(shiftType), ratio, tenantId).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrRateNotFound
		}
		err := fmt.Errorf("could not get pricing rate: %w", err)
		log.Error(err)
		return decimal.Zero, err
	}
	return decimal.NewFromString(rate)
}
