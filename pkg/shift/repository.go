package shift

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var ErrShiftNotFound = errors.New("shift not found")

type Repository interface {
	// GetCompletedShift returns a completed shift of the tenant, or ErrShiftNotFound.
	GetCompletedShift(ctx context.Context, tenantId int, shiftId int) (Shift, error)
	// ListCompletedShiftsWithoutTransaction returns the tenant's completed shifts that have no ledger transaction yet.
	ListCompletedShiftsWithoutTransaction(ctx context.Context, tenantId int) ([]Shift, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const selectShiftColumns = `s.id, s.tenant_id, s.client_id, s.user_id, s.start_time, s.end_time,
	s.status, s.staff_ratio, s.funding_category`

func (r *RepositoryImpl) GetCompletedShift(ctx context.Context, tenantId int, shiftId int) (Shift, error) {
	query := `SELECT ` + selectShiftColumns + `
			  FROM shifts s
			  WHERE s.id = $1 AND s.tenant_id = $2 AND s.status = $3`

	s, err := scanShift(r.db.QueryRow(ctx, query, shiftId, tenantId, string(StatusCompleted)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shift{}, ErrShiftNotFound
		}
		err := fmt.Errorf("could not get shift %d: %w", shiftId, err)
		log.Error(err)
		return Shift{}, err
	}
	return s, nil
}

func (r *RepositoryImpl) ListCompletedShiftsWithoutTransaction(ctx context.Context, tenantId int) ([]Shift, error) {
	query := `SELECT ` + selectShiftColumns + `
			  FROM shifts s
			  WHERE s.tenant_id = $1
			    AND s.status = $2
			    AND NOT EXISTS (
			        SELECT 1 FROM budget_transactions t
			        WHERE t.shift_id = s.id AND t.tenant_id = s.tenant_id
			    )
			  ORDER BY s.id`

	rows, err := r.db.Query(ctx, query, tenantId, string(StatusCompleted))
	if err != nil {
		err := fmt.Errorf("could not query shifts: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var shifts []Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return shifts, nil
}

func scanShift(row pgx.Row) (Shift, error) {
	var (
		s               Shift
		clientId        sql.NullInt64
		userId          sql.NullInt64
		startTime       sql.NullTime
		endTime         sql.NullTime
		status          string
		staffRatio      sql.NullString
		fundingCategory sql.NullString
	)
	if err := row.Scan(
		&s.Id,
		&s.TenantId,
		&clientId,
		&userId,
		&startTime,
		&endTime,
		&status,
		&staffRatio,
		&fundingCategory,
	); err != nil {
		return Shift{}, err
	}
	s.ClientId = nullableInt(clientId)
	s.UserId = nullableInt(userId)
	s.StartTime = nullableTime(startTime)
	s.EndTime = nullableTime(endTime)
	s.Status = Status(status)
	s.StaffRatio = staffRatio.String
	s.FundingCategory = fundingCategory.String
	return s, nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullableTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
