package backfill

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/careledger/ndis-ledger/internal/utils"
	"github.com/careledger/ndis-ledger/pkg/deduction"
	"github.com/careledger/ndis-ledger/pkg/shift"
	"github.com/careledger/ndis-ledger/pkg/tenant"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Service interface {
	// RunBackfill charges every completed shift that has no transaction yet, for one tenant or,
	// when tenantId is nil, for all of them. Per-shift failures and tenants whose shifts cannot be
	// listed are collected in the report. A tenant mismatch aborts the run and is returned together
	// with the partial report.
	RunBackfill(ctx context.Context, tenantId *int) (Report, error)
}

type ServiceImpl struct {
	tenants     tenant.Repository
	shifts      shift.Repository
	deductions  deduction.Service
	concurrency int
	clock       utils.Clock
	// serializes whole runs so the periodic job and manual triggers do not overlap
	running sync.Mutex
}

func NewService(
	tenants tenant.Repository,
	shifts shift.Repository,
	deductions deduction.Service,
	concurrency int,
	clock utils.Clock,
) *ServiceImpl {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ServiceImpl{
		tenants:     tenants,
		shifts:      shifts,
		deductions:  deductions,
		concurrency: concurrency,
		clock:       clock,
	}
}

func (s *ServiceImpl) RunBackfill(ctx context.Context, tenantId *int) (Report, error) {
	s.running.Lock()
	defer s.running.Unlock()

	report := newReport()
	report.StartedAt = s.clock.Now()

	tenantIds, err := s.tenantIds(ctx, tenantId)
	if err != nil {
		report.FinishedAt = s.clock.Now()
		return report, err
	}

	for _, id := range tenantIds {
		report.TenantIds = append(report.TenantIds, id)
		if err := s.runTenant(ctx, id, &report); err != nil {
			report.sort()
			report.FinishedAt = s.clock.Now()
			return report, fmt.Errorf("backfill aborted for tenant %d: %w", id, err)
		}
	}

	report.sort()
	report.FinishedAt = s.clock.Now()
	return report, nil
}

func (s *ServiceImpl) tenantIds(ctx context.Context, tenantId *int) ([]int, error) {
	if tenantId == nil {
		return s.tenants.ListTenantIds(ctx)
	}
	if _, err := s.tenants.GetTenant(ctx, *tenantId); err != nil {
		return nil, err
	}
	return []int{*tenantId}, nil
}

func (s *ServiceImpl) runTenant(ctx context.Context, tenantId int, report *Report) error {
	ctx = tenant.WithTenant(ctx, tenantId)
	logger := log.WithField("tenant_id", tenantId)

	shifts, err := s.shifts.ListCompletedShiftsWithoutTransaction(ctx, tenantId)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Errorf("could not list shifts, tenant skipped: %v", err)
		report.TenantErrors = append(report.TenantErrors, TenantFailure{TenantId: tenantId, Message: err.Error()})
		return nil
	}

	var (
		mu                         sync.Mutex
		processed, skipped, failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, sh := range shifts {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			t, err := s.deductions.Deduct(gctx, sh)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				processed++
				report.Processed = append(report.Processed, Processed{
					ShiftId:       sh.Id,
					TenantId:      tenantId,
					TransactionId: t.Id,
					Category:      string(t.Category),
					Amount:        t.Amount,
				})
			case errors.Is(err, deduction.ErrDuplicateTransaction):
				skipped++
				report.Skipped = append(report.Skipped, Skipped{
					ShiftId:  sh.Id,
					TenantId: tenantId,
					Reason:   deduction.KindDuplicateTransaction,
				})
			case gctx.Err() != nil && errors.Is(err, context.Canceled):
				// run already aborted, the shift stays for the next one
			default:
				failed++
				report.Errors = append(report.Errors, Failure{
					ShiftId:  sh.Id,
					TenantId: tenantId,
					Kind:     deduction.Kind(err),
					Message:  err.Error(),
				})
				if errors.Is(err, deduction.ErrTenantMismatch) {
					return err
				}
			}
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	logger.WithFields(log.Fields{
		"candidates": len(shifts),
		"processed":  processed,
		"skipped":    skipped,
		"errors":     failed,
	}).Info("backfill finished for tenant")
	return err
}
