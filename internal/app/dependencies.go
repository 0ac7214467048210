package app

import (
	"time"

	"github.com/careledger/ndis-ledger/internal/config"
	"github.com/careledger/ndis-ledger/internal/event_bus"
	"github.com/careledger/ndis-ledger/internal/utils"
	"github.com/careledger/ndis-ledger/pkg/backfill"
	"github.com/careledger/ndis-ledger/pkg/budget"
	"github.com/careledger/ndis-ledger/pkg/deduction"
	"github.com/careledger/ndis-ledger/pkg/pricing"
	"github.com/careledger/ndis-ledger/pkg/shift"
	"github.com/careledger/ndis-ledger/pkg/tenant"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	EventBus *event_bus.EventBus
	Clock    utils.Clock

	TenantRepo tenant.Repository
	ShiftRepo  shift.Repository

	PricingRepo     pricing.Repository
	PricingResolver *pricing.ResolverImpl

	BudgetRepo    budget.Repository
	BudgetService *budget.ServiceImpl
	BudgetHandler *budget.Handler

	DeductionService *deduction.ServiceImpl
	DeductionHandler *deduction.Handler

	BackfillService *backfill.ServiceImpl
	BackfillHandler *backfill.Handler
}

// BuildDependencies constructs all services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.EventBus = event_bus.NewEventBus()
	deps.Clock = &utils.SystemClock{}

	deps.TenantRepo = tenant.NewRepository(db)
	deps.ShiftRepo = shift.NewRepository(db)

	deps.PricingRepo = pricing.NewRepository(db)
	deps.PricingResolver = pricing.NewResolver(deps.PricingRepo)

	deps.BudgetRepo = budget.NewRepository(db)
	deps.BudgetService = budget.NewService(deps.BudgetRepo, deps.EventBus)
	deps.BudgetHandler = budget.NewHandler(deps.BudgetService)

	deps.DeductionService = deduction.NewService(
		deps.ShiftRepo,
		deps.TenantRepo,
		deps.BudgetRepo,
		deps.PricingResolver,
		deps.EventBus,
		defaultLocation(cfg.Ledger),
	)
	deps.DeductionHandler = deduction.NewHandler(deps.DeductionService)

	deps.BackfillService = backfill.NewService(
		deps.TenantRepo,
		deps.ShiftRepo,
		deps.DeductionService,
		cfg.Backfill.Concurrency,
		deps.Clock,
	)
	deps.BackfillHandler = backfill.NewHandler(deps.BackfillService)

	return deps
}

func defaultLocation(cfg config.Ledger) *time.Location {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warnf("unknown ledger timezone %q, using UTC: %v", cfg.Timezone, err)
		return time.UTC
	}
	return loc
}
