package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrNoRateFound = errors.New("no rate found")

type RateSource string

const (
	SourceOverride     RateSource = "override"
	SourcePricingTable RateSource = "pricing_table"
	// SourceBaseRate is the 1:1 table rate scaled by the ratio multiplier.
	SourceBaseRate RateSource = "base_rate"
)

// PriceOverrides is implemented by budgets carrying tenant negotiated rates.
type PriceOverrides interface {
	PriceOverride(shiftType string) (decimal.Decimal, bool)
}

type Resolution struct {
	ShiftType ShiftType
	Ratio     string
	Rate      decimal.Decimal
	Source    RateSource
}

type Resolver interface {
	ResolveRate(ctx context.Context, startTime time.Time, loc *time.Location, ratio string, tenantId int, overrides PriceOverrides) (Resolution, error)
}

type ResolverImpl struct {
	rates Repository
}

func NewResolver(rates Repository) *ResolverImpl {
	return &ResolverImpl{rates: rates}
}

// ResolveRate picks the hourly rate for a shift. A budget override is used as is, without ratio
// scaling. Otherwise the pricing table row for the exact ratio, then the 1:1 row scaled by the ratio
// multiplier. Every rate is rounded to cents, the precision the ledger stores it with.
// ErrNoRateFound is returned when none of those exist.
func (r *ResolverImpl) ResolveRate(
	ctx context.Context,
	startTime time.Time,
	loc *time.Location,
	ratio string,
	tenantId int,
	overrides PriceOverrides,
) (Resolution, error) {
	shiftType := ClassifyShiftType(startTime, loc)
	ratio = NormalizeRatio(ratio)
	resolution := Resolution{ShiftType: shiftType, Ratio: ratio}

	if overrides != nil {
		if rate, ok := overrides.PriceOverride(string(shiftType)); ok {
			resolution.Rate = rate.Round(2)
			resolution.Source = SourceOverride
			return resolution, nil
		}
	}

	rate, err := r.rates.GetPricingRate(ctx, shiftType, ratio, tenantId)
	if err == nil {
		resolution.Rate = rate.Round(2)
		resolution.Source = SourcePricingTable
		return resolution, nil
	}
	if !errors.Is(err, ErrRateNotFound) {
		return Resolution{}, err
	}
	if ratio == BaseRatio {
		return Resolution{}, fmt.Errorf("%w: %s at %s for tenant %d", ErrNoRateFound, shiftType, ratio, tenantId)
	}

	base, err := r.rates.GetPricingRate(ctx, shiftType, BaseRatio, tenantId)
	if errors.Is(err, ErrRateNotFound) {
		return Resolution{}, fmt.Errorf("%w: %s at %s for tenant %d", ErrNoRateFound, shiftType, ratio, tenantId)
	}
	if err != nil {
		return Resolution{}, err
	}
	log.Debugf("no %s rate for ratio %s (tenant %d), scaling base rate %s", shiftType, ratio, tenantId, base)
	resolution.Rate = base.Mul(CalculateRatioMultiplier(ratio)).Round(2)
	resolution.Source = SourceBaseRate
	return resolution, nil
}
