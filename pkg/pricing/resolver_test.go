package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type overrides map[string]decimal.Decimal

func (o overrides) PriceOverride(shiftType string) (decimal.Decimal, bool) {
	rate, ok := o[shiftType]
	return rate, ok
}

func TestResolverImpl_ResolveRate(t *testing.T) {
	ctx := context.Background()
	tenantId := 7
	morning := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	t.Run("should prefer budget override over pricing table", func(t *testing.T) {
		// given
		rates := NewRepositoryStub().Set(tenantId, AM, "1:1", "29.07")
		resolver := NewResolver(rates)

		// when
		res, err := resolver.ResolveRate(ctx, morning, time.UTC, "1:1", tenantId, overrides{"AM": decimal.RequireFromString("35.50")})

		// then
		require.NoError(t, err)
		assert.Equal(t, AM, res.ShiftType)
		assert.Equal(t, SourceOverride, res.Source)
		assert.Equal(t, "35.50", res.Rate.StringFixed(2))
	})

	t.Run("should not multiply override by ratio", func(t *testing.T) {
		// given
		resolver := NewResolver(NewRepositoryStub())

		// when
		res, err := resolver.ResolveRate(ctx, morning, time.UTC, "2:1", tenantId, overrides{"AM": decimal.RequireFromString("40.00")})

		// then
		require.NoError(t, err)
		assert.Equal(t, "40.00", res.Rate.StringFixed(2))
	})

	t.Run("should round sub-cent override to cents", func(t *testing.T) {
		// given
		resolver := NewResolver(NewRepositoryStub())

		// when
		res, err := resolver.ResolveRate(ctx, morning, time.UTC, "1:1", tenantId, overrides{"AM": decimal.RequireFromString("29.075")})

		// then
		require.NoError(t, err)
		assert.Equal(t, SourceOverride, res.Source)
		assert.Equal(t, "29.08", res.Rate.String())
	})

	t.Run("should use pricing table when override is for another shift type", func(t *testing.T) {
		// given
		rates := NewRepositoryStub().Set(tenantId, AM, "1:1", "29.07")
		resolver := NewResolver(rates)

		// when
		res, err := resolver.ResolveRate(ctx, morning, time.UTC, "1:1", tenantId, overrides{"PM": decimal.RequireFromString("50")})

		// then
		require.NoError(t, err)
		assert.Equal(t, SourcePricingTable, res.Source)
		assert.Equal(t, "29.07", res.Rate.StringFixed(2))
	})

	t.Run("should use exact ratio row from pricing table", func(t *testing.T) {
		// given
		rates := NewRepositoryStub().
			Set(tenantId, AM, "1:1", "29.07").
			Set(tenantId, AM, "1:2", "16.00")
		resolver := NewResolver(rates)

		// when
		res, err := resolver.ResolveRate(ctx, morning, time.UTC, "1:2", tenantId, nil)

		// then
		require.NoError(t, err)
		assert.Equal(t, SourcePricingTable, res.Source)
		assert.Equal(t, "16.00", res.Rate.StringFixed(2))
	})

	t.Run("should scale base rate when ratio row is missing", func(t *testing.T) {
		// given
		rates := NewRepositoryStub().Set(tenantId, AM, "1:1", "30.00")
		resolver := NewResolver(rates)

		// when
		half, err := resolver.ResolveRate(ctx, morning, time.UTC, "1:2", tenantId, nil)
		require.NoError(t, err)
		double, err := resolver.ResolveRate(ctx, morning, time.UTC, "2:1", tenantId, nil)
		require.NoError(t, err)

		// then
		assert.Equal(t, SourceBaseRate, half.Source)
		assert.Equal(t, "15.00", half.Rate.StringFixed(2))
		assert.Equal(t, "60.00", double.Rate.StringFixed(2))
	})

	t.Run("should treat malformed ratio as 1:1", func(t *testing.T) {
		// given
		rates := NewRepositoryStub().Set(tenantId, AM, "1:1", "29.07")
		resolver := NewResolver(rates)

		// when
		res, err := resolver.ResolveRate(ctx, morning, time.UTC, "abc", tenantId, nil)

		// then
		require.NoError(t, err)
		assert.Equal(t, BaseRatio, res.Ratio)
		assert.Equal(t, "29.07", res.Rate.StringFixed(2))
	})

	t.Run("should not use rates of another tenant", func(t *testing.T) {
		// given
		rates := NewRepositoryStub().Set(tenantId+1, AM, "1:1", "29.07")
		resolver := NewResolver(rates)

		// when
		_, err := resolver.ResolveRate(ctx, morning, time.UTC, "1:1", tenantId, nil)

		// then
		assert.ErrorIs(t, err, ErrNoRateFound)
	})

	t.Run("should return no rate found when neither exact nor base rate exists", func(t *testing.T) {
		// given
		rates := NewRepositoryStub().Set(tenantId, PM, "1:1", "31.00")
		resolver := NewResolver(rates)

		// when
		_, err := resolver.ResolveRate(ctx, morning, time.UTC, "1:2", tenantId, nil)

		// then
		assert.ErrorIs(t, err, ErrNoRateFound)
	})

	t.Run("should propagate storage errors", func(t *testing.T) {
		// given
		rates := NewRepositoryStub()
		rates.Err = errors.New("connection reset")
		resolver := NewResolver(rates)

		// when
		_, err := resolver.ResolveRate(ctx, morning, time.UTC, "1:1", tenantId, nil)

		// then
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoRateFound)
	})
}
