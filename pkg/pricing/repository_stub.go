package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

type RepositoryStub struct {
	rates map[string]decimal.Decimal
	// Err, when set, is returned from every lookup.
	Err error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{rates: map[string]decimal.Decimal{}}
}

func (s *RepositoryStub) Set(tenantId int, shiftType ShiftType, ratio string, rate string) *RepositoryStub {
	s.rates[stubKey(tenantId, shiftType, ratio)] = decimal.RequireFromString(rate)
	return s
}

func (s *RepositoryStub) GetPricingRate(ctx context.Context, shiftType ShiftType, ratio string, tenantId int) (decimal.Decimal, error) {
	if s.Err != nil {
		return decimal.Zero, s.Err
	}
	rate, ok := s.rates[stubKey(tenantId, shiftType, ratio)]
	if !ok {
		return decimal.Zero, ErrRateNotFound
	}
	return rate, nil
}

func stubKey(tenantId int, shiftType ShiftType, ratio string) string {
	return fmt.Sprintf("%d/%s/%s", tenantId, shiftType, ratio)
}
