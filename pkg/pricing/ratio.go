package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CalculateRatioMultiplier parses "W:P" (workers:participants) and returns W / P.
// Malformed, zero or negative ratios yield 1.
func CalculateRatioMultiplier(ratio string) decimal.Decimal {
	workers, participants, ok := parseRatio(ratio)
	if !ok {
		return decimal.NewFromInt(1)
	}
	return workers.Div(participants)
}

// NormalizeRatio trims whitespace around both sides of a ratio and maps malformed values to BaseRatio.
func NormalizeRatio(ratio string) string {
	workers, participants, ok := parseRatio(ratio)
	if !ok {
		return BaseRatio
	}
	return workers.String() + ":" + participants.String()
}

func parseRatio(ratio string) (decimal.Decimal, decimal.Decimal, bool) {
	left, right, found := strings.Cut(strings.TrimSpace(ratio), ":")
	if !found {
		return decimal.Zero, decimal.Zero, false
	}
	workers, err := decimal.NewFromString(strings.TrimSpace(left))
	if err != nil || !workers.IsPositive() {
		return decimal.Zero, decimal.Zero, false
	}
	participants, err := decimal.NewFromString(strings.TrimSpace(right))
	if err != nil || !participants.IsPositive() {
		return decimal.Zero, decimal.Zero, false
	}
	return workers, participants, true
}
