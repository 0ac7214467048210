package pricing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type ShiftType string

const (
	AM          ShiftType = "AM"
	PM          ShiftType = "PM"
	ActiveNight ShiftType = "ActiveNight"
	Sleepover   ShiftType = "Sleepover"
)

// BaseRatio is the one worker to one participant ratio the pricing table is quoted in.
const BaseRatio = "1:1"

// MaxShiftHours bounds a single chargeable shift.
var MaxShiftHours = decimal.NewFromInt(24)

var ErrInvalidDuration = errors.New("invalid shift duration")

// ClassifyShiftType maps the local start hour to a shift type:
// [06:00,14:00) AM, [14:00,22:00) PM, [22:00,24:00) ActiveNight, [00:00,06:00) Sleepover.
func ClassifyShiftType(start time.Time, loc *time.Location) ShiftType {
	if loc != nil {
		start = start.In(loc)
	}
	hour := start.Hour()
	switch {
	case hour >= 6 && hour < 14:
		return AM
	case hour >= 14 && hour < 22:
		return PM
	case hour >= 22:
		return ActiveNight
	default:
		return Sleepover
	}
}

// Hours returns the shift length in fractional hours rounded to four places.
// Shifts that are empty, reversed or longer than MaxShiftHours are rejected with ErrInvalidDuration.
func Hours(start, end time.Time) (decimal.Decimal, error) {
	d := end.Sub(start)
	if d <= 0 {
		return decimal.Zero, ErrInvalidDuration
	}
	hours := decimal.NewFromInt(d.Milliseconds()).Div(decimal.NewFromInt(int64(time.Hour / time.Millisecond))).Round(4)
	if hours.GreaterThan(MaxShiftHours) || hours.IsZero() {
		return decimal.Zero, ErrInvalidDuration
	}
	return hours, nil
}

// Cost is rate × hours rounded half away from zero to cents.
func Cost(rate, hours decimal.Decimal) decimal.Decimal {
	return rate.Mul(hours).Round(2)
}
