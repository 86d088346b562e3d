// Package billing holds the pure billing computations: rate math,
// timer-bucket rounding and CSV export. Nothing in here touches storage.
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lncworks/casebilling/internal/model"
)

var sixty = decimal.NewFromInt(60)

// ValidMinutes reports whether m is one of the quarter-hour buckets.
func ValidMinutes(m int) bool {
	return m == 0 || m == 15 || m == 30 || m == 45
}

// Amount computes the monetary value of a duration at an hourly rate:
// round2((hours + minutes/60) * rate), where round2 rounds to the nearest
// cent half-to-even so that totals over many entries carry no systematic
// upward bias.
func Amount(hours float64, minutes int, rate decimal.Decimal) (decimal.Decimal, error) {
	if hours < 0 || hours > 24 {
		return decimal.Zero, fmt.Errorf("%w: hours must be within [0,24], got %v", model.ErrValidation, hours)
	}
	if !ValidMinutes(minutes) {
		return decimal.Zero, fmt.Errorf("%w: minutes must be one of 0,15,30,45, got %d", model.ErrValidation, minutes)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: billableRate must not be negative", model.ErrValidation)
	}
	dur := decimal.NewFromFloat(hours).Add(decimal.NewFromInt(int64(minutes)).Div(sixty))
	return dur.Mul(rate).RoundBank(2), nil
}

// DurationHours returns the fractional-hour duration of an entry,
// as used by the stats rollups.
func DurationHours(hours float64, minutes int) decimal.Decimal {
	return decimal.NewFromFloat(hours).Add(decimal.NewFromInt(int64(minutes)).Div(sixty))
}
