// Package money provides decimal-safe arithmetic for monetary values.
//
// Every financial computation in the platform goes through this package;
// binary floating point is never used for money. Amounts are represented as
// shopspring decimals and rounded half-up to 2 decimal places (the minor
// unit of the supported currencies).
//
// The package never returns errors. Invalid textual input yields a zero
// value and is logged, so a single malformed amount cannot take down an
// order-placement or reporting path. Callers that must fail loudly on bad
// input validate before calling.
package money

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func init() {
	// Raise the global division precision so rate computations keep at
	// least 20 significant digits before the final half-up rounding.
	if decimal.DivisionPrecision < 20 {
		decimal.DivisionPrecision = 20
	}
}

var (
	hundred = decimal.NewFromInt(100)
)

// Money performs currency arithmetic. The zero value is not usable; construct
// with New.
type Money struct {
	lg *zap.Logger
}

// New creates a Money calculator. Invalid inputs are reported through lg.
func New(lg *zap.Logger) *Money {
	return &Money{lg: lg}
}

// ToMinorUnits converts a major-unit amount ("12.34") to minor units (1234),
// rounding half-up. Unparsable input yields 0 and is logged.
func (m *Money) ToMinorUnits(amount string) int64 {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		m.lg.Error("invalid amount for minor unit conversion",
			zap.String("amount", amount),
			zap.Error(err),
		)
		return 0
	}
	return d.Mul(hundred).Round(0).IntPart()
}

// ToMajorUnits converts minor units (1234) back to a major-unit decimal (12.34).
func (m *Money) ToMajorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(hundred)
}

// Commission returns amount * rate, where rate is a fraction (0.05 for 5%).
// Callers holding a percentage use Percentage instead.
func (m *Money) Commission(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate)
}

// Percentage returns value * percent / 100.
func (m *Money) Percentage(value, percent decimal.Decimal) decimal.Decimal {
	return value.Mul(percent).Div(hundred)
}

// SumAmounts parses and sums textual amounts. Unparsable entries are skipped
// and logged rather than failing the whole sum.
func (m *Money) SumAmounts(amounts []string) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range amounts {
		d, err := decimal.NewFromString(a)
		if err != nil {
			m.lg.Error("skipping invalid amount in sum",
				zap.String("amount", a),
				zap.Error(err),
			)
			continue
		}
		sum = sum.Add(d)
	}
	return sum
}

// Round rounds an amount to 2 decimal places, half-up.
func (m *Money) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}
