package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestMoney() *Money {
	return New(zap.NewNop())
}

func TestToMinorUnits(t *testing.T) {
	m := newTestMoney()

	tests := []struct {
		name   string
		amount string
		want   int64
	}{
		{"whole amount", "12", 1200},
		{"two decimals", "12.34", 1234},
		{"half rounds up", "0.005", 1},
		{"sub-minor truncated down", "10.004", 1000},
		{"zero", "0", 0},
		{"large", "99999.99", 9999999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.ToMinorUnits(tt.amount))
		})
	}
}

func TestToMinorUnits_InvalidInputYieldsZero(t *testing.T) {
	m := newTestMoney()

	for _, in := range []string{"", "abc", "12.3.4", "NaN", "Inf"} {
		assert.Equal(t, int64(0), m.ToMinorUnits(in), "input %q", in)
	}
}

func TestToMajorUnits(t *testing.T) {
	m := newTestMoney()

	assert.True(t, decimal.RequireFromString("12.34").Equal(m.ToMajorUnits(1234)))
	assert.True(t, decimal.Zero.Equal(m.ToMajorUnits(0)))
	assert.True(t, decimal.RequireFromString("0.01").Equal(m.ToMajorUnits(1)))
}

func TestCommission_RateIsFraction(t *testing.T) {
	m := newTestMoney()

	got := m.Commission(decimal.NewFromInt(3000), decimal.RequireFromString("0.05"))
	assert.True(t, decimal.RequireFromString("150").Equal(got))
}

func TestPercentage(t *testing.T) {
	m := newTestMoney()

	got := m.Percentage(decimal.NewFromInt(3000), decimal.RequireFromString("5.00"))
	assert.True(t, decimal.RequireFromString("150").Equal(got))

	// No binary float drift: 10% of 0.30 is exactly 0.03.
	got = m.Percentage(decimal.RequireFromString("0.30"), decimal.NewFromInt(10))
	assert.True(t, decimal.RequireFromString("0.03").Equal(got))
}

func TestSumAmounts_SkipsInvalidEntries(t *testing.T) {
	m := newTestMoney()

	got := m.SumAmounts([]string{"10.50", "bogus", "4.25", "", "0.25"})
	assert.True(t, decimal.RequireFromString("15.00").Equal(got))
}

func TestSumAmounts_Empty(t *testing.T) {
	m := newTestMoney()

	assert.True(t, decimal.Zero.Equal(m.SumAmounts(nil)))
}

func TestRound_HalfUp(t *testing.T) {
	m := newTestMoney()

	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"2.675", "2.68"},
		{"150", "150"},
	}

	for _, tt := range tests {
		got := m.Round(decimal.RequireFromString(tt.in))
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "round %s: got %s", tt.in, got)
	}
}
