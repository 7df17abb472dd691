// Package commission computes the marketplace commission split for an order.
package commission

import (
	"github.com/shopspring/decimal"

	"github.com/Fabricesimpore/zakamall/internal/domain/money"
)

// DefaultRatePercent is the platform-wide commission rate applied when a
// vendor has no rate configured.
var DefaultRatePercent = decimal.RequireFromString("5.00")

// Split is the division of an order subtotal between the vendor and the
// platform, frozen onto the order row at creation time. Commission is the
// platform's entire revenue on the order; there is no separate platform fee.
type Split struct {
	// RatePercent is the commission rate applied, as a percentage (5.00 = 5%).
	RatePercent decimal.Decimal
	// CommissionAmount is the platform's cut of the subtotal, rounded to 2dp.
	CommissionAmount decimal.Decimal
	// VendorEarnings is subtotal - CommissionAmount. The two always sum back
	// to the subtotal exactly.
	VendorEarnings decimal.Decimal
	// PlatformRevenue equals CommissionAmount.
	PlatformRevenue decimal.Decimal
}

// Calculator computes commission splits using decimal-safe money arithmetic.
type Calculator struct {
	money *money.Money
}

// NewCalculator creates a Calculator.
func NewCalculator(m *money.Money) *Calculator {
	return &Calculator{money: m}
}

// ComputeSplit splits subtotal at the vendor's rate, falling back to
// DefaultRatePercent when vendorRatePercent is nil.
//
// Commission is computed on the product subtotal only. Delivery fees and
// taxes are deliberately excluded from the base.
func (c *Calculator) ComputeSplit(subtotal decimal.Decimal, vendorRatePercent *decimal.Decimal) Split {
	rate := DefaultRatePercent
	if vendorRatePercent != nil {
		rate = *vendorRatePercent
	}

	amount := c.money.Round(c.money.Percentage(subtotal, rate))

	// Earnings are derived by subtraction from the rounded commission, so
	// VendorEarnings + CommissionAmount == subtotal with no rounding leak.
	earnings := subtotal.Sub(amount)

	return Split{
		RatePercent:      rate,
		CommissionAmount: amount,
		VendorEarnings:   earnings,
		PlatformRevenue:  amount,
	}
}
