package domain

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places money is presented with
const MoneyScale = 2

// DefaultCurrency is used when a caller does not name one
const DefaultCurrency = "usd"

var hundred = decimal.NewFromInt(100)

// Round2 rounds an amount to two decimal places, half away from zero.
// Money is never negative at the boundaries this is used on, so this is round-half-up.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// FormatMoney renders an amount as a fixed two-decimal string ("150.00")
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

// ClampNonNegative returns zero for negative amounts
func ClampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// MinDecimal returns the smaller of two amounts
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// SumDecimals adds amounts without intermediate rounding
func SumDecimals(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// ToCents converts an amount to integer minor units for payment providers
func ToCents(d decimal.Decimal) int64 {
	return Round2(d).Mul(hundred).IntPart()
}

// FromCents converts provider minor units back to an amount
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -MoneyScale)
}

// ComputeTotal applies the invoice/quote total formula:
// round2(subtotal - discount + tax), never below zero.
func ComputeTotal(subtotal, discount, tax decimal.Decimal) decimal.Decimal {
	return ClampNonNegative(Round2(subtotal.Sub(discount).Add(tax)))
}
