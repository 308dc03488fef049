package quote

import (
	"context"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// ZeroTax is the default tax policy
type ZeroTax struct{}

func (ZeroTax) Tax(context.Context, *domain.Reservation, decimal.Decimal) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

// FlatRateTax charges a fixed percentage of the taxable amount, rounded to cents
type FlatRateTax struct {
	Percent decimal.Decimal
}

// NewFlatRateTax returns ZeroTax for non-positive rates
func NewFlatRateTax(percent decimal.Decimal) ports.TaxPolicy {
	if !percent.IsPositive() {
		return ZeroTax{}
	}
	return FlatRateTax{Percent: percent}
}

func (t FlatRateTax) Tax(_ context.Context, _ *domain.Reservation, taxable decimal.Decimal) (decimal.Decimal, error) {
	if !taxable.IsPositive() {
		return decimal.Zero, nil
	}
	return domain.Round2(taxable.Mul(t.Percent).Div(decimal.NewFromInt(100))), nil
}
