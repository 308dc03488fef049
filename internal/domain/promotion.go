package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/timeutil"
)

// PromotionKind is how a promotion's value is interpreted
type PromotionKind string

const (
	PromotionKindPercent PromotionKind = "percent"
	PromotionKindAmount  PromotionKind = "amount"
)

// Promotion is an account-scoped discount code, unique per (account_id, code)
type Promotion struct {
	StartsOn  *time.Time      `json:"starts_on,omitempty"`
	EndsOn    *time.Time      `json:"ends_on,omitempty"`
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Code      string          `json:"code"`
	Kind      PromotionKind   `json:"kind"`
	Value     decimal.Decimal `json:"value"`
	Active    bool            `json:"active"`
}

// IsRedeemableOn reports whether the promotion may be applied on the given day.
// Bounds are inclusive dates; nil bounds are unbounded.
func (p *Promotion) IsRedeemableOn(day time.Time) bool {
	if p == nil || !p.Active {
		return false
	}
	d := timeutil.CalendarDate(day)
	if p.StartsOn != nil && d.Before(timeutil.CalendarDate(*p.StartsOn)) {
		return false
	}
	if p.EndsOn != nil && d.After(timeutil.CalendarDate(*p.EndsOn)) {
		return false
	}
	return true
}

// DiscountFor computes the discount this promotion grants on a subtotal.
// The result is never negative and never exceeds the subtotal.
func (p *Promotion) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	if p == nil || !subtotal.IsPositive() || !p.Value.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch p.Kind {
	case PromotionKindPercent:
		discount = subtotal.Mul(p.Value).Div(hundred)
	case PromotionKindAmount:
		discount = p.Value
	default:
		return decimal.Zero
	}
	return MinDecimal(discount, subtotal)
}
