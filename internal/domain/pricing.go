package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RuleType identifies how a price rule's parameter bag is interpreted
type RuleType string

const (
	RuleTypePeakDate         RuleType = "peak_date"
	RuleTypeLateCheckout     RuleType = "late_checkout"
	RuleTypeLodgingSurcharge RuleType = "lodging_surcharge"
	RuleTypeVIP              RuleType = "vip"
)

// Line item descriptions produced by the rule evaluator and quote engine
const (
	DescriptionBaseRate         = "Reservation base rate"
	DescriptionPeakDate         = "Peak date surcharge"
	DescriptionLateCheckout     = "Late checkout fee"
	DescriptionLodgingSurcharge = "Lodging surcharge"
	DescriptionVIPDiscount      = "VIP discount"
)

// PriceRule is an account-scoped pricing rule with an opaque parameter bag
type PriceRule struct {
	CreatedAt time.Time       `json:"created_at"`
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Name      string          `json:"name"`
	Type      RuleType        `json:"rule_type"`
	Params    json.RawMessage `json:"params"`
	Active    bool            `json:"active"`
}

// LineItemKind separates surcharges from discounts so discounts never reduce the subtotal
type LineItemKind string

const (
	LineItemKindCharge   LineItemKind = "charge"
	LineItemKindDiscount LineItemKind = "discount"
)

// LineItem is one priced row of a quote. Amount is always non-negative;
// Kind decides which side of the total it lands on.
type LineItem struct {
	Description string          `json:"description"`
	Kind        LineItemKind    `json:"kind"`
	RuleID      string          `json:"rule_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

// Quote is an unpersisted pricing breakdown for a reservation
type Quote struct {
	ReservationID string          `json:"reservation_id"`
	PromotionCode string          `json:"promotion_code,omitempty"`
	Items         []LineItem      `json:"items"`
	Discounts     []LineItem      `json:"discounts"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	Total         decimal.Decimal `json:"total"`
}
