package pricing

import (
	"strings"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/timeutil"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Evaluation is the priced output of a rule set for one reservation.
// Surcharges add to the subtotal; Discounts are only ever counted in discount_total.
type Evaluation struct {
	Surcharges []domain.LineItem
	Discounts  []domain.LineItem
	// Skipped lists rules ignored because their parameters were malformed
	Skipped []string
}

// SurchargeTotal sums the surcharge side
func (e Evaluation) SurchargeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range e.Surcharges {
		total = total.Add(item.Amount)
	}
	return total
}

// DiscountTotal sums the discount side
func (e Evaluation) DiscountTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range e.Discounts {
		total = total.Add(item.Amount)
	}
	return total
}

// Evaluate prices a reservation against an account's rules. It performs no I/O and
// returns identical output for identical input. Inactive rules, rules of another
// account and rules with malformed parameters contribute nothing.
func Evaluate(reservation *domain.Reservation, rules []domain.PriceRule) Evaluation {
	var (
		eval         Evaluation
		peakApplied  bool
		lodgeApplied bool
		vipRules     []domain.PriceRule
	)
	if reservation == nil {
		return eval
	}

	for _, rule := range rules {
		if !rule.Active || rule.AccountID != reservation.AccountID {
			continue
		}
		if !gjson.ValidBytes(rule.Params) {
			eval.Skipped = append(eval.Skipped, rule.ID)
			continue
		}
		params := gjson.ParseBytes(rule.Params)

		switch rule.Type {
		case domain.RuleTypePeakDate:
			amount, matched, ok := evalPeakDate(reservation, params)
			if !ok {
				eval.Skipped = append(eval.Skipped, rule.ID)
				continue
			}
			if matched && !peakApplied {
				peakApplied = true
				eval.Surcharges = append(eval.Surcharges, charge(domain.DescriptionPeakDate, rule.ID, amount))
			}
		case domain.RuleTypeLateCheckout:
			amount, matched, ok := evalLateCheckout(reservation, params)
			if !ok {
				eval.Skipped = append(eval.Skipped, rule.ID)
				continue
			}
			if matched {
				eval.Surcharges = append(eval.Surcharges, charge(domain.DescriptionLateCheckout, rule.ID, amount))
			}
		case domain.RuleTypeLodgingSurcharge:
			amount, matched, ok := evalLodgingSurcharge(reservation, params)
			if !ok {
				eval.Skipped = append(eval.Skipped, rule.ID)
				continue
			}
			if matched && !lodgeApplied {
				lodgeApplied = true
				eval.Surcharges = append(eval.Surcharges, charge(domain.DescriptionLodgingSurcharge, rule.ID, amount))
			}
		case domain.RuleTypeVIP:
			// Deferred until every surcharge is known
			vipRules = append(vipRules, rule)
		default:
			eval.Skipped = append(eval.Skipped, rule.ID)
		}
	}

	chargeable := reservation.BaseRate.Add(eval.SurchargeTotal())
	for _, rule := range vipRules {
		amount, matched, ok := evalVIP(reservation, gjson.ParseBytes(rule.Params), chargeable)
		if !ok {
			eval.Skipped = append(eval.Skipped, rule.ID)
			continue
		}
		if matched {
			eval.Discounts = append(eval.Discounts, domain.LineItem{
				Description: domain.DescriptionVIPDiscount,
				Kind:        domain.LineItemKindDiscount,
				RuleID:      rule.ID,
				Amount:      amount,
			})
			break
		}
	}

	return eval
}

func charge(description, ruleID string, amount decimal.Decimal) domain.LineItem {
	return domain.LineItem{
		Description: description,
		Kind:        domain.LineItemKindCharge,
		RuleID:      ruleID,
		Amount:      amount,
	}
}

// evalPeakDate matches the reservation's start date against the listed dates.
// The start timestamp's own calendar date is used, without timezone conversion.
func evalPeakDate(r *domain.Reservation, params gjson.Result) (decimal.Decimal, bool, bool) {
	amount, ok := positiveAmount(params.Get("amount"))
	if !ok {
		return decimal.Zero, false, false
	}
	dates := params.Get("dates")
	if !dates.IsArray() || len(dates.Array()) == 0 {
		return decimal.Zero, false, false
	}

	matched := false
	for _, d := range dates.Array() {
		if d.Type != gjson.String {
			return decimal.Zero, false, false
		}
		day, err := timeutil.ParseISODate(d.String())
		if err != nil {
			return decimal.Zero, false, false
		}
		if timeutil.SameDate(day, r.StartAt) {
			matched = true
		}
	}
	return amount, matched, true
}

// evalLateCheckout fires when the end time's hour is at or past the threshold
func evalLateCheckout(r *domain.Reservation, params gjson.Result) (decimal.Decimal, bool, bool) {
	amount, ok := positiveAmount(params.Get("amount"))
	if !ok {
		return decimal.Zero, false, false
	}
	hour, ok := hourOfDay(params.Get("hour"))
	if !ok {
		return decimal.Zero, false, false
	}
	return amount, r.EndAt.Hour() >= hour, true
}

func evalLodgingSurcharge(r *domain.Reservation, params gjson.Result) (decimal.Decimal, bool, bool) {
	amount, ok := positiveAmount(params.Get("amount"))
	if !ok {
		return decimal.Zero, false, false
	}
	types := params.Get("reservation_types")
	if !types.IsArray() || len(types.Array()) == 0 {
		return decimal.Zero, false, false
	}
	for _, t := range types.Array() {
		if t.Type == gjson.String && strings.EqualFold(t.String(), r.Type) {
			return amount, true, true
		}
	}
	return amount, false, true
}

// evalVIP computes a discount against the chargeable amount (base rate plus surcharges).
// Exactly one of percent or amount must be set. owner_ids, when present, restricts
// the rule to those owners.
func evalVIP(r *domain.Reservation, params gjson.Result, chargeable decimal.Decimal) (decimal.Decimal, bool, bool) {
	percentParam := params.Get("percent")
	amountParam := params.Get("amount")
	if percentParam.Exists() == amountParam.Exists() {
		return decimal.Zero, false, false
	}

	var discount decimal.Decimal
	if percentParam.Exists() {
		percent, ok := positiveAmount(percentParam)
		if !ok || percent.GreaterThan(decimal.NewFromInt(100)) {
			return decimal.Zero, false, false
		}
		discount = chargeable.Mul(percent).Div(decimal.NewFromInt(100))
	} else {
		amount, ok := positiveAmount(amountParam)
		if !ok {
			return decimal.Zero, false, false
		}
		discount = amount
	}

	if owners := params.Get("owner_ids"); owners.Exists() {
		if !owners.IsArray() {
			return decimal.Zero, false, false
		}
		found := false
		for _, id := range owners.Array() {
			if id.String() == r.OwnerID {
				found = true
				break
			}
		}
		if !found {
			return decimal.Zero, false, true
		}
	}

	discount = domain.MinDecimal(discount, domain.ClampNonNegative(chargeable))
	if !discount.IsPositive() {
		return decimal.Zero, false, true
	}
	return discount, true, true
}

// positiveAmount accepts a JSON string or number and rejects anything not strictly positive
func positiveAmount(v gjson.Result) (decimal.Decimal, bool) {
	var raw string
	switch v.Type {
	case gjson.String:
		raw = strings.TrimSpace(v.String())
	case gjson.Number:
		raw = v.Raw
	default:
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, false
	}
	return amount, true
}

func hourOfDay(v gjson.Result) (int, bool) {
	if v.Type != gjson.Number {
		return 0, false
	}
	hour := v.Int()
	if float64(hour) != v.Float() || hour < 0 || hour > 23 {
		return 0, false
	}
	return int(hour), true
}
