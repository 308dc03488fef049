package pricing_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/services/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountID = "acct-1"

func testReservation() *domain.Reservation {
	return &domain.Reservation{
		ID:        "res-1",
		AccountID: accountID,
		OwnerID:   "owner-1",
		Type:      "boarding",
		Status:    domain.ReservationStatusConfirmed,
		StartAt:   time.Date(2026, 12, 24, 9, 0, 0, 0, time.UTC),
		EndAt:     time.Date(2026, 12, 27, 13, 30, 0, 0, time.UTC),
		BaseRate:  decimal.RequireFromString("100.00"),
	}
}

func rule(id string, ruleType domain.RuleType, params string) domain.PriceRule {
	return domain.PriceRule{
		ID:        id,
		AccountID: accountID,
		Name:      id,
		Type:      ruleType,
		Params:    json.RawMessage(params),
		Active:    true,
	}
}

func descriptions(items []domain.LineItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Description)
	}
	return out
}

func TestEvaluate_PeakDateMatchesStartDate(t *testing.T) {
	eval := pricing.Evaluate(testReservation(), []domain.PriceRule{
		rule("peak", domain.RuleTypePeakDate, `{"dates":["2026-12-24","2026-12-31"],"amount":"20.00"}`),
	})

	require.Len(t, eval.Surcharges, 1)
	assert.Equal(t, domain.DescriptionPeakDate, eval.Surcharges[0].Description)
	assert.Equal(t, "20.00", domain.FormatMoney(eval.Surcharges[0].Amount))
	assert.Equal(t, domain.LineItemKindCharge, eval.Surcharges[0].Kind)
	assert.Empty(t, eval.Discounts)
	assert.Empty(t, eval.Skipped)
}

func TestEvaluate_PeakDateFirstMatchWins(t *testing.T) {
	eval := pricing.Evaluate(testReservation(), []domain.PriceRule{
		rule("peak-1", domain.RuleTypePeakDate, `{"dates":["2026-12-24"],"amount":"20.00"}`),
		rule("peak-2", domain.RuleTypePeakDate, `{"dates":["2026-12-24"],"amount":"35.00"}`),
	})

	require.Len(t, eval.Surcharges, 1)
	assert.Equal(t, "peak-1", eval.Surcharges[0].RuleID)
	assert.Equal(t, "20.00", domain.FormatMoney(eval.Surcharges[0].Amount))
}

func TestEvaluate_LateCheckout(t *testing.T) {
	tests := []struct {
		name    string
		params  string
		matched bool
	}{
		{name: "end hour past threshold", params: `{"hour":11,"amount":"15.00"}`, matched: true},
		{name: "end hour equal to threshold", params: `{"hour":13,"amount":15}`, matched: true},
		{name: "end hour before threshold", params: `{"hour":14,"amount":"15.00"}`, matched: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := pricing.Evaluate(testReservation(), []domain.PriceRule{
				rule("late", domain.RuleTypeLateCheckout, tt.params),
			})
			if tt.matched {
				require.Len(t, eval.Surcharges, 1)
				assert.Equal(t, domain.DescriptionLateCheckout, eval.Surcharges[0].Description)
				assert.Equal(t, "15.00", domain.FormatMoney(eval.Surcharges[0].Amount))
			} else {
				assert.Empty(t, eval.Surcharges)
			}
		})
	}
}

func TestEvaluate_LodgingSurchargeAtMostOnce(t *testing.T) {
	eval := pricing.Evaluate(testReservation(), []domain.PriceRule{
		rule("lodge-1", domain.RuleTypeLodgingSurcharge, `{"reservation_types":["daycare","boarding"],"amount":"10.00"}`),
		rule("lodge-2", domain.RuleTypeLodgingSurcharge, `{"reservation_types":["boarding"],"amount":"12.00"}`),
		rule("lodge-3", domain.RuleTypeLodgingSurcharge, `{"reservation_types":["grooming"],"amount":"99.00"}`),
	})

	require.Len(t, eval.Surcharges, 1)
	assert.Equal(t, "lodge-1", eval.Surcharges[0].RuleID)
	assert.Equal(t, domain.DescriptionLodgingSurcharge, eval.Surcharges[0].Description)
}

func TestEvaluate_MalformedRulesAreSkipped(t *testing.T) {
	tests := []struct {
		name     string
		ruleType domain.RuleType
		params   string
	}{
		{name: "invalid json", ruleType: domain.RuleTypePeakDate, params: `{"dates":`},
		{name: "missing amount", ruleType: domain.RuleTypePeakDate, params: `{"dates":["2026-12-24"]}`},
		{name: "negative amount", ruleType: domain.RuleTypePeakDate, params: `{"dates":["2026-12-24"],"amount":"-5"}`},
		{name: "unparsable date", ruleType: domain.RuleTypePeakDate, params: `{"dates":["24/12/2026"],"amount":"5"}`},
		{name: "hour out of range", ruleType: domain.RuleTypeLateCheckout, params: `{"hour":25,"amount":"5"}`},
		{name: "fractional hour", ruleType: domain.RuleTypeLateCheckout, params: `{"hour":11.5,"amount":"5"}`},
		{name: "types not a list", ruleType: domain.RuleTypeLodgingSurcharge, params: `{"reservation_types":"boarding","amount":"5"}`},
		{name: "vip with percent and amount", ruleType: domain.RuleTypeVIP, params: `{"percent":"10","amount":"5"}`},
		{name: "vip percent above 100", ruleType: domain.RuleTypeVIP, params: `{"percent":"150"}`},
		{name: "unknown rule type", ruleType: domain.RuleType("happy_hour"), params: `{"amount":"5"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := pricing.Evaluate(testReservation(), []domain.PriceRule{rule("bad", tt.ruleType, tt.params)})
			assert.Empty(t, eval.Surcharges)
			assert.Empty(t, eval.Discounts)
			assert.Equal(t, []string{"bad"}, eval.Skipped)
		})
	}
}

func TestEvaluate_InactiveAndForeignRulesIgnored(t *testing.T) {
	inactive := rule("inactive", domain.RuleTypePeakDate, `{"dates":["2026-12-24"],"amount":"20.00"}`)
	inactive.Active = false
	foreign := rule("foreign", domain.RuleTypePeakDate, `{"dates":["2026-12-24"],"amount":"20.00"}`)
	foreign.AccountID = "acct-2"

	eval := pricing.Evaluate(testReservation(), []domain.PriceRule{inactive, foreign})

	assert.Empty(t, eval.Surcharges)
	assert.Empty(t, eval.Skipped)
}

func TestEvaluate_VIPIsDiscountSideOnly(t *testing.T) {
	eval := pricing.Evaluate(testReservation(), []domain.PriceRule{
		rule("vip", domain.RuleTypeVIP, `{"percent":"10"}`),
		rule("peak", domain.RuleTypePeakDate, `{"dates":["2026-12-24"],"amount":"20.00"}`),
	})

	require.Len(t, eval.Surcharges, 1)
	require.Len(t, eval.Discounts, 1)
	assert.Equal(t, domain.DescriptionVIPDiscount, eval.Discounts[0].Description)
	assert.Equal(t, domain.LineItemKindDiscount, eval.Discounts[0].Kind)
	// 10% of base 100 + surcharge 20
	assert.True(t, eval.Discounts[0].Amount.Equal(decimal.RequireFromString("12")))
	assert.True(t, eval.SurchargeTotal().Equal(decimal.RequireFromString("20")))
}

func TestEvaluate_VIPOwnerRestrictionAndCap(t *testing.T) {
	t.Run("other owners get nothing", func(t *testing.T) {
		eval := pricing.Evaluate(testReservation(), []domain.PriceRule{
			rule("vip", domain.RuleTypeVIP, `{"amount":"5.00","owner_ids":["owner-9"]}`),
		})
		assert.Empty(t, eval.Discounts)
		assert.Empty(t, eval.Skipped)
	})

	t.Run("listed owner gets the discount", func(t *testing.T) {
		eval := pricing.Evaluate(testReservation(), []domain.PriceRule{
			rule("vip", domain.RuleTypeVIP, `{"amount":"5.00","owner_ids":["owner-1"]}`),
		})
		require.Len(t, eval.Discounts, 1)
		assert.Equal(t, "5.00", domain.FormatMoney(eval.Discounts[0].Amount))
	})

	t.Run("discount never exceeds chargeable amount", func(t *testing.T) {
		eval := pricing.Evaluate(testReservation(), []domain.PriceRule{
			rule("vip", domain.RuleTypeVIP, `{"amount":"500.00"}`),
		})
		require.Len(t, eval.Discounts, 1)
		assert.Equal(t, "100.00", domain.FormatMoney(eval.Discounts[0].Amount))
	})

	t.Run("at most one vip discount", func(t *testing.T) {
		eval := pricing.Evaluate(testReservation(), []domain.PriceRule{
			rule("vip-1", domain.RuleTypeVIP, `{"amount":"5.00"}`),
			rule("vip-2", domain.RuleTypeVIP, `{"amount":"7.00"}`),
		})
		require.Len(t, eval.Discounts, 1)
		assert.Equal(t, "vip-1", eval.Discounts[0].RuleID)
	})
}

func TestEvaluate_IsDeterministic(t *testing.T) {
	rules := []domain.PriceRule{
		rule("peak", domain.RuleTypePeakDate, `{"dates":["2026-12-24"],"amount":"20.00"}`),
		rule("late", domain.RuleTypeLateCheckout, `{"hour":11,"amount":"15.00"}`),
		rule("lodge", domain.RuleTypeLodgingSurcharge, `{"reservation_types":["boarding"],"amount":"10.00"}`),
		rule("vip", domain.RuleTypeVIP, `{"percent":"5"}`),
		rule("bad", domain.RuleTypePeakDate, `not json`),
	}

	first, err := json.Marshal(pricing.Evaluate(testReservation(), rules))
	require.NoError(t, err)
	second, err := json.Marshal(pricing.Evaluate(testReservation(), rules))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t,
		[]string{domain.DescriptionPeakDate, domain.DescriptionLateCheckout, domain.DescriptionLodgingSurcharge},
		descriptions(pricing.Evaluate(testReservation(), rules).Surcharges))
}

func TestEvaluate_NilReservation(t *testing.T) {
	eval := pricing.Evaluate(nil, []domain.PriceRule{
		rule("peak", domain.RuleTypePeakDate, `{"dates":["2026-12-24"],"amount":"20.00"}`),
	})
	assert.Empty(t, eval.Surcharges)
}
