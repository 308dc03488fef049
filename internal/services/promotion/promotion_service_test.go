package promotion_test

import (
	"context"
	"testing"
	"time"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/services/promotion"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/testutil/fixtures"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/testutil/memstore"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func setupService(promos ...*domain.Promotion) *promotion.Service {
	store := memstore.New()
	for _, p := range promos {
		store.AddPromotion(p)
	}
	return promotion.NewService(store.Promotions(), &mocks.RecordingLogger{}, func() time.Time { return today })
}

func TestResolve_PercentPromotion(t *testing.T) {
	svc := setupService(fixtures.PercentPromotion("WELCOME10", "10"))

	res, err := svc.Resolve(context.Background(), nil, fixtures.AccountID, "WELCOME10", fixtures.Money("170.00"))

	require.NoError(t, err)
	assert.Equal(t, "17.00", domain.FormatMoney(res.Discount))
	assert.Equal(t, "WELCOME10", res.Promotion.Code)
}

func TestResolve_AmountPromotionCappedAtSubtotal(t *testing.T) {
	svc := setupService(fixtures.AmountPromotion("FIFTY", "50.00"))

	res, err := svc.Resolve(context.Background(), nil, fixtures.AccountID, "FIFTY", fixtures.Money("30.00"))

	require.NoError(t, err)
	assert.Equal(t, "30.00", domain.FormatMoney(res.Discount))
}

func TestResolve_InvalidPromotions(t *testing.T) {
	inactive := fixtures.PercentPromotion("OFF", "10")
	inactive.Active = false

	expired := fixtures.PercentPromotion("OLD", "10")
	expired.EndsOn = fixtures.TimePtr(today.AddDate(0, 0, -1))

	future := fixtures.PercentPromotion("SOON", "10")
	future.StartsOn = fixtures.TimePtr(today.AddDate(0, 0, 1))

	lastDay := fixtures.PercentPromotion("LASTDAY", "10")
	lastDay.EndsOn = fixtures.TimePtr(time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC))

	svc := setupService(inactive, expired, future, lastDay)

	tests := []struct {
		name    string
		account string
		code    string
		wantErr bool
	}{
		{name: "unknown code", account: fixtures.AccountID, code: "NOPE", wantErr: true},
		{name: "empty code", account: fixtures.AccountID, code: "  ", wantErr: true},
		{name: "inactive", account: fixtures.AccountID, code: "OFF", wantErr: true},
		{name: "ended yesterday", account: fixtures.AccountID, code: "OLD", wantErr: true},
		{name: "starts tomorrow", account: fixtures.AccountID, code: "SOON", wantErr: true},
		{name: "other account", account: fixtures.OtherAccountID, code: "LASTDAY", wantErr: true},
		{name: "end date is inclusive", account: fixtures.AccountID, code: "LASTDAY", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Resolve(context.Background(), nil, tt.account, tt.code, fixtures.Money("100.00"))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, domain.IsDomainError(err, domain.ErrorCodeInvalidPromotion))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolve_DiscountNeverNegativeNorAboveSubtotal(t *testing.T) {
	promos := []*domain.Promotion{
		fixtures.PercentPromotion("P1", "1"),
		fixtures.PercentPromotion("P100", "100"),
		fixtures.PercentPromotion("P250", "250"),
		fixtures.AmountPromotion("A5", "5"),
		fixtures.AmountPromotion("A1000", "1000"),
	}
	svc := setupService(promos...)
	subtotals := []string{"0.00", "0.01", "4.99", "100.00", "12345.67"}

	for _, p := range promos {
		for _, sub := range subtotals {
			res, err := svc.Resolve(context.Background(), nil, fixtures.AccountID, p.Code, fixtures.Money(sub))
			require.NoError(t, err)
			assert.False(t, res.Discount.IsNegative(), "%s on %s", p.Code, sub)
			assert.True(t, res.Discount.LessThanOrEqual(fixtures.Money(sub)), "%s on %s", p.Code, sub)
		}
	}
}
