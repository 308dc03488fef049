package quote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/auth"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) QuoteReservation(ctx context.Context, accountID, reservationID, promotionCode string) (*domain.Quote, error) {
	args := m.Called(ctx, accountID, reservationID, promotionCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Quote), args.Error(1)
}

func newRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(body))
	ctx := auth.WithAuth(req.Context(), &auth.AuthInfo{AccountID: "acct-1", Role: auth.RoleStaff})
	return req.WithContext(ctx)
}

func TestQuote_Success(t *testing.T) {
	engine := new(MockEngine)
	handler := NewHandler(engine, zap.NewNop())
	reservationID := uuid.NewString()

	engine.On("QuoteReservation", mock.Anything, "acct-1", reservationID, "SPRING10").Return(&domain.Quote{
		ReservationID: reservationID,
		PromotionCode: "SPRING10",
		Items: []domain.LineItem{
			{Description: domain.DescriptionBaseRate, Kind: domain.LineItemKindCharge, Amount: decimal.RequireFromString("100")},
			{Description: domain.DescriptionPeakDate, Kind: domain.LineItemKindCharge, RuleID: "rule-1", Amount: decimal.RequireFromString("20")},
		},
		Discounts: []domain.LineItem{
			{Description: "SPRING10", Kind: domain.LineItemKindDiscount, Amount: decimal.RequireFromString("12")},
		},
		Subtotal:      decimal.RequireFromString("120"),
		DiscountTotal: decimal.RequireFromString("12"),
		TaxTotal:      decimal.RequireFromString("8.64"),
		Total:         decimal.RequireFromString("116.64"),
	}, nil)

	rec := httptest.NewRecorder()
	handler.Quote(rec, newRequest(`{"reservation_id":"`+reservationID+`","promotion_code":"SPRING10"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "120.00", resp.Subtotal)
	assert.Equal(t, "12.00", resp.DiscountTotal)
	assert.Equal(t, "8.64", resp.TaxTotal)
	assert.Equal(t, "116.64", resp.Total)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "rule-1", resp.Items[1].RuleID)
	require.Len(t, resp.Discounts, 1)
	assert.Equal(t, "discount", resp.Discounts[0].Kind)
	engine.AssertExpectations(t)
}

func TestQuote_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"missing reservation", `{}`, nil, http.StatusBadRequest},
		{"reservation id not a uuid", `{"reservation_id":"r-1"}`, nil, http.StatusBadRequest},
		{"unknown reservation", `{"reservation_id":"` + uuid.NewString() + `"}`, domain.ErrReservationNotFound, http.StatusNotFound},
		{"invalid promotion", `{"reservation_id":"` + uuid.NewString() + `","promotion_code":"X"}`, domain.ErrInvalidPromotion, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(MockEngine)
			handler := NewHandler(engine, zap.NewNop())
			if tt.err != nil {
				engine.On("QuoteReservation", mock.Anything, "acct-1", mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			rec := httptest.NewRecorder()
			handler.Quote(rec, newRequest(tt.body))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.err == nil {
				engine.AssertNumberOfCalls(t, "QuoteReservation", 0)
			}
		})
	}
}
