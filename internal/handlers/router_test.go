package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/adapters/logging"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/auth"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/handlers/deposit"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/handlers/invoice"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/handlers/quote"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/handlers/webhook"
	apimw "github.com/peiffer1998/EIPR-Portal-sub001/internal/middleware"
	depositsvc "github.com/peiffer1998/EIPR-Portal-sub001/internal/services/deposit"
	invoicesvc "github.com/peiffer1998/EIPR-Portal-sub001/internal/services/invoice"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/services/promotion"
	quotesvc "github.com/peiffer1998/EIPR-Portal-sub001/internal/services/quote"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/services/reconciliation"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/testutil/fixtures"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/testutil/memstore"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/testutil/mocks"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/observability"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/resilience"
)

const webhookSignature = "sig-ok"

type testServer struct {
	handler     http.Handler
	store       *memstore.Store
	tokens      *auth.TokenManager
	provider    *mocks.MockPaymentProvider
	reservation *domain.Reservation
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memstore.New()
	logger := logging.NewZapLogger(zap.NewNop())
	reservation := fixtures.NewReservation().Build()
	store.AddReservation(reservation)
	store.AddPriceRule(fixtures.PriceRule(domain.RuleTypePeakDate, `{"dates":["2026-12-24"],"amount":20}`))
	store.AddPromotion(fixtures.PercentPromotion("SPRING10", "10"))

	promotions := promotion.NewService(store.Promotions(), logger, time.Now)
	quotes := quotesvc.NewService(store.DB(), store.Reservations(), store.PriceRules(), promotions, quotesvc.ZeroTax{}, logger)
	ledger := invoicesvc.NewService(store.DB(), store.Reservations(), store.Invoices(), promotions, logger, time.Now)
	deposits := depositsvc.NewService(store.DB(), store.Reservations(), store.DepositRepo(), store.Invoices(), logger, time.Now)
	provider := new(mocks.MockPaymentProvider)
	intents := reconciliation.NewIntentService(store.DB(), ledger, store.PaymentTransactions(), provider, "usd", logger, time.Now)
	reconciler := reconciliation.NewService(store.DB(), store.PaymentEvents(), store.PaymentTransactions(), ledger, nil, logger, time.Now)

	tokens, err := auth.NewTokenManager([]byte(strings.Repeat("k", 32)), "billing-test", time.Hour)
	require.NoError(t, err)

	timeouts := resilience.TestTimeoutConfig()
	handler := NewRouter(RouterDeps{
		Invoices:      invoice.NewHandler(ledger, intents, timeouts, zap.NewNop()),
		Deposits:      deposit.NewHandler(deposits, zap.NewNop()),
		Quotes:        quote.NewHandler(quotes, zap.NewNop()),
		Webhooks:      webhook.NewHandler(&mocks.FakeVerifier{Signature: webhookSignature}, reconciler, timeouts, zap.NewNop()),
		Authenticator: apimw.NewAuthenticator(tokens, zap.NewNop()),
		Timeouts:      timeouts,
		Health:        observability.NewHealthChecker(time.Second),
		Development:   true,
	})

	return &testServer{
		handler:     handler,
		store:       store,
		tokens:      tokens,
		provider:    provider,
		reservation: reservation,
	}
}

func (s *testServer) token(t *testing.T, accountID string, role auth.Role) string {
	t.Helper()
	tok, err := s.tokens.GenerateToken("user-1", accountID, role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestRouter_RequiresBearerToken(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/quotes", "", `{"reservation_id":"`+srv.reservation.ID+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/quotes", "not-a-jwt", `{"reservation_id":"`+srv.reservation.ID+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_Quote(t *testing.T) {
	srv := newTestServer(t)
	staff := srv.token(t, fixtures.AccountID, auth.RoleStaff)

	rec := srv.do(t, http.MethodPost, "/api/v1/quotes", staff,
		`{"reservation_id":"`+srv.reservation.ID+`","promotion_code":"SPRING10"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp quote.Response
	decode(t, rec, &resp)
	assert.Equal(t, "120.00", resp.Subtotal)
	assert.Equal(t, "12.00", resp.DiscountTotal)
	assert.Equal(t, "108.00", resp.Total)
}

func TestRouter_InvoiceLifecycle(t *testing.T) {
	srv := newTestServer(t)
	staff := srv.token(t, fixtures.AccountID, auth.RoleStaff)
	manager := srv.token(t, fixtures.AccountID, auth.RoleManager)

	rec := srv.do(t, http.MethodPost, "/api/v1/reservations/"+srv.reservation.ID+"/invoice", staff, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv invoice.InvoiceResponse
	decode(t, rec, &inv)
	assert.Equal(t, "100.00", inv.TotalAmount)

	rec = srv.do(t, http.MethodPost, "/api/v1/reservations/"+srv.reservation.ID+"/invoice", staff, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	base := "/api/v1/invoices/" + inv.ID
	rec = srv.do(t, http.MethodPost, base+"/items", staff, `{"amount":"20","description":"Grooming"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodPost, base+"/promotion", staff, `{"code":"SPRING10"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &inv)
	assert.Equal(t, "120.00", inv.Subtotal)
	assert.Equal(t, "108.00", inv.TotalAmount)

	rec = srv.do(t, http.MethodPost, base+"/pay", staff, `{"amount":"100"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, base+"/pay", staff, `{"amount":"108.00"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &inv)
	assert.Equal(t, "paid", inv.Status)

	rec = srv.do(t, http.MethodPost, base+"/void", staff, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodPost, base+"/void", manager, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &inv)
	assert.Equal(t, "void", inv.Status)

	rec = srv.do(t, http.MethodGet, base, staff, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_CrossTenantInvoiceIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	owner := srv.token(t, fixtures.AccountID, auth.RoleStaff)
	other := srv.token(t, fixtures.OtherAccountID, auth.RoleAdmin)

	rec := srv.do(t, http.MethodPost, "/api/v1/reservations/"+srv.reservation.ID+"/invoice", owner, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var inv invoice.InvoiceResponse
	decode(t, rec, &inv)

	rec = srv.do(t, http.MethodGet, "/api/v1/invoices/"+inv.ID, other, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)

	rec = srv.do(t, http.MethodPost, "/api/v1/quotes", other, `{"reservation_id":"`+srv.reservation.ID+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_PaymentIntentSettledByWebhook(t *testing.T) {
	srv := newTestServer(t)
	staff := srv.token(t, fixtures.AccountID, auth.RoleStaff)

	rec := srv.do(t, http.MethodPost, "/api/v1/reservations/"+srv.reservation.ID+"/invoice", staff, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var inv invoice.InvoiceResponse
	decode(t, rec, &inv)

	srv.provider.On("CreatePaymentIntent", mock.Anything, mock.MatchedBy(func(req *ports.PaymentIntentRequest) bool {
		return req.InvoiceID == inv.ID && req.Amount.Equal(fixtures.Money("100"))
	})).Return(&ports.PaymentIntentResult{
		IntentID:     "pi_router_1",
		ClientSecret: "pi_router_1_secret",
		Status:       "requires_payment_method",
	}, nil)

	rec = srv.do(t, http.MethodPost, "/api/v1/invoices/"+inv.ID+"/payment-intents", staff, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	event := `{"id":"evt_router_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_router_1"}}}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(event))
	req.Header.Set("X-Test-Signature", "forged")
	bad := httptest.NewRecorder()
	srv.handler.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, 0, srv.store.EventCount())

	for i, want := range []string{"processed", "ignored"} {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(event))
		req.Header.Set("X-Test-Signature", webhookSignature)
		rec := httptest.NewRecorder()
		srv.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "delivery %d", i)
		assert.JSONEq(t, `{"status":"`+want+`"}`, rec.Body.String())
	}
	assert.Equal(t, 1, srv.store.EventCount())

	rec = srv.do(t, http.MethodGet, "/api/v1/invoices/"+inv.ID, staff, "")
	decode(t, rec, &inv)
	assert.Equal(t, "paid", inv.Status)
	srv.provider.AssertExpectations(t)
}

func TestRouter_DepositRoles(t *testing.T) {
	srv := newTestServer(t)
	staff := srv.token(t, fixtures.AccountID, auth.RoleStaff)
	admin := srv.token(t, fixtures.AccountID, auth.RoleAdmin)
	base := "/api/v1/reservations/" + srv.reservation.ID + "/deposits"

	rec := srv.do(t, http.MethodPost, base, staff, `{"amount":"50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodPost, base+"/forfeit", staff, `{"amount":"50"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodPost, base+"/refund", admin, `{"amount":"60"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(domain.ErrorCodeAmountExceedsDeposit))

	rec = srv.do(t, http.MethodPost, base+"/refund", admin, `{"amount":"50"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodPost, base+"/consume", staff, `{"amount":"50"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(domain.ErrorCodeNoActiveDeposit))

	rec = srv.do(t, http.MethodGet, base, staff, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list deposit.ListResponse
	decode(t, rec, &list)
	require.Len(t, list.Deposits, 1)
	assert.Equal(t, "refunded", list.Deposits[0].Status)
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "billing_http_requests_total")
}
