package invoice

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/auth"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/handlers/httputil"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/services/reconciliation"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/observability"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/resilience"
)

// LedgerService is the invoice ledger as seen by the HTTP layer
type LedgerService interface {
	GenerateInvoiceForReservation(ctx context.Context, accountID, reservationID string) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, accountID, invoiceID string) (*domain.Invoice, error)
	AddInvoiceItem(ctx context.Context, accountID, invoiceID, description string, amount decimal.Decimal) (*domain.Invoice, error)
	ApplyPromotion(ctx context.Context, accountID, invoiceID, code string) (*domain.Invoice, error)
	ProcessPayment(ctx context.Context, accountID, invoiceID string, amount decimal.Decimal) (*domain.Invoice, error)
	MarkInvoicePaid(ctx context.Context, accountID, invoiceID string) (*domain.Invoice, error)
	MarkInvoiceUnpaid(ctx context.Context, accountID, invoiceID string) (*domain.Invoice, error)
	VoidInvoice(ctx context.Context, accountID, invoiceID string) (*domain.Invoice, error)
	RecordRefund(ctx context.Context, accountID, invoiceID string, refunded decimal.Decimal) (*domain.Invoice, error)
}

// IntentService starts provider payments for invoices
type IntentService interface {
	CreatePaymentIntent(ctx context.Context, accountID, invoiceID string) (*reconciliation.IntentResult, error)
}

// Handler serves the invoice ledger API
type Handler struct {
	ledger   LedgerService
	intents  IntentService
	timeouts *resilience.TimeoutConfig
	logger   *zap.Logger
}

// NewHandler creates a new invoice handler
func NewHandler(ledger LedgerService, intents IntentService, timeouts *resilience.TimeoutConfig, logger *zap.Logger) *Handler {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &Handler{
		ledger:   ledger,
		intents:  intents,
		timeouts: timeouts,
		logger:   logger,
	}
}

// Generate handles POST /reservations/{reservationID}/invoice
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	accountID, reservationID, ok := h.scope(w, r, "reservationID")
	if !ok {
		return
	}

	inv, err := h.ledger.GenerateInvoiceForReservation(r.Context(), accountID, reservationID)
	if err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return
	}

	observability.RecordInvoiceTransition("generated", domain.ToCents(inv.TotalAmount))
	httputil.WriteJSON(w, h.logger, http.StatusCreated, toInvoiceResponse(inv))
}

// Get handles GET /invoices/{invoiceID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, invoiceID, ok := h.scope(w, r, "invoiceID")
	if !ok {
		return
	}

	inv, err := h.ledger.GetInvoice(r.Context(), accountID, invoiceID)
	h.respond(w, r, inv, err, "")
}

// AddItem handles POST /invoices/{invoiceID}/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	accountID, invoiceID, ok := h.scope(w, r, "invoiceID")
	if !ok {
		return
	}
	var req AddItemRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return
	}

	inv, err := h.ledger.AddInvoiceItem(r.Context(), accountID, invoiceID, req.Description, *req.Amount)
	h.respond(w, r, inv, err, "")
}

// ApplyPromotion handles POST /invoices/{invoiceID}/promotion
func (h *Handler) ApplyPromotion(w http.ResponseWriter, r *http.Request) {
	accountID, invoiceID, ok := h.scope(w, r, "invoiceID")
	if !ok {
		return
	}
	var req ApplyPromotionRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return
	}

	inv, err := h.ledger.ApplyPromotion(r.Context(), accountID, invoiceID, req.Code)
	h.respond(w, r, inv, err, "")
}

// Pay handles POST /invoices/{invoiceID}/pay
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	accountID, invoiceID, ok := h.scope(w, r, "invoiceID")
	if !ok {
		return
	}
	var req PaymentRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return
	}

	inv, err := h.ledger.ProcessPayment(r.Context(), accountID, invoiceID, *req.Amount)
	h.respond(w, r, inv, err, "paid")
}

// MarkPaid handles POST /invoices/{invoiceID}/mark-paid
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	accountID, invoiceID, ok := h.scope(w, r, "invoiceID")
	if !ok {
		return
	}

	inv, err := h.ledger.MarkInvoicePaid(r.Context(), accountID, invoiceID)
	h.respond(w, r, inv, err, "paid")
}

// MarkUnpaid handles POST /invoices/{invoiceID}/mark-unpaid
func (h *Handler) MarkUnpaid(w http.ResponseWriter, r *http.Request) {
	accountID, invoiceID, ok := h.scope(w, r, "invoiceID")
	if !ok {
		return
	}

	inv, err := h.ledger.MarkInvoiceUnpaid(r.Context(), accountID, invoiceID)
	h.respond(w, r, inv, err, "unpaid")
}

// Void handles POST /invoices/{invoiceID}/void
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	accountID, invoiceID, ok := h.scope(w, r, "invoiceID")
	if !ok {
		return
	}

	inv, err := h.ledger.VoidInvoice(r.Context(), accountID, invoiceID)
	h.respond(w, r, inv, err, "voided")
}

// RecordRefund handles POST /invoices/{invoiceID}/refunds
func (h *Handler) RecordRefund(w http.ResponseWriter, r *http.Request) {
	accountID, invoiceID, ok := h.scope(w, r, "invoiceID")
	if !ok {
		return
	}
	var req RefundRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return
	}

	inv, err := h.ledger.RecordRefund(r.Context(), accountID, invoiceID, *req.RefundedTotal)
	h.respond(w, r, inv, err, "refunded")
}

// CreatePaymentIntent handles POST /invoices/{invoiceID}/payment-intents
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	accountID, invoiceID, ok := h.scope(w, r, "invoiceID")
	if !ok {
		return
	}

	ctx, cancel := h.timeouts.ServiceContext(r.Context())
	defer cancel()

	res, err := h.intents.CreatePaymentIntent(ctx, accountID, invoiceID)
	if err != nil {
		observability.RecordPaymentIntent("failed")
		httputil.WriteError(w, h.logger, r, err)
		return
	}

	observability.RecordPaymentIntent("created")
	httputil.WriteJSON(w, h.logger, http.StatusCreated, toPaymentIntentResponse(res))
}

// scope returns the caller's account and the validated path id
func (h *Handler) scope(w http.ResponseWriter, r *http.Request, param string) (string, string, bool) {
	accountID, err := auth.AccountID(r.Context())
	if err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return "", "", false
	}
	id, err := httputil.PathID(r, param)
	if err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return "", "", false
	}
	return accountID, id, true
}

// respond writes the invoice and records the transition when one is named
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, inv *domain.Invoice, err error, transition string) {
	if err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return
	}
	if transition != "" {
		var cents int64
		// refund totals are cumulative, so only the transition is counted
		if transition != "refunded" {
			cents = domain.ToCents(inv.TotalAmount)
		}
		observability.RecordInvoiceTransition(transition, cents)
	}
	httputil.WriteJSON(w, h.logger, http.StatusOK, toInvoiceResponse(inv))
}
