package deposit

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/auth"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/handlers/httputil"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/observability"
)

// Manager is the deposit lifecycle as seen by the HTTP layer
type Manager interface {
	Hold(ctx context.Context, accountID, reservationID, ownerID string, amount decimal.Decimal) (*domain.Deposit, error)
	Consume(ctx context.Context, accountID, reservationID string, amount decimal.Decimal) (*domain.Deposit, error)
	Refund(ctx context.Context, accountID, reservationID string, amount decimal.Decimal) (*domain.Deposit, error)
	Forfeit(ctx context.Context, accountID, reservationID string, amount decimal.Decimal) (*domain.Deposit, error)
	List(ctx context.Context, accountID, reservationID string) ([]domain.Deposit, error)
}

// HoldRequest is the body of POST /reservations/{id}/deposits.
// OwnerID defaults to the reservation's owner.
type HoldRequest struct {
	Amount  *decimal.Decimal `json:"amount" validate:"required"`
	OwnerID string           `json:"owner_id" validate:"omitempty,uuid"`
}

// SettleRequest is the body of the consume, refund and forfeit actions
type SettleRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
}

// Response renders a deposit with a fixed two-decimal amount
type Response struct {
	SettledAt     *time.Time `json:"settled_at,omitempty"`
	InvoiceID     *string    `json:"invoice_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ID            string     `json:"id"`
	AccountID     string     `json:"account_id"`
	ReservationID string     `json:"reservation_id"`
	OwnerID       string     `json:"owner_id"`
	Status        string     `json:"status"`
	Amount        string     `json:"amount"`
}

// ListResponse wraps a reservation's deposits, newest first
type ListResponse struct {
	Deposits []Response `json:"deposits"`
}

func toResponse(d *domain.Deposit) Response {
	return Response{
		ID:            d.ID,
		AccountID:     d.AccountID,
		ReservationID: d.ReservationID,
		OwnerID:       d.OwnerID,
		InvoiceID:     d.InvoiceID,
		Status:        string(d.Status),
		Amount:        domain.FormatMoney(d.Amount),
		CreatedAt:     d.CreatedAt,
		SettledAt:     d.SettledAt,
	}
}

// settleFunc is one of Consume, Refund or Forfeit
type settleFunc func(ctx context.Context, accountID, reservationID string, amount decimal.Decimal) (*domain.Deposit, error)

// Handler serves the deposit API
type Handler struct {
	deposits Manager
	logger   *zap.Logger
}

// NewHandler creates a new deposit handler
func NewHandler(deposits Manager, logger *zap.Logger) *Handler {
	return &Handler{
		deposits: deposits,
		logger:   logger,
	}
}

// Hold handles POST /reservations/{reservationID}/deposits
func (h *Handler) Hold(w http.ResponseWriter, r *http.Request) {
	accountID, reservationID, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req HoldRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return
	}

	d, err := h.deposits.Hold(r.Context(), accountID, reservationID, req.OwnerID, *req.Amount)
	if err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return
	}

	observability.RecordDepositTransition(string(d.Status))
	httputil.WriteJSON(w, h.logger, http.StatusCreated, toResponse(d))
}

// Consume handles POST /reservations/{reservationID}/deposits/consume
func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.deposits.Consume)
}

// Refund handles POST /reservations/{reservationID}/deposits/refund
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.deposits.Refund)
}

// Forfeit handles POST /reservations/{reservationID}/deposits/forfeit
func (h *Handler) Forfeit(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.deposits.Forfeit)
}

// List handles GET /reservations/{reservationID}/deposits
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	accountID, reservationID, ok := h.scope(w, r)
	if !ok {
		return
	}

	deposits, err := h.deposits.List(r.Context(), accountID, reservationID)
	if err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return
	}

	resp := ListResponse{Deposits: make([]Response, len(deposits))}
	for i := range deposits {
		resp.Deposits[i] = toResponse(&deposits[i])
	}
	httputil.WriteJSON(w, h.logger, http.StatusOK, resp)
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request, fn settleFunc) {
	accountID, reservationID, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req SettleRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return
	}

	d, err := fn(r.Context(), accountID, reservationID, *req.Amount)
	if err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return
	}

	observability.RecordDepositTransition(string(d.Status))
	httputil.WriteJSON(w, h.logger, http.StatusOK, toResponse(d))
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	accountID, err := auth.AccountID(r.Context())
	if err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return "", "", false
	}
	reservationID, err := httputil.PathID(r, "reservationID")
	if err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return "", "", false
	}
	return accountID, reservationID, true
}
