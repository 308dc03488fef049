package quote

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/auth"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/handlers/httputil"
)

// Engine prices reservations without persisting anything
type Engine interface {
	QuoteReservation(ctx context.Context, accountID, reservationID, promotionCode string) (*domain.Quote, error)
}

// Request is the body of POST /quotes
type Request struct {
	ReservationID string `json:"reservation_id" validate:"required,uuid"`
	PromotionCode string `json:"promotion_code" validate:"max=64"`
}

// LineItemResponse is one priced row of a quote
type LineItemResponse struct {
	Description string `json:"description"`
	Kind        string `json:"kind"`
	RuleID      string `json:"rule_id,omitempty"`
	Amount      string `json:"amount"`
}

// Response renders a quote with fixed two-decimal money strings
type Response struct {
	ReservationID string             `json:"reservation_id"`
	PromotionCode string             `json:"promotion_code,omitempty"`
	Subtotal      string             `json:"subtotal"`
	DiscountTotal string             `json:"discount_total"`
	TaxTotal      string             `json:"tax_total"`
	Total         string             `json:"total"`
	Items         []LineItemResponse `json:"items"`
	Discounts     []LineItemResponse `json:"discounts"`
}

func toLineItems(items []domain.LineItem) []LineItemResponse {
	out := make([]LineItemResponse, len(items))
	for i, item := range items {
		out[i] = LineItemResponse{
			Description: item.Description,
			Kind:        string(item.Kind),
			RuleID:      item.RuleID,
			Amount:      domain.FormatMoney(item.Amount),
		}
	}
	return out
}

func toResponse(q *domain.Quote) Response {
	return Response{
		ReservationID: q.ReservationID,
		PromotionCode: q.PromotionCode,
		Subtotal:      domain.FormatMoney(q.Subtotal),
		DiscountTotal: domain.FormatMoney(q.DiscountTotal),
		TaxTotal:      domain.FormatMoney(q.TaxTotal),
		Total:         domain.FormatMoney(q.Total),
		Items:         toLineItems(q.Items),
		Discounts:     toLineItems(q.Discounts),
	}
}

// Handler serves the quote API
type Handler struct {
	engine Engine
	logger *zap.Logger
}

// NewHandler creates a new quote handler
func NewHandler(engine Engine, logger *zap.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

// Quote handles POST /quotes
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.AccountID(r.Context())
	if err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return
	}
	var req Request
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return
	}

	q, err := h.engine.QuoteReservation(r.Context(), accountID, req.ReservationID, req.PromotionCode)
	if err != nil {
		httputil.WriteError(w, h.logger, r, err)
		return
	}

	httputil.WriteJSON(w, h.logger, http.StatusOK, toResponse(q))
}
