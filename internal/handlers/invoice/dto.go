package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/services/reconciliation"
)

// AddItemRequest is the body of POST /invoices/{id}/items
type AddItemRequest struct {
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	Description string           `json:"description" validate:"required,max=255"`
}

// ApplyPromotionRequest is the body of POST /invoices/{id}/promotion
type ApplyPromotionRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// PaymentRequest is the body of POST /invoices/{id}/pay
type PaymentRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
}

// RefundRequest is the body of POST /invoices/{id}/refunds.
// RefundedTotal is cumulative, not an increment.
type RefundRequest struct {
	RefundedTotal *decimal.Decimal `json:"refunded_total" validate:"required"`
}

// ItemResponse is one invoice line
type ItemResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Position    int    `json:"position"`
}

// InvoiceResponse renders an invoice with fixed two-decimal money strings
type InvoiceResponse struct {
	PaidAt         *time.Time     `json:"paid_at,omitempty"`
	RefundedAt     *time.Time     `json:"refunded_at,omitempty"`
	VoidedAt       *time.Time     `json:"voided_at,omitempty"`
	PromotionCode  *string        `json:"promotion_code,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ID             string         `json:"id"`
	AccountID      string         `json:"account_id"`
	ReservationID  string         `json:"reservation_id"`
	Status         string         `json:"status"`
	Subtotal       string         `json:"subtotal"`
	DiscountTotal  string         `json:"discount_total"`
	TaxTotal       string         `json:"tax_total"`
	TotalAmount    string         `json:"total_amount"`
	RefundedAmount string         `json:"refunded_amount"`
	Items          []ItemResponse `json:"items"`
}

// PaymentIntentResponse carries the secret the client confirms the payment with
type PaymentIntentResponse struct {
	TransactionID string `json:"transaction_id"`
	IntentID      string `json:"payment_intent_id"`
	ClientSecret  string `json:"client_secret"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

func toInvoiceResponse(inv *domain.Invoice) InvoiceResponse {
	items := make([]ItemResponse, len(inv.Items))
	for i, item := range inv.Items {
		items[i] = ItemResponse{
			ID:          item.ID,
			Description: item.Description,
			Amount:      domain.FormatMoney(item.Amount),
			Position:    item.Position,
		}
	}
	return InvoiceResponse{
		ID:             inv.ID,
		AccountID:      inv.AccountID,
		ReservationID:  inv.ReservationID,
		Status:         string(inv.Status),
		PromotionCode:  inv.PromotionCode,
		Subtotal:       domain.FormatMoney(inv.Subtotal),
		DiscountTotal:  domain.FormatMoney(inv.DiscountTotal),
		TaxTotal:       domain.FormatMoney(inv.TaxTotal),
		TotalAmount:    domain.FormatMoney(inv.TotalAmount),
		RefundedAmount: domain.FormatMoney(inv.RefundedAmount),
		Items:          items,
		PaidAt:         inv.PaidAt,
		RefundedAt:     inv.RefundedAt,
		VoidedAt:       inv.VoidedAt,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

func toPaymentIntentResponse(res *reconciliation.IntentResult) PaymentIntentResponse {
	txn := res.Transaction
	return PaymentIntentResponse{
		TransactionID: txn.ID,
		IntentID:      txn.ProviderPaymentIntentID,
		ClientSecret:  res.ClientSecret,
		Status:        string(txn.Status),
		Amount:        domain.FormatMoney(txn.Amount),
		Currency:      txn.Currency,
	}
}
