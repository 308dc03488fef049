package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentTransactionStatus mirrors the provider's payment intent lifecycle
type PaymentTransactionStatus string

const (
	PaymentStatusRequiresPaymentMethod PaymentTransactionStatus = "requires_payment_method"
	PaymentStatusRequiresConfirmation  PaymentTransactionStatus = "requires_confirmation"
	PaymentStatusProcessing            PaymentTransactionStatus = "processing"
	PaymentStatusSucceeded             PaymentTransactionStatus = "succeeded"
	PaymentStatusFailed                PaymentTransactionStatus = "failed"
	PaymentStatusCanceled              PaymentTransactionStatus = "canceled"
	PaymentStatusRefunded              PaymentTransactionStatus = "refunded"
	PaymentStatusPartialRefund         PaymentTransactionStatus = "partial_refund"
)

// ParsePaymentTransactionStatus converts a stored or provider value into the closed set.
// Provider-only intermediate states (requires_action, requires_capture) map to processing.
func ParsePaymentTransactionStatus(s string) (PaymentTransactionStatus, error) {
	status := PaymentTransactionStatus(s)
	switch status {
	case PaymentStatusRequiresPaymentMethod,
		PaymentStatusRequiresConfirmation,
		PaymentStatusProcessing,
		PaymentStatusSucceeded,
		PaymentStatusFailed,
		PaymentStatusCanceled,
		PaymentStatusRefunded,
		PaymentStatusPartialRefund:
		return status, nil
	case "requires_action", "requires_capture":
		return PaymentStatusProcessing, nil
	}
	return "", fmt.Errorf("unknown payment transaction status %q", s)
}

// IsFinal reports whether the provider will not move the transaction further on its own
func (s PaymentTransactionStatus) IsFinal() bool {
	switch s {
	case PaymentStatusFailed, PaymentStatusCanceled, PaymentStatusRefunded:
		return true
	case PaymentStatusRequiresPaymentMethod, PaymentStatusRequiresConfirmation,
		PaymentStatusProcessing, PaymentStatusSucceeded, PaymentStatusPartialRefund:
		return false
	}
	return false
}

// PaymentTransaction is one attempt to charge an invoice through the payment provider
type PaymentTransaction struct {
	CreatedAt               time.Time                `json:"created_at"`
	UpdatedAt               time.Time                `json:"updated_at"`
	FailureReason           *string                  `json:"failure_reason,omitempty"`
	ID                      string                   `json:"id"`
	AccountID               string                   `json:"account_id"`
	InvoiceID               string                   `json:"invoice_id"`
	ProviderPaymentIntentID string                   `json:"provider_payment_intent_id"`
	Currency                string                   `json:"currency"`
	Status                  PaymentTransactionStatus `json:"status"`
	Amount                  decimal.Decimal          `json:"amount"`
	RefundedAmount          decimal.Decimal          `json:"refunded_amount"`
}

// MarkSucceeded records a successful charge
func (t *PaymentTransaction) MarkSucceeded(at time.Time) {
	t.Status = PaymentStatusSucceeded
	t.FailureReason = nil
	t.UpdatedAt = at
}

// MarkFailed records a failed charge and the provider's reason
func (t *PaymentTransaction) MarkFailed(reason string, at time.Time) {
	t.Status = PaymentStatusFailed
	if reason != "" {
		t.FailureReason = &reason
	}
	t.UpdatedAt = at
}

// CanRefund reports whether the provider has captured money that a refund can return
func (t *PaymentTransaction) CanRefund() bool {
	switch t.Status {
	case PaymentStatusSucceeded, PaymentStatusPartialRefund, PaymentStatusRefunded:
		return true
	case PaymentStatusRequiresPaymentMethod, PaymentStatusRequiresConfirmation,
		PaymentStatusProcessing, PaymentStatusFailed, PaymentStatusCanceled:
		return false
	}
	return false
}

// ApplyRefund records the cumulative refunded amount. The transaction becomes
// refunded when the whole charge is returned and partial_refund otherwise.
func (t *PaymentTransaction) ApplyRefund(refunded decimal.Decimal, at time.Time) {
	t.RefundedAmount = MinDecimal(ClampNonNegative(refunded), t.Amount)
	if t.RefundedAmount.GreaterThanOrEqual(t.Amount) {
		t.Status = PaymentStatusRefunded
	} else {
		t.Status = PaymentStatusPartialRefund
	}
	t.UpdatedAt = at
}

// PaymentEventOutcome is what reconciliation did with an event
type PaymentEventOutcome string

const (
	PaymentEventProcessed PaymentEventOutcome = "processed"
	PaymentEventIgnored   PaymentEventOutcome = "ignored"
)

// Provider event types that change local state. Every other type is recorded
// for audit only.
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded         = "charge.refunded"
)

// IsRecognizedEventType reports whether reconciliation acts on the event type
func IsRecognizedEventType(eventType string) bool {
	switch eventType {
	case EventPaymentIntentSucceeded,
		EventPaymentIntentFailed,
		EventChargeRefunded:
		return true
	}
	return false
}

// PaymentEvent is an append-only record of a provider webhook, unique by provider event id
type PaymentEvent struct {
	ReceivedAt      time.Time           `json:"received_at"`
	ID              string              `json:"id"`
	ProviderEventID string              `json:"provider_event_id"`
	EventType       string              `json:"event_type"`
	Outcome         PaymentEventOutcome `json:"outcome"`
	Payload         json.RawMessage     `json:"payload"`
}
