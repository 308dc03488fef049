package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentIntentRequest asks the provider to prepare a charge for an invoice
type PaymentIntentRequest struct {
	Metadata       map[string]string
	InvoiceID      string
	AccountID      string
	Currency       string
	IdempotencyKey string
	Amount         decimal.Decimal
}

// PaymentIntentResult is the provider's view of a newly created intent
type PaymentIntentResult struct {
	IntentID     string
	ClientSecret string
	Status       string
}

// PaymentProvider creates payment intents with the external payment provider
type PaymentProvider interface {
	CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*PaymentIntentResult, error)
}

// VerifiedEvent is a webhook whose signature has been checked
type VerifiedEvent struct {
	ID      string
	Type    string
	Payload []byte
}

// SignatureVerifier authenticates raw webhook bodies before they are parsed.
// Implementations return an error for any body that fails verification.
type SignatureVerifier interface {
	Verify(payload []byte, signatureHeader string) (*VerifiedEvent, error)

	// Header names the HTTP header carrying the signature
	Header() string
}

// BillingEvent is published after a reconciliation commit
type BillingEvent struct {
	Data       map[string]string `json:"data"`
	Type       string            `json:"type"`
	AccountID  string            `json:"account_id"`
	InvoiceID  string            `json:"invoice_id"`
	OccurredAt string            `json:"occurred_at"`
}

// EventPublisher delivers billing events to downstream consumers.
// Publishing is best effort; callers log failures and move on.
type EventPublisher interface {
	Publish(ctx context.Context, event BillingEvent) error
}

// SecretStore resolves named secrets such as signing keys and API keys
type SecretStore interface {
	GetSecret(ctx context.Context, name string) (string, error)
}
