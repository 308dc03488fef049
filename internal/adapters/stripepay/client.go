// Package stripepay adapts Stripe to the billing payment ports:
// payment intent creation and webhook signature verification.
package stripepay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/resilience"
)

// intentCreator is the slice of the Stripe client this adapter calls
type intentCreator interface {
	Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
}

// Client implements ports.PaymentProvider on top of the Stripe API
type Client struct {
	intents  intentCreator
	breaker  *CircuitBreaker
	timeouts *resilience.TimeoutConfig
	logger   ports.Logger
}

// NewClient creates a Stripe-backed payment provider.
// A nil breaker config uses DefaultCircuitBreakerConfig.
func NewClient(apiKey string, breaker *CircuitBreakerConfig, logger ports.Logger) *Client {
	sc := stripe.NewClient(apiKey)
	c := newClient(sc.V1PaymentIntents, logger)
	if breaker != nil {
		c.breaker = NewCircuitBreaker(*breaker, isProviderFailure)
	}
	return c
}

func newClient(intents intentCreator, logger ports.Logger) *Client {
	return &Client{
		intents:  intents,
		breaker:  NewCircuitBreaker(DefaultCircuitBreakerConfig(), isProviderFailure),
		timeouts: resilience.DefaultTimeoutConfig(),
		logger:   logger,
	}
}

// CreatePaymentIntent asks Stripe for a payment intent in minor units.
// The idempotency key makes client retries safe.
func (c *Client) CreatePaymentIntent(ctx context.Context, req *ports.PaymentIntentRequest) (*ports.PaymentIntentResult, error) {
	amount := domain.ToCents(req.Amount)
	if amount <= 0 {
		return nil, fmt.Errorf("payment intent amount must be positive, got %s", domain.FormatMoney(req.Amount))
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"invoice_id": req.InvoiceID,
			"account_id": req.AccountID,
		},
	}
	for k, v := range req.Metadata {
		params.Metadata[k] = v
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	var pi *stripe.PaymentIntent
	err := c.breaker.Call(func() error {
		callCtx, cancel := c.timeouts.ProviderContext(ctx)
		defer cancel()

		var err error
		pi, err = c.intents.Create(callCtx, params)
		return err
	})
	if err != nil {
		c.logger.Error("Stripe payment intent creation failed",
			ports.String("invoice_id", req.InvoiceID),
			ports.Int("amount_cents", int(amount)),
			ports.String("circuit_state", c.breaker.State().String()),
			ports.Err(err))
		return nil, fmt.Errorf("create stripe payment intent: %w", err)
	}

	c.logger.Info("Stripe payment intent created",
		ports.String("invoice_id", req.InvoiceID),
		ports.String("intent_id", pi.ID),
		ports.String("status", string(pi.Status)))

	return &ports.PaymentIntentResult{
		IntentID:     pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

// isProviderFailure reports errors that indicate Stripe itself is unhealthy.
// Request errors such as card declines or bad parameters are not counted.
func isProviderFailure(err error) bool {
	if err == nil {
		return false
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
			stripeErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return true
}

var _ ports.PaymentProvider = (*Client)(nil)
