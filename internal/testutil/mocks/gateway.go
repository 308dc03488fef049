package mocks

import (
	"context"
	"errors"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
	"github.com/stretchr/testify/mock"
)

// MockPaymentProvider mocks the payment provider
type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) CreatePaymentIntent(ctx context.Context, req *ports.PaymentIntentRequest) (*ports.PaymentIntentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentIntentResult), args.Error(1)
}

// MockEventPublisher mocks the billing event publisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event ports.BillingEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// FakeVerifier accepts bodies whose signature header equals Signature
type FakeVerifier struct {
	Signature string
}

// ErrBadSignature is returned by FakeVerifier for any other header value
var ErrBadSignature = errors.New("signature mismatch")

func (v *FakeVerifier) Header() string {
	return "X-Test-Signature"
}

func (v *FakeVerifier) Verify(payload []byte, signatureHeader string) (*ports.VerifiedEvent, error) {
	if signatureHeader != v.Signature {
		return nil, ErrBadSignature
	}
	return &ports.VerifiedEvent{Payload: payload}, nil
}

var (
	_ ports.PaymentProvider   = (*MockPaymentProvider)(nil)
	_ ports.EventPublisher    = (*MockEventPublisher)(nil)
	_ ports.SignatureVerifier = (*FakeVerifier)(nil)
)
