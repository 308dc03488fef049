package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines the billing service timeout hierarchy
//
// Timeout Hierarchy (from outermost to innermost):
//
//	HTTP Handler (30s)
//	  ↓
//	Service Layer (25s)
//	  ↓
//	Payment Provider (15s)
//	  ↓
//	Database Statement (5s, set on the pool)
//
// Each layer completes before its parent times out.
type TimeoutConfig struct {
	HTTPHandler time.Duration // Overall request timeout
	Service     time.Duration // Service operation timeout
	Webhook     time.Duration // Webhook reconciliation, including event publishing
	Provider    time.Duration // Payment provider calls
	Publish     time.Duration // One billing event publish attempt
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: 30 * time.Second,
		Service:     25 * time.Second,
		Webhook:     20 * time.Second,
		Provider:    15 * time.Second,
		Publish:     2 * time.Second,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: 5 * time.Second,
		Service:     4 * time.Second,
		Webhook:     3 * time.Second,
		Provider:    2 * time.Second,
		Publish:     500 * time.Millisecond,
	}
}

// HandlerContext creates a context with timeout for HTTP handlers
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}

// ServiceContext creates a context with timeout for service layer operations
func (tc *TimeoutConfig) ServiceContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Service)
}

// WebhookContext creates a context for reconciling one provider webhook
func (tc *TimeoutConfig) WebhookContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Webhook)
}

// ProviderContext creates a context for a payment provider call
func (tc *TimeoutConfig) ProviderContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Provider)
}

// PublishContext creates a context for a single publish attempt
func (tc *TimeoutConfig) PublishContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Publish)
}
