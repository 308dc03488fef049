package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook reconciliation
	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_webhook_events_total",
		Help: "Payment provider webhooks by event type and reconciliation outcome",
	}, []string{
		"event_type",
		"outcome", // processed, ignored, rejected, failed
	})

	webhookProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_webhook_processing_duration_seconds",
		Help:    "Time to verify and reconcile one webhook",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{
		"outcome",
	})

	// Invoice ledger
	invoiceTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_invoice_transitions_total",
		Help: "Invoice lifecycle transitions",
	}, []string{
		"transition", // generated, paid, unpaid, voided, refunded
	})

	invoiceAmountCents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_invoice_amount_cents_total",
		Help: "Invoice totals in cents by transition (for revenue tracking)",
	}, []string{
		"transition",
	})

	// Deposits
	depositTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_deposit_transitions_total",
		Help: "Deposit lifecycle transitions",
	}, []string{
		"status", // held, consumed, refunded, forfeited
	})

	// Payment intents
	paymentIntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_payment_intents_total",
		Help: "Payment intents requested from the provider",
	}, []string{
		"result", // created, failed
	})

	// Billing event publishing
	billingEventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_events_published_total",
		Help: "Billing events published to the message broker",
	}, []string{
		"event_type",
		"result", // published, failed
	})

	// Promotion cache
	promotionCacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_promotion_cache_lookups_total",
		Help: "Promotion cache lookups by result",
	}, []string{
		"result", // hit, miss, error
	})
)

// RecordWebhookEvent records one webhook delivery and how long it took
func RecordWebhookEvent(eventType, outcome string, durationSeconds float64) {
	if eventType == "" {
		eventType = "unknown"
	}
	webhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
	webhookProcessingDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

// RecordInvoiceTransition records an invoice lifecycle change and the amount it moved
func RecordInvoiceTransition(transition string, amountCents int64) {
	invoiceTransitionsTotal.WithLabelValues(transition).Inc()
	if amountCents > 0 {
		invoiceAmountCents.WithLabelValues(transition).Add(float64(amountCents))
	}
}

// RecordDepositTransition records a deposit reaching the given status
func RecordDepositTransition(status string) {
	depositTransitionsTotal.WithLabelValues(status).Inc()
}

// RecordPaymentIntent records a payment intent attempt
func RecordPaymentIntent(result string) {
	paymentIntentsTotal.WithLabelValues(result).Inc()
}

// RecordBillingEventPublished records a publish attempt result for a billing event
func RecordBillingEventPublished(eventType, result string) {
	billingEventsPublishedTotal.WithLabelValues(eventType, result).Inc()
}

// RecordPromotionCacheLookup records a promotion cache hit, miss or error
func RecordPromotionCacheLookup(result string) {
	promotionCacheLookupsTotal.WithLabelValues(result).Inc()
}
