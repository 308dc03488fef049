// Package handlers assembles the billing HTTP API.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/auth"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/handlers/deposit"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/handlers/invoice"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/handlers/quote"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/handlers/webhook"
	apimw "github.com/peiffer1998/EIPR-Portal-sub001/internal/middleware"
	edgemw "github.com/peiffer1998/EIPR-Portal-sub001/pkg/middleware"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/observability"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/resilience"
)

// RouterDeps holds everything the router mounts
type RouterDeps struct {
	Invoices       *invoice.Handler
	Deposits       *deposit.Handler
	Quotes         *quote.Handler
	Webhooks       *webhook.Handler
	Authenticator  *apimw.Authenticator
	APILimiter     *edgemw.RateLimiter
	WebhookLimiter *edgemw.RateLimiter
	Timeouts       *resilience.TimeoutConfig
	Health         *observability.HealthChecker
	Logger         *zap.Logger
	Development    bool
}

// NewRouter builds the HTTP handler:
//
//	/webhooks/payments   provider webhooks, signature checked, limited per client IP
//	/api/v1/...          bearer-authenticated billing API, limited per account
//	/metrics, /healthz   operational endpoints
func NewRouter(deps RouterDeps) http.Handler {
	if deps.Timeouts == nil {
		deps.Timeouts = resilience.DefaultTimeoutConfig()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(observability.HTTPMetrics)
	r.Use(apimw.NewSecurityHeaders(deps.Development).Middleware)
	r.Use(edgemw.Timeout(deps.Timeouts, deps.Logger))

	observability.RegisterRoutes(r, deps.Health)

	r.Group(func(r chi.Router) {
		if deps.WebhookLimiter != nil {
			r.Use(deps.WebhookLimiter.Middleware)
		}
		r.Post("/webhooks/payments", deps.Webhooks.HandlePayment)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Compress(5, "application/json"))
		r.Use(deps.Authenticator.Middleware)
		if deps.APILimiter != nil {
			r.Use(deps.APILimiter.Middleware)
		}

		r.Post("/quotes", deps.Quotes.Quote)

		r.Route("/reservations/{reservationID}", func(r chi.Router) {
			r.Post("/invoice", deps.Invoices.Generate)

			r.Get("/deposits", deps.Deposits.List)
			r.Post("/deposits", deps.Deposits.Hold)
			r.Post("/deposits/consume", deps.Deposits.Consume)
			r.With(apimw.RequireRole(auth.RoleAdmin, auth.RoleManager)).Post("/deposits/refund", deps.Deposits.Refund)
			r.With(apimw.RequireRole(auth.RoleAdmin, auth.RoleManager)).Post("/deposits/forfeit", deps.Deposits.Forfeit)
		})

		r.Route("/invoices/{invoiceID}", func(r chi.Router) {
			r.Get("/", deps.Invoices.Get)
			r.Post("/items", deps.Invoices.AddItem)
			r.Post("/promotion", deps.Invoices.ApplyPromotion)
			r.Post("/pay", deps.Invoices.Pay)
			r.Post("/payment-intents", deps.Invoices.CreatePaymentIntent)

			r.Group(func(r chi.Router) {
				r.Use(apimw.RequireRole(auth.RoleAdmin, auth.RoleManager))
				r.Post("/void", deps.Invoices.Void)
				r.Post("/mark-paid", deps.Invoices.MarkPaid)
				r.Post("/mark-unpaid", deps.Invoices.MarkUnpaid)
				r.Post("/refunds", deps.Invoices.RecordRefund)
			})
		})
	})

	return r
}
