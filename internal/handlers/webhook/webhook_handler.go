package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/handlers/httputil"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/services/reconciliation"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/observability"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/resilience"
)

// maxPayloadBytes caps webhook bodies; provider events are far smaller
const maxPayloadBytes = 512 * 1024

// Reconciler applies verified webhook bodies
type Reconciler interface {
	HandleEvent(ctx context.Context, payload []byte) (*reconciliation.Result, error)
}

// Response is the body returned to the payment provider
type Response struct {
	Status string `json:"status"`
}

// Handler receives payment provider webhooks
type Handler struct {
	verifier   ports.SignatureVerifier
	reconciler Reconciler
	timeouts   *resilience.TimeoutConfig
	logger     *zap.Logger
}

// NewHandler creates a new webhook handler
func NewHandler(verifier ports.SignatureVerifier, reconciler Reconciler, timeouts *resilience.TimeoutConfig, logger *zap.Logger) *Handler {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &Handler{
		verifier:   verifier,
		reconciler: reconciler,
		timeouts:   timeouts,
		logger:     logger,
	}
}

// HandlePayment handles POST /webhooks/payments.
// Bodies that fail verification are rejected with 400 and nothing is recorded.
// Persistence failures answer 500 so the provider redelivers.
func (h *Handler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		h.logger.Warn("Failed to read webhook body", zap.Error(err))
		observability.RecordWebhookEvent("", "rejected", time.Since(start).Seconds())
		httputil.WriteError(w, h.logger, r, domain.ErrValidationFailed.WithDetail("body", "unreadable request body"))
		return
	}

	verified, err := h.verifier.Verify(payload, r.Header.Get(h.verifier.Header()))
	if err != nil {
		h.logger.Warn("Webhook signature verification failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err))
		observability.RecordWebhookEvent("", "rejected", time.Since(start).Seconds())
		httputil.WriteJSON(w, h.logger, http.StatusBadRequest, httputil.ErrorResponse{
			Code:    string(domain.ErrorCodeAuthInvalid),
			Message: "invalid webhook signature",
		})
		return
	}

	ctx, cancel := h.timeouts.WebhookContext(r.Context())
	defer cancel()

	result, err := h.reconciler.HandleEvent(ctx, verified.Payload)
	if err != nil {
		outcome := "failed"
		if domain.IsValidationError(err) {
			outcome = "rejected"
		} else if errors.Is(err, context.DeadlineExceeded) {
			h.logger.Error("Webhook reconciliation timed out", zap.String("event_id", verified.ID))
		}
		observability.RecordWebhookEvent(verified.Type, outcome, time.Since(start).Seconds())
		httputil.WriteError(w, h.logger, r, err)
		return
	}

	observability.RecordWebhookEvent(result.EventType, string(result.Outcome), time.Since(start).Seconds())
	httputil.WriteJSON(w, h.logger, http.StatusOK, Response{Status: string(result.Outcome)})
}
