package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Billing event types published after reconciliation commits
const (
	EventInvoicePaid     = "invoice.paid"
	EventPaymentFailed   = "payment.failed"
	EventPaymentRefunded = "payment.refunded"
)

// InvoiceLedger is the part of the invoice ledger reconciliation drives
type InvoiceLedger interface {
	SettleInTx(ctx context.Context, tx ports.DBTX, accountID, invoiceID string) (*domain.Invoice, error)
	RecordRefundInTx(ctx context.Context, tx ports.DBTX, accountID, invoiceID string, refunded decimal.Decimal) (*domain.Invoice, error)
}

// Service applies payment provider webhooks to local state, idempotently by provider event id
type Service struct {
	db           ports.DBPort
	events       ports.PaymentEventRepository
	transactions ports.PaymentTransactionRepository
	ledger       InvoiceLedger
	publisher    ports.EventPublisher
	logger       ports.Logger
	now          ports.Clock
}

// NewService creates a new reconciliation service. A nil publisher disables billing events.
func NewService(
	db ports.DBPort,
	events ports.PaymentEventRepository,
	transactions ports.PaymentTransactionRepository,
	ledger InvoiceLedger,
	publisher ports.EventPublisher,
	logger ports.Logger,
	now ports.Clock,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:           db,
		events:       events,
		transactions: transactions,
		ledger:       ledger,
		publisher:    publisher,
		logger:       logger,
		now:          now,
	}
}

// Result describes what reconciliation did with one webhook delivery
type Result struct {
	Outcome   domain.PaymentEventOutcome
	EventType string
	Duplicate bool
}

// HandleEvent records and applies one webhook body. The body must already be
// signature-verified. Duplicate deliveries and unrecognized event types are
// recorded or skipped without error; only malformed bodies and persistence
// failures are returned as errors.
func (s *Service) HandleEvent(ctx context.Context, payload []byte) (*Result, error) {
	if !gjson.ValidBytes(payload) {
		return nil, domain.ErrValidationFailed.WithDetail("reason", "body is not valid JSON")
	}
	body := gjson.ParseBytes(payload)
	eventID := body.Get("id").String()
	eventType := body.Get("type").String()
	if eventID == "" || eventType == "" {
		return nil, domain.ErrValidationFailed.WithDetail("reason", "event id and type are required")
	}

	outcome := domain.PaymentEventIgnored
	if domain.IsRecognizedEventType(eventType) {
		outcome = domain.PaymentEventProcessed
	}
	result := &Result{Outcome: outcome, EventType: eventType}

	var published []ports.BillingEvent
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		inserted, err := s.events.InsertIfAbsent(ctx, tx, &domain.PaymentEvent{
			ID:              uuid.NewString(),
			ProviderEventID: eventID,
			EventType:       eventType,
			Outcome:         outcome,
			Payload:         payload,
			ReceivedAt:      s.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("record payment event: %w", err)
		}
		if !inserted {
			result.Duplicate = true
			result.Outcome = domain.PaymentEventIgnored
			return nil
		}
		if outcome == domain.PaymentEventIgnored {
			return nil
		}

		published, err = s.apply(ctx, tx, eventType, body.Get("data.object"))
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		s.logger.Info("duplicate payment event ignored",
			ports.String("event_id", eventID),
			ports.String("event_type", eventType))
	}
	s.publish(ctx, published)
	return result, nil
}

func (s *Service) apply(ctx context.Context, tx ports.DBTX, eventType string, object gjson.Result) ([]ports.BillingEvent, error) {
	intentID := object.Get("id").String()
	if eventType == domain.EventChargeRefunded {
		intentID = object.Get("payment_intent").String()
	}
	if intentID == "" {
		s.logger.Warn("payment event without payment intent id", ports.String("event_type", eventType))
		return nil, nil
	}

	txn, err := s.transactions.GetByIntentIDForUpdate(ctx, tx, intentID)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		// May arrive before the local transaction commits, or belong to another environment
		s.logger.Info("no local transaction for payment intent",
			ports.String("intent_id", intentID),
			ports.String("event_type", eventType))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment transaction: %w", err)
	}

	now := s.now().UTC()
	var events []ports.BillingEvent

	switch eventType {
	case domain.EventPaymentIntentSucceeded:
		txn.MarkSucceeded(now)
		if err := s.settleInvoice(ctx, tx, txn); err != nil {
			return nil, err
		}
		events = append(events, s.billingEvent(EventInvoicePaid, txn, nil))

	case domain.EventPaymentIntentFailed:
		reason := object.Get("last_payment_error.message").String()
		if reason == "" {
			reason = object.Get("last_payment_error.code").String()
		}
		if reason == "" {
			reason = "payment failed"
		}
		txn.MarkFailed(reason, now)
		events = append(events, s.billingEvent(EventPaymentFailed, txn, map[string]string{"reason": reason}))

	case domain.EventChargeRefunded:
		amount := object.Get("amount_refunded")
		if !amount.Exists() || amount.Int() <= 0 {
			s.logger.Warn("refund event without a refunded amount",
				ports.String("intent_id", intentID),
				ports.String("transaction_id", txn.ID))
			return nil, nil
		}
		if !txn.CanRefund() {
			s.logger.Warn("refund event for a transaction that never succeeded",
				ports.String("intent_id", intentID),
				ports.String("transaction_status", string(txn.Status)))
			return nil, nil
		}
		txn.ApplyRefund(domain.FromCents(amount.Int()), now)
		if err := s.refundInvoice(ctx, tx, txn); err != nil {
			return nil, err
		}
		events = append(events, s.billingEvent(EventPaymentRefunded, txn, map[string]string{
			"refunded_amount": domain.FormatMoney(txn.RefundedAmount),
			"status":          string(txn.Status),
		}))
	}

	if err := s.transactions.Update(ctx, tx, txn); err != nil {
		return nil, fmt.Errorf("update payment transaction: %w", err)
	}

	s.logger.Info("payment event applied",
		ports.String("event_type", eventType),
		ports.String("intent_id", intentID),
		ports.String("transaction_status", string(txn.Status)))
	return events, nil
}

// settleInvoice marks the invoice paid. A void invoice is never re-marked; the
// transaction still records the provider's result.
func (s *Service) settleInvoice(ctx context.Context, tx ports.DBTX, txn *domain.PaymentTransaction) error {
	_, err := s.ledger.SettleInTx(ctx, tx, txn.AccountID, txn.InvoiceID)
	switch {
	case err == nil:
		return nil
	case domain.IsDomainError(err, domain.ErrorCodeInvoiceInvalidState):
		s.logger.Warn("payment succeeded for void invoice",
			ports.String("invoice_id", txn.InvoiceID),
			ports.String("intent_id", txn.ProviderPaymentIntentID))
		return nil
	case domain.IsNotFoundError(err):
		s.logger.Error("payment transaction references an unknown invoice",
			ports.String("invoice_id", txn.InvoiceID),
			ports.String("transaction_id", txn.ID))
		return nil
	default:
		return fmt.Errorf("settle invoice: %w", err)
	}
}

func (s *Service) refundInvoice(ctx context.Context, tx ports.DBTX, txn *domain.PaymentTransaction) error {
	_, err := s.ledger.RecordRefundInTx(ctx, tx, txn.AccountID, txn.InvoiceID, txn.RefundedAmount)
	if err != nil {
		if domain.IsNotFoundError(err) {
			s.logger.Error("refund references an unknown invoice",
				ports.String("invoice_id", txn.InvoiceID),
				ports.String("transaction_id", txn.ID))
			return nil
		}
		return fmt.Errorf("record invoice refund: %w", err)
	}
	return nil
}

func (s *Service) billingEvent(eventType string, txn *domain.PaymentTransaction, data map[string]string) ports.BillingEvent {
	if data == nil {
		data = make(map[string]string)
	}
	data["transaction_id"] = txn.ID
	data["intent_id"] = txn.ProviderPaymentIntentID
	data["amount"] = domain.FormatMoney(txn.Amount)
	data["currency"] = txn.Currency
	return ports.BillingEvent{
		Type:       eventType,
		AccountID:  txn.AccountID,
		InvoiceID:  txn.InvoiceID,
		OccurredAt: s.now().UTC().Format(time.RFC3339),
		Data:       data,
	}
}

// publish delivers events after commit. Failures are logged only.
func (s *Service) publish(ctx context.Context, events []ports.BillingEvent) {
	if s.publisher == nil {
		return
	}
	for _, event := range events {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish billing event",
				ports.String("type", event.Type),
				ports.String("invoice_id", event.InvoiceID),
				ports.Err(err))
		}
	}
}
