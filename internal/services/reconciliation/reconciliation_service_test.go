package reconciliation_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/services/invoice"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/services/promotion"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/services/reconciliation"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/testutil/fixtures"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/testutil/memstore"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const intentID = "pi_test_123"

type harness struct {
	svc       *reconciliation.Service
	ledger    *invoice.Service
	store     *memstore.Store
	publisher *mocks.MockEventPublisher
	logger    *mocks.RecordingLogger
	invoice   *domain.Invoice
}

func setup(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	logger := &mocks.RecordingLogger{}
	clock := func() time.Time { return time.Date(2026, 12, 28, 10, 0, 0, 0, time.UTC) }
	publisher := &mocks.MockEventPublisher{}

	ledger := invoice.NewService(store.DB(), store.Reservations(), store.Invoices(),
		promotion.NewService(store.Promotions(), logger, clock), logger, clock)
	svc := reconciliation.NewService(store.DB(), store.PaymentEvents(), store.PaymentTransactions(),
		ledger, publisher, logger, clock)

	res := fixtures.NewReservation().WithBaseRate("150.00").Build()
	store.AddReservation(res)
	inv, err := ledger.GenerateInvoiceForReservation(ctx, fixtures.AccountID, res.ID)
	require.NoError(t, err)

	require.NoError(t, store.PaymentTransactions().Create(ctx, nil, &domain.PaymentTransaction{
		ID:                      "txn-1",
		AccountID:               fixtures.AccountID,
		InvoiceID:               inv.ID,
		ProviderPaymentIntentID: intentID,
		Amount:                  fixtures.Money("150.00"),
		Currency:                "usd",
		Status:                  domain.PaymentStatusRequiresConfirmation,
	}))

	return &harness{svc: svc, ledger: ledger, store: store, publisher: publisher, logger: logger, invoice: inv}
}

func intentEvent(eventID, eventType, intent string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"type":%q,"data":{"object":{"id":%q,"object":"payment_intent"}}}`,
		eventID, eventType, intent))
}

func isEvent(eventType string) interface{} {
	return mock.MatchedBy(func(e ports.BillingEvent) bool { return e.Type == eventType })
}

func TestHandleEvent_SucceededMarksInvoicePaid(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.publisher.On("Publish", mock.Anything, isEvent(reconciliation.EventInvoicePaid)).Return(nil).Once()

	result, err := h.svc.HandleEvent(ctx, intentEvent("evt_1", domain.EventPaymentIntentSucceeded, intentID))

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentEventProcessed, result.Outcome)
	assert.False(t, result.Duplicate)

	txn, ok := h.store.Transaction(intentID)
	require.True(t, ok)
	assert.Equal(t, domain.PaymentStatusSucceeded, txn.Status)

	inv, err := h.ledger.GetInvoice(ctx, fixtures.AccountID, h.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, inv.Status)
	assert.NotNil(t, inv.PaidAt)
	h.publisher.AssertExpectations(t)
}

func TestHandleEvent_DuplicateDeliveryIsNoOp(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.publisher.On("Publish", mock.Anything, isEvent(reconciliation.EventInvoicePaid)).Return(nil).Once()
	body := intentEvent("evt_dup", domain.EventPaymentIntentSucceeded, intentID)

	first, err := h.svc.HandleEvent(ctx, body)
	require.NoError(t, err)
	inv, err := h.ledger.GetInvoice(ctx, fixtures.AccountID, h.invoice.ID)
	require.NoError(t, err)
	paidAt := *inv.PaidAt

	second, err := h.svc.HandleEvent(ctx, body)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentEventProcessed, first.Outcome)
	assert.Equal(t, domain.PaymentEventIgnored, second.Outcome)
	assert.True(t, second.Duplicate)
	assert.Equal(t, 1, h.store.EventCount())

	inv, err = h.ledger.GetInvoice(ctx, fixtures.AccountID, h.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, paidAt, *inv.PaidAt)
	h.publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestHandleEvent_UnknownIntentIsRecordedWithoutSideEffects(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	result, err := h.svc.HandleEvent(ctx, intentEvent("evt_orphan", domain.EventPaymentIntentSucceeded, "pi_unknown"))

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentEventProcessed, result.Outcome)
	event, ok := h.store.Event("evt_orphan")
	require.True(t, ok)
	assert.Equal(t, domain.EventPaymentIntentSucceeded, event.EventType)

	inv, err := h.ledger.GetInvoice(ctx, fixtures.AccountID, h.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPending, inv.Status)
	h.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestHandleEvent_PaymentFailedRecordsReason(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.publisher.On("Publish", mock.Anything, isEvent(reconciliation.EventPaymentFailed)).Return(nil).Once()
	body := []byte(`{"id":"evt_fail","type":"payment_intent.payment_failed","data":{"object":{"id":"` + intentID +
		`","last_payment_error":{"code":"card_declined","message":"Your card was declined."}}}}`)

	result, err := h.svc.HandleEvent(ctx, body)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentEventProcessed, result.Outcome)
	txn, _ := h.store.Transaction(intentID)
	assert.Equal(t, domain.PaymentStatusFailed, txn.Status)
	require.NotNil(t, txn.FailureReason)
	assert.Equal(t, "Your card was declined.", *txn.FailureReason)

	inv, err := h.ledger.GetInvoice(ctx, fixtures.AccountID, h.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPending, inv.Status)
}

func TestHandleEvent_ChargeRefunded(t *testing.T) {
	tests := []struct {
		name           string
		amountRefunded int64
		wantStatus     domain.PaymentTransactionStatus
		wantRefunded   string
	}{
		{name: "partial refund", amountRefunded: 5000, wantStatus: domain.PaymentStatusPartialRefund, wantRefunded: "50.00"},
		{name: "full refund", amountRefunded: 15000, wantStatus: domain.PaymentStatusRefunded, wantRefunded: "150.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setup(t)
			ctx := context.Background()
			h.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
			_, err := h.svc.HandleEvent(ctx, intentEvent("evt_ok", domain.EventPaymentIntentSucceeded, intentID))
			require.NoError(t, err)

			body := []byte(fmt.Sprintf(`{"id":"evt_refund","type":"charge.refunded","data":{"object":{"id":"ch_1","payment_intent":%q,"amount":15000,"amount_refunded":%d}}}`,
				intentID, tt.amountRefunded))
			result, err := h.svc.HandleEvent(ctx, body)

			require.NoError(t, err)
			assert.Equal(t, domain.PaymentEventProcessed, result.Outcome)
			txn, _ := h.store.Transaction(intentID)
			assert.Equal(t, tt.wantStatus, txn.Status)
			assert.Equal(t, tt.wantRefunded, domain.FormatMoney(txn.RefundedAmount))

			inv, err := h.ledger.GetInvoice(ctx, fixtures.AccountID, h.invoice.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.InvoiceStatusPaid, inv.Status, "refunds never reopen the invoice")
			assert.Equal(t, tt.wantRefunded, domain.FormatMoney(inv.RefundedAmount))
		})
	}
}

func TestHandleEvent_VoidInvoiceNotRemarkedPaid(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
	_, err := h.ledger.VoidInvoice(ctx, fixtures.AccountID, h.invoice.ID)
	require.NoError(t, err)

	result, err := h.svc.HandleEvent(ctx, intentEvent("evt_late", domain.EventPaymentIntentSucceeded, intentID))

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentEventProcessed, result.Outcome)
	txn, _ := h.store.Transaction(intentID)
	assert.Equal(t, domain.PaymentStatusSucceeded, txn.Status)
	inv, err := h.ledger.GetInvoice(ctx, fixtures.AccountID, h.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusVoid, inv.Status)
	assert.Equal(t, 1, h.logger.Count("warn"))
}

func TestHandleEvent_LateIntentEventsDoNotRewindTransaction(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.publisher.On("Publish", mock.Anything, isEvent(reconciliation.EventInvoicePaid)).Return(nil).Once()
	_, err := h.svc.HandleEvent(ctx, intentEvent("evt_paid", domain.EventPaymentIntentSucceeded, intentID))
	require.NoError(t, err)

	late := []struct {
		eventID   string
		eventType string
	}{
		{eventID: "evt_proc", eventType: "payment_intent.processing"},
		{eventID: "evt_cancel", eventType: "payment_intent.canceled"},
	}
	for _, ev := range late {
		result, err := h.svc.HandleEvent(ctx, intentEvent(ev.eventID, ev.eventType, intentID))

		require.NoError(t, err)
		assert.Equal(t, domain.PaymentEventIgnored, result.Outcome, ev.eventType)
		event, ok := h.store.Event(ev.eventID)
		require.True(t, ok, "event is kept for audit")
		assert.Equal(t, domain.PaymentEventIgnored, event.Outcome)

		txn, _ := h.store.Transaction(intentID)
		assert.Equal(t, domain.PaymentStatusSucceeded, txn.Status, ev.eventType)
		assert.Nil(t, txn.FailureReason)
	}

	inv, err := h.ledger.GetInvoice(ctx, fixtures.AccountID, h.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, inv.Status)
	h.publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestHandleEvent_ChargeRefundedWithoutUsableAmount(t *testing.T) {
	tests := []struct {
		name   string
		object string
	}{
		{name: "missing amount_refunded", object: `{"id":"ch_1","payment_intent":%q,"amount":15000}`},
		{name: "zero amount_refunded", object: `{"id":"ch_1","payment_intent":%q,"amount":15000,"amount_refunded":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setup(t)
			ctx := context.Background()
			h.publisher.On("Publish", mock.Anything, isEvent(reconciliation.EventInvoicePaid)).Return(nil).Once()
			_, err := h.svc.HandleEvent(ctx, intentEvent("evt_ok", domain.EventPaymentIntentSucceeded, intentID))
			require.NoError(t, err)

			body := []byte(`{"id":"evt_refund","type":"charge.refunded","data":{"object":` +
				fmt.Sprintf(tt.object, intentID) + `}}`)
			_, err = h.svc.HandleEvent(ctx, body)

			require.NoError(t, err)
			txn, _ := h.store.Transaction(intentID)
			assert.Equal(t, domain.PaymentStatusSucceeded, txn.Status)
			assert.True(t, txn.RefundedAmount.IsZero())

			inv, err := h.ledger.GetInvoice(ctx, fixtures.AccountID, h.invoice.ID)
			require.NoError(t, err)
			assert.Nil(t, inv.RefundedAt)
			assert.True(t, inv.RefundedAmount.IsZero())
			assert.Equal(t, 1, h.logger.Count("warn"))
			h.publisher.AssertNumberOfCalls(t, "Publish", 1)
		})
	}
}

func TestHandleEvent_ChargeRefundedBeforeSuccessIsRefused(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	body := []byte(fmt.Sprintf(`{"id":"evt_refund","type":"charge.refunded","data":{"object":{"id":"ch_1","payment_intent":%q,"amount_refunded":5000}}}`,
		intentID))

	_, err := h.svc.HandleEvent(ctx, body)

	require.NoError(t, err)
	txn, _ := h.store.Transaction(intentID)
	assert.Equal(t, domain.PaymentStatusRequiresConfirmation, txn.Status)
	assert.True(t, txn.RefundedAmount.IsZero())

	inv, err := h.ledger.GetInvoice(ctx, fixtures.AccountID, h.invoice.ID)
	require.NoError(t, err)
	assert.Nil(t, inv.RefundedAt)
	assert.Equal(t, 1, h.logger.Count("warn"))
	h.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestHandleEvent_UnrecognizedTypeIgnored(t *testing.T) {
	h := setup(t)

	result, err := h.svc.HandleEvent(context.Background(), intentEvent("evt_other", "customer.created", intentID))

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentEventIgnored, result.Outcome)
	event, ok := h.store.Event("evt_other")
	require.True(t, ok)
	assert.Equal(t, domain.PaymentEventIgnored, event.Outcome)
	txn, _ := h.store.Transaction(intentID)
	assert.Equal(t, domain.PaymentStatusRequiresConfirmation, txn.Status)
}

func TestHandleEvent_MalformedBodies(t *testing.T) {
	h := setup(t)
	bodies := map[string]string{
		"not json":     `{"id":`,
		"missing id":   `{"type":"payment_intent.succeeded","data":{"object":{}}}`,
		"missing type": `{"id":"evt_x","data":{"object":{}}}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.HandleEvent(context.Background(), []byte(body))
			assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationFailed))
		})
	}
	assert.Equal(t, 0, h.store.EventCount())
}

func TestHandleEvent_PublishFailureIsLoggedOnly(t *testing.T) {
	h := setup(t)
	h.publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	result, err := h.svc.HandleEvent(context.Background(), intentEvent("evt_pub", domain.EventPaymentIntentSucceeded, intentID))

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentEventProcessed, result.Outcome)
	assert.Equal(t, 1, h.logger.Count("error"))
}
