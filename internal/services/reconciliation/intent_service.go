package reconciliation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// InvoiceReader loads account-scoped invoices
type InvoiceReader interface {
	GetInvoice(ctx context.Context, accountID, invoiceID string) (*domain.Invoice, error)
}

// IntentResult is a persisted payment attempt and the secret the client confirms it with
type IntentResult struct {
	Transaction  *domain.PaymentTransaction
	ClientSecret string
}

// IntentService starts provider payments for invoices
type IntentService struct {
	db           ports.DBPort
	invoices     InvoiceReader
	transactions ports.PaymentTransactionRepository
	provider     ports.PaymentProvider
	currency     string
	logger       ports.Logger
	now          ports.Clock
}

// NewIntentService creates a payment intent service
func NewIntentService(
	db ports.DBPort,
	invoices InvoiceReader,
	transactions ports.PaymentTransactionRepository,
	provider ports.PaymentProvider,
	currency string,
	logger ports.Logger,
	now ports.Clock,
) *IntentService {
	if now == nil {
		now = time.Now
	}
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	return &IntentService{
		db:           db,
		invoices:     invoices,
		transactions: transactions,
		provider:     provider,
		currency:     strings.ToLower(currency),
		logger:       logger,
		now:          now,
	}
}

// CreatePaymentIntent asks the provider to charge the invoice total and records the attempt.
// The provider call happens before the database transaction so no row lock is held across it.
func (s *IntentService) CreatePaymentIntent(ctx context.Context, accountID, invoiceID string) (*IntentResult, error) {
	inv, err := s.invoices.GetInvoice(ctx, accountID, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := inv.EnsureMutable(); err != nil {
		return nil, err
	}
	if !inv.TotalAmount.IsPositive() {
		return nil, domain.ErrNothingToCharge
	}

	intent, err := s.provider.CreatePaymentIntent(ctx, &ports.PaymentIntentRequest{
		InvoiceID:      inv.ID,
		AccountID:      accountID,
		Amount:         inv.TotalAmount,
		Currency:       s.currency,
		IdempotencyKey: uuid.NewString(),
		Metadata: map[string]string{
			"invoice_id":     inv.ID,
			"account_id":     accountID,
			"reservation_id": inv.ReservationID,
		},
	})
	if err != nil {
		s.logger.Error("payment intent creation failed",
			ports.String("invoice_id", inv.ID),
			ports.Err(err))
		return nil, domain.WrapError(domain.ErrorCodeProviderError, "payment provider error", err)
	}

	status, err := domain.ParsePaymentTransactionStatus(intent.Status)
	if err != nil {
		status = domain.PaymentStatusRequiresPaymentMethod
	}
	now := s.now().UTC()
	txn := &domain.PaymentTransaction{
		ID:                      uuid.NewString(),
		AccountID:               accountID,
		InvoiceID:               inv.ID,
		ProviderPaymentIntentID: intent.IntentID,
		Amount:                  inv.TotalAmount,
		RefundedAmount:          decimal.Zero,
		Currency:                s.currency,
		Status:                  status,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.transactions.Create(ctx, tx, txn)
	})
	if err != nil {
		return nil, fmt.Errorf("record payment transaction: %w", err)
	}

	s.logger.Info("payment intent created",
		ports.String("invoice_id", inv.ID),
		ports.String("intent_id", intent.IntentID),
		ports.String("amount", domain.FormatMoney(txn.Amount)))

	return &IntentResult{Transaction: txn, ClientSecret: intent.ClientSecret}, nil
}
