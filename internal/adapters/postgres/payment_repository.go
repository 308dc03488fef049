package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
)

const constraintTransactionIntent = "uq_payment_transaction_intent"

// PaymentTransactionRepository implements ports.PaymentTransactionRepository using PostgreSQL
type PaymentTransactionRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentTransactionRepository creates a new PostgreSQL payment transaction repository
func NewPaymentTransactionRepository(db ports.DBPort) *PaymentTransactionRepository {
	return &PaymentTransactionRepository{pool: db.GetDB()}
}

const insertTransaction = `
	INSERT INTO payment_transactions (
		id, account_id, invoice_id, provider_payment_intent_id, currency, status,
		amount, refunded_amount, failure_reason, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// Create inserts a payment transaction. Intent ids are unique.
func (r *PaymentTransactionRepository) Create(ctx context.Context, tx ports.DBTX, txn *domain.PaymentTransaction) error {
	_, err := conn(tx, r.pool).Exec(ctx, insertTransaction,
		txn.ID, txn.AccountID, txn.InvoiceID, txn.ProviderPaymentIntentID, txn.Currency, string(txn.Status),
		numeric(txn.Amount), numeric(txn.RefundedAmount), nullTextPtr(txn.FailureReason),
		txn.CreatedAt, txn.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, constraintTransactionIntent) {
			return domain.ErrAlreadyExists.WithDetail("provider_payment_intent_id", txn.ProviderPaymentIntentID)
		}
		return fmt.Errorf("insert payment transaction: %w", err)
	}
	return nil
}

const selectTransactionForUpdate = `
	SELECT id, account_id, invoice_id, provider_payment_intent_id, currency, status,
	       amount, refunded_amount, failure_reason, created_at, updated_at
	FROM payment_transactions
	WHERE provider_payment_intent_id = $1
	FOR UPDATE`

// GetByIntentIDForUpdate locks the transaction carrying the provider intent id
func (r *PaymentTransactionRepository) GetByIntentIDForUpdate(ctx context.Context, tx ports.DBTX, intentID string) (*domain.PaymentTransaction, error) {
	var (
		txn              domain.PaymentTransaction
		status           string
		amount, refunded pgtype.Numeric
		reason           pgtype.Text
	)
	err := conn(tx, r.pool).QueryRow(ctx, selectTransactionForUpdate, intentID).Scan(
		&txn.ID, &txn.AccountID, &txn.InvoiceID, &txn.ProviderPaymentIntentID, &txn.Currency, &status,
		&amount, &refunded, &reason, &txn.CreatedAt, &txn.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(fmt.Errorf("get payment transaction: %w", err), domain.ErrTransactionNotFound)
	}

	if txn.Status, err = domain.ParsePaymentTransactionStatus(status); err != nil {
		return nil, fmt.Errorf("payment transaction %s: %w", txn.ID, err)
	}
	if txn.Amount, err = pgNumericToDecimal(amount); err != nil {
		return nil, fmt.Errorf("payment transaction %s amount: %w", txn.ID, err)
	}
	if txn.RefundedAmount, err = pgNumericToDecimal(refunded); err != nil {
		return nil, fmt.Errorf("payment transaction %s refunded amount: %w", txn.ID, err)
	}
	txn.FailureReason = textPtr(reason)
	return &txn, nil
}

const updateTransaction = `
	UPDATE payment_transactions SET
		status = $2,
		refunded_amount = $3,
		failure_reason = $4,
		updated_at = $5
	WHERE id = $1`

// Update persists status, refund and failure changes
func (r *PaymentTransactionRepository) Update(ctx context.Context, tx ports.DBTX, txn *domain.PaymentTransaction) error {
	tag, err := conn(tx, r.pool).Exec(ctx, updateTransaction,
		txn.ID, string(txn.Status), numeric(txn.RefundedAmount), nullTextPtr(txn.FailureReason), txn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update payment transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// PaymentEventRepository implements ports.PaymentEventRepository using PostgreSQL
type PaymentEventRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentEventRepository creates a new PostgreSQL payment event repository
func NewPaymentEventRepository(db ports.DBPort) *PaymentEventRepository {
	return &PaymentEventRepository{pool: db.GetDB()}
}

const insertEvent = `
	INSERT INTO payment_events (id, provider_event_id, event_type, outcome, payload, received_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (provider_event_id) DO NOTHING`

// InsertIfAbsent records the event and reports whether it was new
func (r *PaymentEventRepository) InsertIfAbsent(ctx context.Context, tx ports.DBTX, e *domain.PaymentEvent) (bool, error) {
	tag, err := conn(tx, r.pool).Exec(ctx, insertEvent,
		e.ID, e.ProviderEventID, e.EventType, string(e.Outcome), []byte(e.Payload), e.ReceivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert payment event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

var (
	_ ports.PaymentTransactionRepository = (*PaymentTransactionRepository)(nil)
	_ ports.PaymentEventRepository       = (*PaymentEventRepository)(nil)
)
