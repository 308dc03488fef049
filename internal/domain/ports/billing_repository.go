package ports

import (
	"context"
	"time"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/shopspring/decimal"
)

// ReservationReader reads reservations owned by the reservation service
type ReservationReader interface {
	// GetByID returns domain.ErrReservationNotFound when no row exists.
	// Account scoping is checked by the caller.
	GetByID(ctx context.Context, db DBTX, id string) (*domain.Reservation, error)
}

// PriceRuleReader reads an account's pricing rules
type PriceRuleReader interface {
	// ListActive returns active rules in the account's iteration order (created_at, id)
	ListActive(ctx context.Context, db DBTX, accountID string) ([]domain.PriceRule, error)
}

// PromotionReader looks up promotion codes
type PromotionReader interface {
	// GetByCode returns domain.ErrPromotionNotFound when the (account, code) pair is unknown
	GetByCode(ctx context.Context, db DBTX, accountID, code string) (*domain.Promotion, error)
}

// InvoiceRepository persists invoices and their line items
type InvoiceRepository interface {
	// Create inserts the invoice row and its seeded items.
	// A second invoice for the same reservation returns domain.ErrInvoiceAlreadyExists.
	Create(ctx context.Context, tx DBTX, invoice *domain.Invoice) error

	// GetByID loads the invoice header and items
	GetByID(ctx context.Context, db DBTX, id string) (*domain.Invoice, error)

	// GetForUpdate loads the invoice and locks its row until the transaction ends
	GetForUpdate(ctx context.Context, tx DBTX, id string) (*domain.Invoice, error)

	// GetByReservation returns domain.ErrInvoiceNotFound when the reservation has no invoice
	GetByReservation(ctx context.Context, db DBTX, reservationID string) (*domain.Invoice, error)

	// InsertItem appends an item at the next free position and fills in its ID and Position
	InsertItem(ctx context.Context, tx DBTX, item *domain.InvoiceItem) error

	// ListItems re-reads persisted items in position order
	ListItems(ctx context.Context, db DBTX, invoiceID string) ([]domain.InvoiceItem, error)

	// Update writes totals, status, promotion and refund markers
	Update(ctx context.Context, tx DBTX, invoice *domain.Invoice) error
}

// DepositRepository persists deposits
type DepositRepository interface {
	// Create inserts a held deposit. A second held deposit for the reservation
	// returns domain.ErrDepositAlreadyHeld.
	Create(ctx context.Context, tx DBTX, deposit *domain.Deposit) error

	// GetHeldForUpdate locks and returns the most recent held deposit,
	// or domain.ErrNoActiveDeposit when none is held.
	GetHeldForUpdate(ctx context.Context, tx DBTX, reservationID string) (*domain.Deposit, error)

	// UpdateStatus persists a settlement
	UpdateStatus(ctx context.Context, tx DBTX, deposit *domain.Deposit) error

	// ListByReservation returns every deposit of the reservation, newest first
	ListByReservation(ctx context.Context, db DBTX, reservationID string) ([]domain.Deposit, error)
}

// PaymentTransactionRepository persists provider payment attempts
type PaymentTransactionRepository interface {
	Create(ctx context.Context, tx DBTX, txn *domain.PaymentTransaction) error

	// GetByIntentIDForUpdate returns domain.ErrTransactionNotFound when no local
	// transaction carries the provider intent id
	GetByIntentIDForUpdate(ctx context.Context, tx DBTX, intentID string) (*domain.PaymentTransaction, error)

	Update(ctx context.Context, tx DBTX, txn *domain.PaymentTransaction) error
}

// PaymentEventRepository is the append-only webhook audit log
type PaymentEventRepository interface {
	// InsertIfAbsent records the event and reports whether it was new.
	// A duplicate provider event id is not an error.
	InsertIfAbsent(ctx context.Context, tx DBTX, event *domain.PaymentEvent) (bool, error)
}

// TaxPolicy computes tax for a quote or invoice
type TaxPolicy interface {
	// Tax returns the tax owed on the taxable amount (subtotal minus discounts)
	Tax(ctx context.Context, reservation *domain.Reservation, taxable decimal.Decimal) (decimal.Decimal, error)
}

// Clock returns the current time; services take one so tests can pin dates
type Clock func() time.Time
