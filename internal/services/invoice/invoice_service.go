package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/services/quote"
	"github.com/shopspring/decimal"
)

const maxDescriptionLength = 255

// Service is the invoice ledger. Every mutation runs in one database transaction
// with the invoice row locked, and totals are recomputed from persisted items.
type Service struct {
	db           ports.DBPort
	reservations ports.ReservationReader
	invoices     ports.InvoiceRepository
	promotions   quote.PromotionResolver
	logger       ports.Logger
	now          ports.Clock
}

// NewService creates a new invoice ledger
func NewService(
	db ports.DBPort,
	reservations ports.ReservationReader,
	invoices ports.InvoiceRepository,
	promotions quote.PromotionResolver,
	logger ports.Logger,
	now ports.Clock,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:           db,
		reservations: reservations,
		invoices:     invoices,
		promotions:   promotions,
		logger:       logger,
		now:          now,
	}
}

// GenerateInvoiceForReservation creates the reservation's single invoice, seeded with its base rate
func (s *Service) GenerateInvoiceForReservation(ctx context.Context, accountID, reservationID string) (*domain.Invoice, error) {
	var inv *domain.Invoice

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		reservation, err := s.reservations.GetByID(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if !reservation.BelongsTo(accountID) {
			return domain.ErrReservationNotFound
		}
		if !reservation.Status.IsBillable() {
			return domain.ErrReservationNotBillable.WithDetail("status", string(reservation.Status))
		}

		if _, err := s.invoices.GetByReservation(ctx, tx, reservationID); err == nil {
			return domain.ErrInvoiceAlreadyExists
		} else if !errors.Is(err, domain.ErrInvoiceNotFound) {
			return fmt.Errorf("check existing invoice: %w", err)
		}

		inv = domain.NewInvoice(uuid.NewString(), reservation, s.now().UTC())
		if err := s.invoices.Create(ctx, tx, inv); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice generated",
		ports.String("invoice_id", inv.ID),
		ports.String("reservation_id", reservationID),
		ports.String("total", domain.FormatMoney(inv.TotalAmount)))

	return inv, nil
}

// GetInvoice returns an invoice of the account with its items
func (s *Service) GetInvoice(ctx context.Context, accountID, invoiceID string) (*domain.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, nil, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.BelongsTo(accountID) {
		s.logCrossTenant(accountID, invoiceID)
		return nil, domain.ErrCrossTenantAccess
	}
	return inv, nil
}

// AddInvoiceItem appends a positive line item to a pending invoice.
// Subtotal and total are recomputed from the re-read items; discount and tax are untouched.
func (s *Service) AddInvoiceItem(ctx context.Context, accountID, invoiceID, description string, amount decimal.Decimal) (*domain.Invoice, error) {
	description = strings.TrimSpace(description)
	if description == "" || len(description) > maxDescriptionLength {
		return nil, domain.ErrValidationFailed.WithDetail("field", "description")
	}
	if !amount.IsPositive() {
		return nil, domain.ErrValidationAmountInvalid
	}

	return s.mutate(ctx, accountID, invoiceID, func(ctx context.Context, tx ports.DBTX, inv *domain.Invoice) error {
		if err := inv.EnsureMutable(); err != nil {
			return err
		}

		item := &domain.InvoiceItem{
			InvoiceID:   inv.ID,
			Description: description,
			Amount:      domain.Round2(amount),
			CreatedAt:   s.now().UTC(),
		}
		if err := s.invoices.InsertItem(ctx, tx, item); err != nil {
			return fmt.Errorf("insert invoice item: %w", err)
		}

		items, err := s.invoices.ListItems(ctx, tx, inv.ID)
		if err != nil {
			return fmt.Errorf("list invoice items: %w", err)
		}
		inv.Items = items
		inv.Recompute()
		inv.UpdatedAt = s.now().UTC()
		return nil
	})
}

// ApplyPromotion resolves code against the invoice subtotal and stores the discount.
// Applying a second code replaces the first; only one promotion is active per invoice.
func (s *Service) ApplyPromotion(ctx context.Context, accountID, invoiceID, code string) (*domain.Invoice, error) {
	return s.mutate(ctx, accountID, invoiceID, func(ctx context.Context, tx ports.DBTX, inv *domain.Invoice) error {
		if err := inv.EnsureMutable(); err != nil {
			return err
		}

		resolved, err := s.promotions.Resolve(ctx, tx, accountID, code, inv.Subtotal)
		if err != nil {
			return err
		}

		inv.ApplyDiscount(resolved.Promotion.Code, resolved.Discount)
		inv.UpdatedAt = s.now().UTC()

		s.logger.Info("promotion applied",
			ports.String("invoice_id", inv.ID),
			ports.String("code", resolved.Promotion.Code),
			ports.String("discount_total", domain.FormatMoney(inv.DiscountTotal)))
		return nil
	})
}

// ProcessPayment settles an invoice manually. The amount must cover the total due.
func (s *Service) ProcessPayment(ctx context.Context, accountID, invoiceID string, amount decimal.Decimal) (*domain.Invoice, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrValidationAmountInvalid
	}

	return s.mutate(ctx, accountID, invoiceID, func(ctx context.Context, tx ports.DBTX, inv *domain.Invoice) error {
		switch inv.Status {
		case domain.InvoiceStatusPending:
		case domain.InvoiceStatusPaid:
			return domain.ErrInvoiceAlreadyPaid
		case domain.InvoiceStatusVoid:
			return domain.ErrInvoiceVoid
		default:
			return domain.ErrInvoiceNotPending
		}

		if amount.LessThan(inv.TotalAmount) {
			return domain.ErrInsufficientPayment.
				WithDetail("amount", domain.FormatMoney(amount)).
				WithDetail("total_due", domain.FormatMoney(inv.TotalAmount))
		}
		if err := inv.MarkPaid(s.now().UTC()); err != nil {
			return err
		}

		s.logger.Info("invoice paid",
			ports.String("invoice_id", inv.ID),
			ports.String("amount", domain.FormatMoney(amount)))
		return nil
	})
}

// MarkInvoicePaid is an idempotent toggle to paid
func (s *Service) MarkInvoicePaid(ctx context.Context, accountID, invoiceID string) (*domain.Invoice, error) {
	return s.mutate(ctx, accountID, invoiceID, func(ctx context.Context, tx ports.DBTX, inv *domain.Invoice) error {
		return inv.MarkPaid(s.now().UTC())
	})
}

// MarkInvoiceUnpaid is an idempotent toggle back to pending
func (s *Service) MarkInvoiceUnpaid(ctx context.Context, accountID, invoiceID string) (*domain.Invoice, error) {
	return s.mutate(ctx, accountID, invoiceID, func(ctx context.Context, tx ports.DBTX, inv *domain.Invoice) error {
		return inv.MarkUnpaid(s.now().UTC())
	})
}

// VoidInvoice moves a pending or paid invoice to the terminal void state
func (s *Service) VoidInvoice(ctx context.Context, accountID, invoiceID string) (*domain.Invoice, error) {
	return s.mutate(ctx, accountID, invoiceID, func(ctx context.Context, tx ports.DBTX, inv *domain.Invoice) error {
		if err := inv.Void(s.now().UTC()); err != nil {
			return err
		}
		s.logger.Info("invoice voided", ports.String("invoice_id", inv.ID))
		return nil
	})
}

// RecordRefund sets the cumulative refund marker. The invoice keeps its status.
func (s *Service) RecordRefund(ctx context.Context, accountID, invoiceID string, refunded decimal.Decimal) (*domain.Invoice, error) {
	if refunded.IsNegative() {
		return nil, domain.ErrValidationAmountInvalid
	}
	return s.mutate(ctx, accountID, invoiceID, func(ctx context.Context, tx ports.DBTX, inv *domain.Invoice) error {
		inv.SetRefundedTotal(refunded, s.now().UTC())
		return nil
	})
}

// SettleInTx marks an invoice paid inside the caller's transaction.
// Void invoices are returned unchanged together with domain.ErrInvoiceVoid.
func (s *Service) SettleInTx(ctx context.Context, tx ports.DBTX, accountID, invoiceID string) (*domain.Invoice, error) {
	inv, err := s.lock(ctx, tx, accountID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == domain.InvoiceStatusPaid {
		return inv, nil
	}
	if err := inv.MarkPaid(s.now().UTC()); err != nil {
		return inv, err
	}
	if err := s.invoices.Update(ctx, tx, inv); err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	return inv, nil
}

// RecordRefundInTx sets the refund marker inside the caller's transaction
func (s *Service) RecordRefundInTx(ctx context.Context, tx ports.DBTX, accountID, invoiceID string, refunded decimal.Decimal) (*domain.Invoice, error) {
	inv, err := s.lock(ctx, tx, accountID, invoiceID)
	if err != nil {
		return nil, err
	}
	inv.SetRefundedTotal(refunded, s.now().UTC())
	if err := s.invoices.Update(ctx, tx, inv); err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	return inv, nil
}

// mutate locks the invoice, applies fn and persists the result in one transaction
func (s *Service) mutate(
	ctx context.Context,
	accountID, invoiceID string,
	fn func(ctx context.Context, tx ports.DBTX, inv *domain.Invoice) error,
) (*domain.Invoice, error) {
	var out *domain.Invoice

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		inv, err := s.lock(ctx, tx, accountID, invoiceID)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, inv); err != nil {
			return err
		}
		if err := inv.CheckInvariant(); err != nil {
			return domain.WrapError(domain.ErrorCodeInternalError, "invoice totals out of balance", err)
		}
		if err := s.invoices.Update(ctx, tx, inv); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) lock(ctx context.Context, tx ports.DBTX, accountID, invoiceID string) (*domain.Invoice, error) {
	inv, err := s.invoices.GetForUpdate(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.BelongsTo(accountID) {
		s.logCrossTenant(accountID, invoiceID)
		return nil, domain.ErrCrossTenantAccess
	}
	return inv, nil
}

func (s *Service) logCrossTenant(accountID, invoiceID string) {
	s.logger.Warn("cross-tenant invoice access rejected",
		ports.String("account_id", accountID),
		ports.String("invoice_id", invoiceID))
}
