package deposit

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
)

// Service manages the held -> consumed|refunded|forfeited deposit lifecycle
type Service struct {
	db           ports.DBPort
	reservations ports.ReservationReader
	deposits     ports.DepositRepository
	invoices     ports.InvoiceRepository
	logger       ports.Logger
	now          ports.Clock
}

// NewService creates a new deposit manager
func NewService(
	db ports.DBPort,
	reservations ports.ReservationReader,
	deposits ports.DepositRepository,
	invoices ports.InvoiceRepository,
	logger ports.Logger,
	now ports.Clock,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:           db,
		reservations: reservations,
		deposits:     deposits,
		invoices:     invoices,
		logger:       logger,
		now:          now,
	}
}

// Hold creates a held deposit. Only one deposit may be held per reservation at a time.
// An empty ownerID defaults to the reservation's owner.
func (s *Service) Hold(ctx context.Context, accountID, reservationID, ownerID string, amount decimal.Decimal) (*domain.Deposit, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrValidationAmountInvalid
	}

	var dep *domain.Deposit
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		reservation, err := s.reservation(ctx, tx, accountID, reservationID)
		if err != nil {
			return err
		}

		if _, err := s.deposits.GetHeldForUpdate(ctx, tx, reservationID); err == nil {
			return domain.ErrDepositAlreadyHeld
		} else if !errors.Is(err, domain.ErrNoActiveDeposit) {
			return fmt.Errorf("check held deposit: %w", err)
		}

		dep, err = domain.NewHeldDeposit(uuid.NewString(), reservation, ownerID, amount, s.now().UTC())
		if err != nil {
			return err
		}
		return s.deposits.Create(ctx, tx, dep)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deposit held",
		ports.String("deposit_id", dep.ID),
		ports.String("reservation_id", reservationID),
		ports.String("amount", domain.FormatMoney(dep.Amount)))
	return dep, nil
}

// Consume applies the held deposit to the reservation's invoice, linking it when one exists
func (s *Service) Consume(ctx context.Context, accountID, reservationID string, amount decimal.Decimal) (*domain.Deposit, error) {
	return s.settle(ctx, accountID, reservationID, domain.DepositStatusConsumed, amount)
}

// Refund returns the held deposit to the owner
func (s *Service) Refund(ctx context.Context, accountID, reservationID string, amount decimal.Decimal) (*domain.Deposit, error) {
	return s.settle(ctx, accountID, reservationID, domain.DepositStatusRefunded, amount)
}

// Forfeit keeps the held deposit, e.g. after a late cancellation
func (s *Service) Forfeit(ctx context.Context, accountID, reservationID string, amount decimal.Decimal) (*domain.Deposit, error) {
	return s.settle(ctx, accountID, reservationID, domain.DepositStatusForfeited, amount)
}

// List returns every deposit of the reservation, newest first
func (s *Service) List(ctx context.Context, accountID, reservationID string) ([]domain.Deposit, error) {
	if _, err := s.reservation(ctx, nil, accountID, reservationID); err != nil {
		return nil, err
	}
	deposits, err := s.deposits.ListByReservation(ctx, nil, reservationID)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	return deposits, nil
}

func (s *Service) settle(ctx context.Context, accountID, reservationID string, to domain.DepositStatus, amount decimal.Decimal) (*domain.Deposit, error) {
	var dep *domain.Deposit

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := s.reservation(ctx, tx, accountID, reservationID); err != nil {
			return err
		}

		held, err := s.deposits.GetHeldForUpdate(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if err := held.Settle(to, amount, s.now().UTC()); err != nil {
			return err
		}

		if to == domain.DepositStatusConsumed {
			inv, err := s.invoices.GetByReservation(ctx, tx, reservationID)
			switch {
			case err == nil:
				held.InvoiceID = &inv.ID
			case errors.Is(err, domain.ErrInvoiceNotFound):
			default:
				return fmt.Errorf("find reservation invoice: %w", err)
			}
		}

		if err := s.deposits.UpdateStatus(ctx, tx, held); err != nil {
			return fmt.Errorf("update deposit: %w", err)
		}
		dep = held
		return nil
	})
	if err != nil {
		s.logger.Debug("deposit settlement rejected",
			ports.String("reservation_id", reservationID),
			ports.String("action", string(to)),
			ports.Err(err))
		return nil, err
	}

	s.logger.Info("deposit settled",
		ports.String("deposit_id", dep.ID),
		ports.String("reservation_id", reservationID),
		ports.String("status", string(dep.Status)))
	return dep, nil
}

func (s *Service) reservation(ctx context.Context, db ports.DBTX, accountID, reservationID string) (*domain.Reservation, error) {
	reservation, err := s.reservations.GetByID(ctx, db, reservationID)
	if err != nil {
		return nil, err
	}
	if !reservation.BelongsTo(accountID) {
		return nil, domain.ErrReservationNotFound
	}
	return reservation, nil
}
