package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DepositStatus represents the deposit state machine.
// Only held deposits transition; consumed, refunded and forfeited are terminal.
type DepositStatus string

const (
	DepositStatusHeld      DepositStatus = "held"
	DepositStatusConsumed  DepositStatus = "consumed"
	DepositStatusRefunded  DepositStatus = "refunded"
	DepositStatusForfeited DepositStatus = "forfeited"
)

// ParseDepositStatus converts a stored value into the closed set of statuses
func ParseDepositStatus(s string) (DepositStatus, error) {
	status := DepositStatus(s)
	switch status {
	case DepositStatusHeld, DepositStatusConsumed, DepositStatusRefunded, DepositStatusForfeited:
		return status, nil
	}
	return "", fmt.Errorf("unknown deposit status %q", s)
}

// IsTerminal reports whether no further transition is possible
func (s DepositStatus) IsTerminal() bool {
	switch s {
	case DepositStatusHeld:
		return false
	case DepositStatusConsumed, DepositStatusRefunded, DepositStatusForfeited:
		return true
	}
	return true
}

// Deposit is a hold of funds against a reservation
type Deposit struct {
	CreatedAt     time.Time       `json:"created_at"`
	SettledAt     *time.Time      `json:"settled_at,omitempty"`
	InvoiceID     *string         `json:"invoice_id,omitempty"`
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	ReservationID string          `json:"reservation_id"`
	OwnerID       string          `json:"owner_id"`
	Status        DepositStatus   `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
}

// NewHeldDeposit validates the amount and builds a deposit in the held state
func NewHeldDeposit(id string, reservation *Reservation, ownerID string, amount decimal.Decimal, now time.Time) (*Deposit, error) {
	if !amount.IsPositive() {
		return nil, ErrValidationAmountInvalid
	}
	if ownerID == "" {
		ownerID = reservation.OwnerID
	}
	return &Deposit{
		ID:            id,
		AccountID:     reservation.AccountID,
		ReservationID: reservation.ID,
		OwnerID:       ownerID,
		Status:        DepositStatusHeld,
		Amount:        Round2(amount),
		CreatedAt:     now,
	}, nil
}

// Settle moves a held deposit into a terminal state after checking the action amount.
// The amount must equal the held amount; larger amounts fail with AmountExceedsDeposit.
func (d *Deposit) Settle(to DepositStatus, amount decimal.Decimal, at time.Time) error {
	if d.Status != DepositStatusHeld {
		return ErrNoActiveDeposit
	}
	switch to {
	case DepositStatusConsumed, DepositStatusRefunded, DepositStatusForfeited:
	case DepositStatusHeld:
		return fmt.Errorf("deposit %s: cannot settle into %s", d.ID, to)
	default:
		return fmt.Errorf("deposit %s: unknown target status %q", d.ID, to)
	}
	if !amount.IsPositive() {
		return ErrValidationAmountInvalid
	}
	if amount.GreaterThan(d.Amount) {
		return ErrAmountExceedsDeposit.
			WithDetail("held_amount", FormatMoney(d.Amount)).
			WithDetail("requested_amount", FormatMoney(amount))
	}
	if amount.LessThan(d.Amount) {
		return ErrDepositAmountMismatch.
			WithDetail("held_amount", FormatMoney(d.Amount)).
			WithDetail("requested_amount", FormatMoney(amount))
	}

	d.Status = to
	d.SettledAt = &at
	return nil
}
