package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReservationStatus represents the reservation lifecycle
type ReservationStatus string

const (
	ReservationStatusRequested  ReservationStatus = "requested"
	ReservationStatusConfirmed  ReservationStatus = "confirmed"
	ReservationStatusAccepted   ReservationStatus = "accepted"
	ReservationStatusCheckedIn  ReservationStatus = "checked_in"
	ReservationStatusCheckedOut ReservationStatus = "checked_out"
	ReservationStatusCanceled   ReservationStatus = "canceled"
)

// ParseReservationStatus converts a stored value into the closed set of statuses
func ParseReservationStatus(s string) (ReservationStatus, error) {
	status := ReservationStatus(s)
	switch status {
	case ReservationStatusRequested,
		ReservationStatusConfirmed,
		ReservationStatusAccepted,
		ReservationStatusCheckedIn,
		ReservationStatusCheckedOut,
		ReservationStatusCanceled:
		return status, nil
	}
	return "", fmt.Errorf("unknown reservation status %q", s)
}

// IsBillable reports whether an invoice may be generated for a reservation in this status
func (s ReservationStatus) IsBillable() bool {
	switch s {
	case ReservationStatusConfirmed, ReservationStatusAccepted,
		ReservationStatusCheckedIn, ReservationStatusCheckedOut:
		return true
	case ReservationStatusRequested, ReservationStatusCanceled:
		return false
	}
	return false
}

// Reservation is the read-only view of a booked service the billing core prices.
// Reservations are owned by the reservation service; this package never mutates them.
type Reservation struct {
	StartAt    time.Time         `json:"start_at"`
	EndAt      time.Time         `json:"end_at"`
	ID         string            `json:"id"`
	AccountID  string            `json:"account_id"`
	LocationID string            `json:"location_id"`
	PetID      string            `json:"pet_id"`
	OwnerID    string            `json:"owner_id"`
	Type       string            `json:"reservation_type"`
	Status     ReservationStatus `json:"status"`
	BaseRate   decimal.Decimal   `json:"base_rate"`
}

// BelongsTo reports whether the reservation is owned by the account
func (r *Reservation) BelongsTo(accountID string) bool {
	return r != nil && r.AccountID == accountID
}
