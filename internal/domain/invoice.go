package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the invoice state machine:
// pending -> paid, pending|paid -> void. Void is terminal.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusVoid    InvoiceStatus = "void"
)

// ParseInvoiceStatus converts a stored value into the closed set of statuses
func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	status := InvoiceStatus(s)
	switch status {
	case InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusVoid:
		return status, nil
	}
	return "", fmt.Errorf("unknown invoice status %q", s)
}

// InvoiceItem is one persisted line of an invoice
type InvoiceItem struct {
	CreatedAt   time.Time       `json:"created_at"`
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoice_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Position    int             `json:"position"`
}

// Invoice is the billing record for one reservation
type Invoice struct {
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	RefundedAt     *time.Time      `json:"refunded_at,omitempty"`
	VoidedAt       *time.Time      `json:"voided_at,omitempty"`
	PromotionCode  *string         `json:"promotion_code,omitempty"`
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	ReservationID  string          `json:"reservation_id"`
	Status         InvoiceStatus   `json:"status"`
	Items          []InvoiceItem   `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountTotal  decimal.Decimal `json:"discount_total"`
	TaxTotal       decimal.Decimal `json:"tax_total"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
}

// NewInvoice builds a pending invoice seeded with the reservation base rate
func NewInvoice(id string, reservation *Reservation, now time.Time) *Invoice {
	inv := &Invoice{
		ID:             id,
		AccountID:      reservation.AccountID,
		ReservationID:  reservation.ID,
		Status:         InvoiceStatusPending,
		DiscountTotal:  decimal.Zero,
		TaxTotal:       decimal.Zero,
		RefundedAmount: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	inv.Items = []InvoiceItem{{
		InvoiceID:   id,
		Description: DescriptionBaseRate,
		Amount:      reservation.BaseRate,
		Position:    0,
		CreatedAt:   now,
	}}
	inv.Recompute()
	return inv
}

// Recompute derives subtotal and total from the current items.
// Discount and tax are left as they are.
func (i *Invoice) Recompute() {
	subtotal := decimal.Zero
	for _, item := range i.Items {
		subtotal = subtotal.Add(item.Amount)
	}
	i.Subtotal = Round2(subtotal)
	i.TotalAmount = ComputeTotal(i.Subtotal, i.DiscountTotal, i.TaxTotal)
}

// CheckInvariant verifies subtotal == sum(items) and total == round2(subtotal - discount + tax)
func (i *Invoice) CheckInvariant() error {
	sum := decimal.Zero
	for _, item := range i.Items {
		sum = sum.Add(item.Amount)
	}
	if !Round2(sum).Equal(i.Subtotal) {
		return fmt.Errorf("invoice %s subtotal %s does not match items sum %s", i.ID, i.Subtotal, sum)
	}
	if want := ComputeTotal(i.Subtotal, i.DiscountTotal, i.TaxTotal); !want.Equal(i.TotalAmount) {
		return fmt.Errorf("invoice %s total %s does not match computed %s", i.ID, i.TotalAmount, want)
	}
	return nil
}

// BelongsTo reports whether the invoice is owned by the account
func (i *Invoice) BelongsTo(accountID string) bool {
	return i != nil && i.AccountID == accountID
}

// EnsureMutable returns an error unless line items and discounts may still change
func (i *Invoice) EnsureMutable() error {
	switch i.Status {
	case InvoiceStatusPending:
		return nil
	case InvoiceStatusPaid:
		return ErrInvoiceAlreadyPaid
	case InvoiceStatusVoid:
		return ErrInvoiceVoid
	}
	return ErrInvoiceNotPending
}

// AddItem appends a line item at the next position
func (i *Invoice) AddItem(item InvoiceItem) {
	item.InvoiceID = i.ID
	item.Position = len(i.Items)
	i.Items = append(i.Items, item)
}

// ApplyDiscount sets the discount, capped at the subtotal, and recomputes the total
func (i *Invoice) ApplyDiscount(code string, discount decimal.Decimal) {
	i.PromotionCode = &code
	i.DiscountTotal = Round2(MinDecimal(ClampNonNegative(discount), i.Subtotal))
	i.TotalAmount = ComputeTotal(i.Subtotal, i.DiscountTotal, i.TaxTotal)
}

// MarkPaid moves the invoice to paid. Calling it on a paid invoice is a no-op.
func (i *Invoice) MarkPaid(at time.Time) error {
	switch i.Status {
	case InvoiceStatusPaid:
		return nil
	case InvoiceStatusPending:
		i.Status = InvoiceStatusPaid
		i.PaidAt = &at
		i.UpdatedAt = at
		return nil
	case InvoiceStatusVoid:
		return ErrInvoiceVoid
	}
	return ErrInvoiceNotPending
}

// MarkUnpaid moves the invoice back to pending. Calling it on a pending invoice is a no-op.
func (i *Invoice) MarkUnpaid(at time.Time) error {
	switch i.Status {
	case InvoiceStatusPending:
		return nil
	case InvoiceStatusPaid:
		i.Status = InvoiceStatusPending
		i.PaidAt = nil
		i.UpdatedAt = at
		return nil
	case InvoiceStatusVoid:
		return ErrInvoiceVoid
	}
	return ErrInvoiceNotPending
}

// Void moves the invoice to the terminal void state
func (i *Invoice) Void(at time.Time) error {
	switch i.Status {
	case InvoiceStatusPending, InvoiceStatusPaid:
		i.Status = InvoiceStatusVoid
		i.VoidedAt = &at
		i.UpdatedAt = at
		return nil
	case InvoiceStatusVoid:
		return ErrInvoiceVoid
	}
	return ErrInvoiceNotPending
}

// SetRefundedTotal records the cumulative refunded amount without reopening the invoice.
// The marker never exceeds the invoice total.
func (i *Invoice) SetRefundedTotal(amount decimal.Decimal, at time.Time) {
	i.RefundedAmount = MinDecimal(ClampNonNegative(amount), i.TotalAmount)
	i.RefundedAt = &at
	i.UpdatedAt = at
}
