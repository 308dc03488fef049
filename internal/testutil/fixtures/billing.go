package fixtures

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
)

// Default tenant used across service and handler tests
const (
	AccountID      = "11111111-1111-1111-1111-111111111111"
	OtherAccountID = "22222222-2222-2222-2222-222222222222"
	OwnerID        = "33333333-3333-3333-3333-333333333333"
)

// ReservationBuilder provides fluent API for building test reservations.
type ReservationBuilder struct {
	reservation *domain.Reservation
}

// NewReservation creates a confirmed boarding reservation with a 100.00 base rate.
func NewReservation() *ReservationBuilder {
	return &ReservationBuilder{
		reservation: &domain.Reservation{
			ID:         uuid.NewString(),
			AccountID:  AccountID,
			LocationID: uuid.NewString(),
			PetID:      uuid.NewString(),
			OwnerID:    OwnerID,
			Type:       "boarding",
			Status:     domain.ReservationStatusConfirmed,
			StartAt:    time.Date(2026, 12, 24, 9, 0, 0, 0, time.UTC),
			EndAt:      time.Date(2026, 12, 27, 10, 0, 0, 0, time.UTC),
			BaseRate:   Money("100.00"),
		},
	}
}

func (b *ReservationBuilder) WithID(id string) *ReservationBuilder {
	b.reservation.ID = id
	return b
}

func (b *ReservationBuilder) WithAccount(accountID string) *ReservationBuilder {
	b.reservation.AccountID = accountID
	return b
}

func (b *ReservationBuilder) WithBaseRate(amount string) *ReservationBuilder {
	b.reservation.BaseRate = Money(amount)
	return b
}

func (b *ReservationBuilder) WithStatus(status domain.ReservationStatus) *ReservationBuilder {
	b.reservation.Status = status
	return b
}

func (b *ReservationBuilder) WithStay(start, end time.Time) *ReservationBuilder {
	b.reservation.StartAt = start
	b.reservation.EndAt = end
	return b
}

func (b *ReservationBuilder) Build() *domain.Reservation {
	r := *b.reservation
	return &r
}

// PriceRule builds an active rule for the default account.
func PriceRule(ruleType domain.RuleType, params string) domain.PriceRule {
	return domain.PriceRule{
		ID:        uuid.NewString(),
		AccountID: AccountID,
		Name:      string(ruleType),
		Type:      ruleType,
		Params:    json.RawMessage(params),
		Active:    true,
		CreatedAt: time.Now(),
	}
}

// PercentPromotion builds an active, unbounded percent promotion for the default account.
func PercentPromotion(code, value string) *domain.Promotion {
	return &domain.Promotion{
		ID:        uuid.NewString(),
		AccountID: AccountID,
		Code:      code,
		Kind:      domain.PromotionKindPercent,
		Value:     Money(value),
		Active:    true,
	}
}

// AmountPromotion builds an active, unbounded fixed-amount promotion for the default account.
func AmountPromotion(code, value string) *domain.Promotion {
	p := PercentPromotion(code, value)
	p.Kind = domain.PromotionKindAmount
	return p
}
