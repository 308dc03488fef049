package quote

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/services/pricing"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/services/promotion"
	"github.com/shopspring/decimal"
)

// PromotionResolver resolves a promotion code against a subtotal
type PromotionResolver interface {
	Resolve(ctx context.Context, db ports.DBTX, accountID, code string, subtotal decimal.Decimal) (*promotion.Resolution, error)
}

// Service builds unpersisted pricing breakdowns for reservations
type Service struct {
	db           ports.DBPort
	reservations ports.ReservationReader
	rules        ports.PriceRuleReader
	promotions   PromotionResolver
	tax          ports.TaxPolicy
	logger       ports.Logger
}

// NewService creates a new quote engine. A nil tax policy means ZeroTax.
func NewService(
	db ports.DBPort,
	reservations ports.ReservationReader,
	rules ports.PriceRuleReader,
	promotions PromotionResolver,
	tax ports.TaxPolicy,
	logger ports.Logger,
) *Service {
	if tax == nil {
		tax = ZeroTax{}
	}
	return &Service{
		db:           db,
		reservations: reservations,
		rules:        rules,
		promotions:   promotions,
		tax:          tax,
		logger:       logger,
	}
}

// QuoteReservation prices a reservation for the requesting account. It persists nothing.
// Reservations of other accounts are reported as not found.
func (s *Service) QuoteReservation(ctx context.Context, accountID, reservationID, promotionCode string) (*domain.Quote, error) {
	var quote *domain.Quote

	err := s.db.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		reservation, err := s.reservations.GetByID(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if !reservation.BelongsTo(accountID) {
			s.logger.Warn("quote requested for reservation of another account",
				ports.String("account_id", accountID),
				ports.String("reservation_id", reservationID))
			return domain.ErrReservationNotFound
		}

		rules, err := s.rules.ListActive(ctx, tx, accountID)
		if err != nil {
			return fmt.Errorf("list price rules: %w", err)
		}

		quote, err = s.build(ctx, tx, reservation, rules, promotionCode)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("quote computed",
		ports.String("reservation_id", reservationID),
		ports.String("subtotal", domain.FormatMoney(quote.Subtotal)),
		ports.String("total", domain.FormatMoney(quote.Total)))

	return quote, nil
}

func (s *Service) build(ctx context.Context, tx ports.DBTX, reservation *domain.Reservation, rules []domain.PriceRule, promotionCode string) (*domain.Quote, error) {
	eval := pricing.Evaluate(reservation, rules)
	if len(eval.Skipped) > 0 {
		s.logger.Warn("skipped malformed price rules",
			ports.String("account_id", reservation.AccountID),
			ports.String("rule_ids", strings.Join(eval.Skipped, ",")))
	}

	items := make([]domain.LineItem, 0, 1+len(eval.Surcharges))
	items = append(items, domain.LineItem{
		Description: domain.DescriptionBaseRate,
		Kind:        domain.LineItemKindCharge,
		Amount:      reservation.BaseRate,
	})
	items = append(items, eval.Surcharges...)

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Amount)
	}
	subtotal = domain.Round2(subtotal)

	discounts := append([]domain.LineItem{}, eval.Discounts...)
	discount := eval.DiscountTotal()

	code := strings.TrimSpace(promotionCode)
	if code != "" {
		resolved, err := s.promotions.Resolve(ctx, tx, reservation.AccountID, code, subtotal)
		if err != nil {
			return nil, fmt.Errorf("resolve promotion: %w", err)
		}
		discounts = append(discounts, domain.LineItem{
			Description: "Promotion " + resolved.Promotion.Code,
			Kind:        domain.LineItemKindDiscount,
			Amount:      resolved.Discount,
		})
		discount = discount.Add(resolved.Discount)
	}

	discountTotal := domain.Round2(domain.MinDecimal(discount, subtotal))

	tax, err := s.tax.Tax(ctx, reservation, subtotal.Sub(discountTotal))
	if err != nil {
		return nil, fmt.Errorf("compute tax: %w", err)
	}
	taxTotal := domain.Round2(domain.ClampNonNegative(tax))

	return &domain.Quote{
		ReservationID: reservation.ID,
		PromotionCode: code,
		Items:         items,
		Discounts:     discounts,
		Subtotal:      subtotal,
		DiscountTotal: discountTotal,
		TaxTotal:      taxTotal,
		Total:         domain.ComputeTotal(subtotal, discountTotal, taxTotal),
	}, nil
}
