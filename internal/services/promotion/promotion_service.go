package promotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// Resolution is a promotion that may be applied together with the discount it grants
type Resolution struct {
	Promotion *domain.Promotion
	Discount  decimal.Decimal
}

// Service resolves promotion codes for an account
type Service struct {
	promotions ports.PromotionReader
	logger     ports.Logger
	now        ports.Clock
}

// NewService creates a new promotion resolver
func NewService(promotions ports.PromotionReader, logger ports.Logger, now ports.Clock) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		promotions: promotions,
		logger:     logger,
		now:        now,
	}
}

// Resolve looks up code for the account and computes its discount on subtotal.
// Unknown, inactive and out-of-window codes all fail with domain.ErrInvalidPromotion.
// The discount is never negative and never exceeds subtotal.
func (s *Service) Resolve(ctx context.Context, db ports.DBTX, accountID, code string, subtotal decimal.Decimal) (*Resolution, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrInvalidPromotion.WithDetail("reason", "empty code")
	}

	promo, err := s.promotions.GetByCode(ctx, db, accountID, code)
	if err != nil {
		if errors.Is(err, domain.ErrPromotionNotFound) {
			return nil, domain.ErrInvalidPromotion.WithDetail("code", code)
		}
		return nil, fmt.Errorf("get promotion %q: %w", code, err)
	}

	if promo.AccountID != accountID || !promo.IsRedeemableOn(s.now().UTC()) {
		s.logger.Debug("promotion not redeemable",
			ports.String("account_id", accountID),
			ports.String("code", code),
			ports.Bool("active", promo.Active))
		return nil, domain.ErrInvalidPromotion.WithDetail("code", code)
	}

	return &Resolution{
		Promotion: promo,
		Discount:  promo.DiscountFor(subtotal),
	}, nil
}
