package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
)

// ReservationRepository reads reservations, price rules and promotions.
// These tables are written by the CRUD services; billing never mutates them.
type ReservationRepository struct {
	pool *pgxpool.Pool
}

// NewReservationRepository creates a reader over the shared reference tables
func NewReservationRepository(db ports.DBPort) *ReservationRepository {
	return &ReservationRepository{pool: db.GetDB()}
}

const selectReservation = `
	SELECT id, account_id, location_id, pet_id, owner_id, reservation_type,
	       status, start_at, end_at, base_rate
	FROM reservations
	WHERE id = $1`

// GetByID retrieves a reservation by ID
func (r *ReservationRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Reservation, error) {
	var (
		res      domain.Reservation
		status   string
		baseRate pgtype.Numeric
	)
	err := conn(db, r.pool).QueryRow(ctx, selectReservation, id).Scan(
		&res.ID, &res.AccountID, &res.LocationID, &res.PetID, &res.OwnerID, &res.Type,
		&status, &res.StartAt, &res.EndAt, &baseRate,
	)
	if err != nil {
		return nil, notFound(fmt.Errorf("get reservation: %w", err), domain.ErrReservationNotFound)
	}

	if res.Status, err = domain.ParseReservationStatus(status); err != nil {
		return nil, fmt.Errorf("reservation %s: %w", id, err)
	}
	if res.BaseRate, err = pgNumericToDecimal(baseRate); err != nil {
		return nil, fmt.Errorf("reservation %s base rate: %w", id, err)
	}
	res.StartAt = res.StartAt.UTC()
	res.EndAt = res.EndAt.UTC()
	return &res, nil
}

const listActiveRules = `
	SELECT id, account_id, name, rule_type, params, active, created_at
	FROM price_rules
	WHERE account_id = $1 AND active
	ORDER BY created_at, id`

// ListActive returns the account's active rules in a stable order
func (r *ReservationRepository) ListActive(ctx context.Context, db ports.DBTX, accountID string) ([]domain.PriceRule, error) {
	rows, err := conn(db, r.pool).Query(ctx, listActiveRules, accountID)
	if err != nil {
		return nil, fmt.Errorf("list price rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.PriceRule
	for rows.Next() {
		var (
			rule     domain.PriceRule
			ruleType string
			params   []byte
		)
		if err := rows.Scan(&rule.ID, &rule.AccountID, &rule.Name, &ruleType, &params, &rule.Active, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan price rule: %w", err)
		}
		rule.Type = domain.RuleType(ruleType)
		rule.Params = json.RawMessage(params)
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price rules: %w", err)
	}
	return rules, nil
}

const selectPromotion = `
	SELECT id, account_id, code, kind, value, starts_on, ends_on, active
	FROM promotions
	WHERE account_id = $1 AND code = $2`

// GetByCode retrieves a promotion by its account-scoped code
func (r *ReservationRepository) GetByCode(ctx context.Context, db ports.DBTX, accountID, code string) (*domain.Promotion, error) {
	var (
		p              domain.Promotion
		kind           string
		value          pgtype.Numeric
		startsOn, ends pgtype.Date
	)
	err := conn(db, r.pool).QueryRow(ctx, selectPromotion, accountID, code).Scan(
		&p.ID, &p.AccountID, &p.Code, &kind, &value, &startsOn, &ends, &p.Active,
	)
	if err != nil {
		return nil, notFound(fmt.Errorf("get promotion: %w", err), domain.ErrPromotionNotFound)
	}

	p.Kind = domain.PromotionKind(kind)
	if p.Value, err = pgNumericToDecimal(value); err != nil {
		return nil, fmt.Errorf("promotion %s value: %w", code, err)
	}
	p.StartsOn = datePtr(startsOn)
	p.EndsOn = datePtr(ends)
	return &p, nil
}

var (
	_ ports.ReservationReader = (*ReservationRepository)(nil)
	_ ports.PriceRuleReader   = (*ReservationRepository)(nil)
	_ ports.PromotionReader   = (*ReservationRepository)(nil)
)
