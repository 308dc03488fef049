package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
)

const constraintDepositHeld = "uq_deposit_reservation_held"

// DepositRepository implements ports.DepositRepository using PostgreSQL
type DepositRepository struct {
	pool *pgxpool.Pool
}

// NewDepositRepository creates a new PostgreSQL deposit repository
func NewDepositRepository(db ports.DBPort) *DepositRepository {
	return &DepositRepository{pool: db.GetDB()}
}

const insertDeposit = `
	INSERT INTO deposits (id, account_id, reservation_id, owner_id, status, amount, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Create inserts a held deposit
func (r *DepositRepository) Create(ctx context.Context, tx ports.DBTX, d *domain.Deposit) error {
	_, err := conn(tx, r.pool).Exec(ctx, insertDeposit,
		d.ID, d.AccountID, d.ReservationID, d.OwnerID, string(d.Status), numeric(d.Amount), d.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, constraintDepositHeld) {
			return domain.ErrDepositAlreadyHeld
		}
		return fmt.Errorf("insert deposit: %w", err)
	}
	return nil
}

const selectDepositColumns = `
	SELECT id, account_id, reservation_id, owner_id, invoice_id, status, amount, settled_at, created_at
	FROM deposits`

// GetHeldForUpdate locks the reservation's held deposit
func (r *DepositRepository) GetHeldForUpdate(ctx context.Context, tx ports.DBTX, reservationID string) (*domain.Deposit, error) {
	row := conn(tx, r.pool).QueryRow(ctx, selectDepositColumns+`
	WHERE reservation_id = $1 AND status = 'held'
	ORDER BY created_at DESC
	LIMIT 1
	FOR UPDATE`, reservationID)

	d, err := scanDeposit(row)
	if err != nil {
		return nil, notFound(err, domain.ErrNoActiveDeposit)
	}
	return d, nil
}

const updateDepositStatus = `
	UPDATE deposits SET status = $2, invoice_id = $3, settled_at = $4
	WHERE id = $1`

// UpdateStatus persists a settlement
func (r *DepositRepository) UpdateStatus(ctx context.Context, tx ports.DBTX, d *domain.Deposit) error {
	tag, err := conn(tx, r.pool).Exec(ctx, updateDepositStatus,
		d.ID, string(d.Status), d.InvoiceID, nullTime(d.SettledAt),
	)
	if err != nil {
		return fmt.Errorf("update deposit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoActiveDeposit
	}
	return nil
}

// ListByReservation returns every deposit of the reservation, newest first
func (r *DepositRepository) ListByReservation(ctx context.Context, db ports.DBTX, reservationID string) ([]domain.Deposit, error) {
	rows, err := conn(db, r.pool).Query(ctx, selectDepositColumns+`
	WHERE reservation_id = $1
	ORDER BY created_at DESC, id DESC`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	defer rows.Close()

	var deposits []domain.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deposits: %w", err)
	}
	return deposits, nil
}

func scanDeposit(row pgx.Row) (*domain.Deposit, error) {
	var (
		d         domain.Deposit
		status    string
		amount    pgtype.Numeric
		settledAt pgtype.Timestamptz
	)
	if err := row.Scan(&d.ID, &d.AccountID, &d.ReservationID, &d.OwnerID, &d.InvoiceID,
		&status, &amount, &settledAt, &d.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan deposit: %w", err)
	}

	var err error
	if d.Status, err = domain.ParseDepositStatus(status); err != nil {
		return nil, fmt.Errorf("deposit %s: %w", d.ID, err)
	}
	if d.Amount, err = pgNumericToDecimal(amount); err != nil {
		return nil, fmt.Errorf("deposit %s amount: %w", d.ID, err)
	}
	d.SettledAt = timePtr(settledAt)
	return &d, nil
}

var _ ports.DepositRepository = (*DepositRepository)(nil)
