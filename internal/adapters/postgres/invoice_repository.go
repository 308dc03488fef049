package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
)

const constraintInvoiceReservation = "uq_invoice_reservation"

// InvoiceRepository implements ports.InvoiceRepository using PostgreSQL
type InvoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository creates a new PostgreSQL invoice repository
func NewInvoiceRepository(db ports.DBPort) *InvoiceRepository {
	return &InvoiceRepository{pool: db.GetDB()}
}

const insertInvoice = `
	INSERT INTO invoices (
		id, account_id, reservation_id, status, subtotal, discount_total, tax_total,
		total_amount, refunded_amount, promotion_code, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

const insertItem = `
	INSERT INTO invoice_items (id, invoice_id, description, amount, position, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

// Create inserts the invoice and its seeded items
func (r *InvoiceRepository) Create(ctx context.Context, tx ports.DBTX, inv *domain.Invoice) error {
	q := conn(tx, r.pool)
	_, err := q.Exec(ctx, insertInvoice,
		inv.ID, inv.AccountID, inv.ReservationID, string(inv.Status),
		numeric(inv.Subtotal), numeric(inv.DiscountTotal), numeric(inv.TaxTotal),
		numeric(inv.TotalAmount), numeric(inv.RefundedAmount),
		nullTextPtr(inv.PromotionCode), inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, constraintInvoiceReservation) {
			return domain.ErrInvoiceAlreadyExists
		}
		return fmt.Errorf("insert invoice: %w", err)
	}

	for i := range inv.Items {
		item := &inv.Items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.InvoiceID = inv.ID
		if _, err := q.Exec(ctx, insertItem,
			item.ID, item.InvoiceID, item.Description, numeric(item.Amount), item.Position, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert invoice item %d: %w", item.Position, err)
		}
	}
	return nil
}

const selectInvoiceColumns = `
	SELECT id, account_id, reservation_id, status, subtotal, discount_total, tax_total,
	       total_amount, refunded_amount, promotion_code, paid_at, refunded_at, voided_at,
	       created_at, updated_at
	FROM invoices`

// GetByID loads the invoice header and items
func (r *InvoiceRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Invoice, error) {
	return r.get(ctx, conn(db, r.pool), selectInvoiceColumns+` WHERE id = $1`, id)
}

// GetForUpdate loads the invoice and holds its row lock until the transaction ends
func (r *InvoiceRepository) GetForUpdate(ctx context.Context, tx ports.DBTX, id string) (*domain.Invoice, error) {
	return r.get(ctx, conn(tx, r.pool), selectInvoiceColumns+` WHERE id = $1 FOR UPDATE`, id)
}

// GetByReservation loads the reservation's invoice
func (r *InvoiceRepository) GetByReservation(ctx context.Context, db ports.DBTX, reservationID string) (*domain.Invoice, error) {
	return r.get(ctx, conn(db, r.pool), selectInvoiceColumns+` WHERE reservation_id = $1`, reservationID)
}

func (r *InvoiceRepository) get(ctx context.Context, q ports.DBTX, sql string, arg string) (*domain.Invoice, error) {
	inv, err := scanInvoice(q.QueryRow(ctx, sql, arg))
	if err != nil {
		return nil, notFound(err, domain.ErrInvoiceNotFound)
	}
	if inv.Items, err = r.ListItems(ctx, q, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var (
		inv                                      domain.Invoice
		status                                   string
		subtotal, discount, tax, total, refunded pgtype.Numeric
		promo                                    pgtype.Text
		paidAt, refundedAt, voidedAt             pgtype.Timestamptz
	)
	if err := row.Scan(
		&inv.ID, &inv.AccountID, &inv.ReservationID, &status,
		&subtotal, &discount, &tax, &total, &refunded,
		&promo, &paidAt, &refundedAt, &voidedAt, &inv.CreatedAt, &inv.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan invoice: %w", err)
	}

	var err error
	if inv.Status, err = domain.ParseInvoiceStatus(status); err != nil {
		return nil, fmt.Errorf("invoice %s: %w", inv.ID, err)
	}
	for _, a := range []struct {
		dst *decimal.Decimal
		src pgtype.Numeric
	}{
		{&inv.Subtotal, subtotal},
		{&inv.DiscountTotal, discount},
		{&inv.TaxTotal, tax},
		{&inv.TotalAmount, total},
		{&inv.RefundedAmount, refunded},
	} {
		if *a.dst, err = pgNumericToDecimal(a.src); err != nil {
			return nil, fmt.Errorf("invoice %s amounts: %w", inv.ID, err)
		}
	}
	inv.PromotionCode = textPtr(promo)
	inv.PaidAt = timePtr(paidAt)
	inv.RefundedAt = timePtr(refundedAt)
	inv.VoidedAt = timePtr(voidedAt)
	return &inv, nil
}

const insertNextItem = `
	INSERT INTO invoice_items (id, invoice_id, description, amount, position, created_at)
	SELECT $1, $2, $3, $4, COALESCE(MAX(position) + 1, 0), $5
	FROM invoice_items
	WHERE invoice_id = $2
	RETURNING position`

// InsertItem appends an item at the next free position.
// Callers hold the invoice row lock, so positions cannot race.
func (r *InvoiceRepository) InsertItem(ctx context.Context, tx ports.DBTX, item *domain.InvoiceItem) error {
	item.ID = uuid.NewString()
	err := conn(tx, r.pool).QueryRow(ctx, insertNextItem,
		item.ID, item.InvoiceID, item.Description, numeric(item.Amount), item.CreatedAt,
	).Scan(&item.Position)
	if err != nil {
		return fmt.Errorf("insert invoice item: %w", err)
	}
	return nil
}

const listItems = `
	SELECT id, invoice_id, description, amount, position, created_at
	FROM invoice_items
	WHERE invoice_id = $1
	ORDER BY position`

// ListItems re-reads persisted items in position order
func (r *InvoiceRepository) ListItems(ctx context.Context, db ports.DBTX, invoiceID string) ([]domain.InvoiceItem, error) {
	rows, err := conn(db, r.pool).Query(ctx, listItems, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.InvoiceItem, 0, 4)
	for rows.Next() {
		var (
			item   domain.InvoiceItem
			amount pgtype.Numeric
		)
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description, &amount, &item.Position, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		if item.Amount, err = pgNumericToDecimal(amount); err != nil {
			return nil, fmt.Errorf("invoice item %s amount: %w", item.ID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoice items: %w", err)
	}
	return items, nil
}

const updateInvoice = `
	UPDATE invoices SET
		status = $2,
		subtotal = $3,
		discount_total = $4,
		tax_total = $5,
		total_amount = $6,
		refunded_amount = $7,
		promotion_code = $8,
		paid_at = $9,
		refunded_at = $10,
		voided_at = $11,
		updated_at = $12
	WHERE id = $1`

// Update writes totals, status, promotion and refund markers
func (r *InvoiceRepository) Update(ctx context.Context, tx ports.DBTX, inv *domain.Invoice) error {
	tag, err := conn(tx, r.pool).Exec(ctx, updateInvoice,
		inv.ID, string(inv.Status),
		numeric(inv.Subtotal), numeric(inv.DiscountTotal), numeric(inv.TaxTotal),
		numeric(inv.TotalAmount), numeric(inv.RefundedAmount),
		nullTextPtr(inv.PromotionCode),
		nullTime(inv.PaidAt), nullTime(inv.RefundedAt), nullTime(inv.VoidedAt),
		inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}

var _ ports.InvoiceRepository = (*InvoiceRepository)(nil)
