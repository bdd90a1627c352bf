package invoicing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian-pos/internal/platform/db"
	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetByID(ctx context.Context, id int64) (*Invoice, error)
	List(ctx context.Context, f ListFilters) ([]Invoice, int, error)
	Stats(ctx context.Context) (*Stats, error)
	Overdue(ctx context.Context, asOf time.Time) ([]Invoice, error)
}

// TxRepository is the transactional port for invoice creation and status
// transitions. Number allocation holds the month bucket's latest row
// locked until commit.
type TxRepository interface {
	NextSequence(ctx context.Context, prefix string) (int, error)
	SaleInvoiced(ctx context.Context, saleID int64) (bool, error)
	InsertInvoice(ctx context.Context, inv *Invoice) (int64, error)
	InsertItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error
	GetInvoiceForUpdate(ctx context.Context, id int64) (*Invoice, error)
	UpdateStatus(ctx context.Context, id int64, status InvoiceStatus, paidDate *time.Time) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

const invoiceColumns = `id, invoice_number, sale_id, customer_id, issued_by, subtotal,
	discount, tax_amount, total_amount, status, due_date, paid_date, notes,
	created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.SaleID, &inv.CustomerID, &inv.IssuedBy,
		&inv.Subtotal, &inv.Discount, &inv.TaxAmount, &inv.TotalAmount, &inv.Status,
		&inv.DueDate, &inv.PaidDate, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	return &inv, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, invoiceID int64) ([]InvoiceItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, product_id, description, quantity, unit_price, discount, total_price
		FROM invoice_items WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("query invoice items: %w", err)
	}
	defer rows.Close()

	var items []InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ProductID, &it.Description,
			&it.Quantity, &it.UnitPrice, &it.Discount, &it.TotalPrice); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *pgRepository) GetByID(ctx context.Context, id int64) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

func (r *pgRepository) List(ctx context.Context, f ListFilters) ([]Invoice, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if f.Status != "" {
		argCount++
		where += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, f.Status)
	}
	if f.CustomerID > 0 {
		argCount++
		where += fmt.Sprintf(" AND customer_id = $%d", argCount)
		args = append(args, f.CustomerID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices` + where + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		argCount++
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, f.Limit)
		if f.Page > 1 {
			argCount++
			query += fmt.Sprintf(" OFFSET $%d", argCount)
			args = append(args, (f.Page-1)*f.Limit)
		}
	}

	return r.queryInvoices(ctx, query, args, total)
}

func (r *pgRepository) queryInvoices(ctx context.Context, query string, args []any, total int) ([]Invoice, int, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.InvoiceNumber, &inv.SaleID, &inv.CustomerID, &inv.IssuedBy,
			&inv.Subtotal, &inv.Discount, &inv.TaxAmount, &inv.TotalAmount, &inv.Status,
			&inv.DueDate, &inv.PaidDate, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, total, rows.Err()
}

func (r *pgRepository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByStatus: make(map[InvoiceStatus]int)}

	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM invoices GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("aggregate invoices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status InvoiceStatus
		var n int
		var amount float64
		if err := rows.Scan(&status, &n, &amount); err != nil {
			return nil, fmt.Errorf("scan invoice stats: %w", err)
		}
		stats.ByStatus[status] = n
		if status != StatusCancelled {
			stats.TotalAmount += amount
		}
		switch status {
		case StatusPaid:
			stats.PaidAmount += amount
		case StatusUnpaid, StatusPartiallyPaid, StatusOverdue:
			stats.UnpaidAmount += amount
		}
	}
	return stats, rows.Err()
}

func (r *pgRepository) Overdue(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	invoices, _, err := r.queryInvoices(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE status IN ($1, $2) AND due_date < $3
		ORDER BY due_date`,
		[]any{StatusUnpaid, StatusPartiallyPaid, asOf}, 0)
	return invoices, err
}

type pgTxRepository struct {
	tx pgx.Tx
}

// NextSequence returns the next sequence for a month prefix such as
// "INV-202412". The latest row in the bucket is locked so concurrent
// allocations serialize; the unique index on invoice_number backstops
// the first allocation of a fresh bucket.
func (r *pgTxRepository) NextSequence(ctx context.Context, prefix string) (int, error) {
	// Numbers past 9999 grow a digit, so plain string ordering would
	// never see them; longer suffixes sort first.
	var last string
	err := r.tx.QueryRow(ctx, `
		SELECT invoice_number FROM invoices
		WHERE invoice_number LIKE $1
		ORDER BY length(invoice_number) DESC, invoice_number DESC
		LIMIT 1
		FOR UPDATE`, prefix+"-%").Scan(&last)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 1, nil
		}
		return 0, fmt.Errorf("lock invoice sequence %s: %w", prefix, err)
	}

	seq, err := strconv.Atoi(strings.TrimPrefix(last, prefix+"-"))
	if err != nil {
		return 0, fmt.Errorf("malformed invoice number %q: %w", last, err)
	}
	return seq + 1, nil
}

func (r *pgTxRepository) SaleInvoiced(ctx context.Context, saleID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM invoices WHERE sale_id = $1)`, saleID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check sale %d invoiced: %w", saleID, err)
	}
	return exists, nil
}

func (r *pgTxRepository) InsertInvoice(ctx context.Context, inv *Invoice) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO invoices (invoice_number, sale_id, customer_id, issued_by, subtotal,
			discount, tax_amount, total_amount, status, due_date, paid_date, notes,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING id`,
		inv.InvoiceNumber, inv.SaleID, inv.CustomerID, inv.IssuedBy, inv.Subtotal,
		inv.Discount, inv.TaxAmount, inv.TotalAmount, inv.Status, inv.DueDate,
		inv.PaidDate, inv.Notes).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert invoice %s: %w", inv.InvoiceNumber, err)
	}
	return id, nil
}

func (r *pgTxRepository) InsertItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error {
	for i := range items {
		it := &items[i]
		err := r.tx.QueryRow(ctx, `
			INSERT INTO invoice_items (invoice_id, product_id, description, quantity,
				unit_price, discount, total_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			invoiceID, it.ProductID, it.Description, it.Quantity,
			it.UnitPrice, it.Discount, it.TotalPrice).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert invoice item: %w", err)
		}
		it.InvoiceID = invoiceID
	}
	return nil
}

func (r *pgTxRepository) GetInvoiceForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, r.tx, id)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

func (r *pgTxRepository) UpdateStatus(ctx context.Context, id int64, status InvoiceStatus, paidDate *time.Time) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE invoices SET status = $1, paid_date = $2, updated_at = NOW()
		WHERE id = $3`, status, paidDate, id)
	if err != nil {
		return fmt.Errorf("update invoice %d status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}
