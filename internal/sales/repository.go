package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian-pos/internal/platform/db"
	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
)

// Repository reads sales outside a transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetByID(ctx context.Context, id int64) (*Sale, error)
	List(ctx context.Context, f ListFilters) ([]Sale, int, error)
	Report(ctx context.Context, from, to time.Time) (*Report, error)
}

// TxRepository is the transactional port used by the sale engine. Every
// stock mutation and the sale insert happen through one of these inside
// a single transaction.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, productID int64) (*ProductSnapshot, error)
	AdjustProductQuantity(ctx context.Context, productID int64, delta int) error
	InsertSale(ctx context.Context, s *Sale) (int64, error)
	InsertItems(ctx context.Context, saleID int64, items []SaleItem) error
	GetSaleForUpdate(ctx context.Context, id int64) (*Sale, error)
	UpdateStatus(ctx context.Context, id int64, status SaleStatus) error
	DeleteSale(ctx context.Context, id int64) error
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

const saleColumns = `id, customer_id, created_by, total_amount, discount, tax_amount,
	final_amount, payment_method, status, notes, created_at, updated_at`

func scanSale(row pgx.Row) (*Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.CustomerID, &s.CreatedBy, &s.TotalAmount, &s.Discount,
		&s.TaxAmount, &s.FinalAmount, &s.PaymentMethod, &s.Status, &s.Notes,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("scan sale: %w", err)
	}
	return &s, nil
}

func (r *pgRepository) GetByID(ctx context.Context, id int64) (*Sale, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	s, err := scanSale(row)
	if err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	s.Items = items
	return s, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, saleID int64) ([]SaleItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, sale_id, product_id, product_name, quantity, unit_price, discount, total_price
		FROM sale_items WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("query sale items: %w", err)
	}
	defer rows.Close()

	var items []SaleItem
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName,
			&it.Quantity, &it.UnitPrice, &it.Discount, &it.TotalPrice); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *pgRepository) List(ctx context.Context, f ListFilters) ([]Sale, int, error) {
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
	if f.DateFrom != nil {
		argCount++
		where += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *f.DateFrom)
	}
	if f.DateTo != nil {
		argCount++
		where += fmt.Sprintf(" AND created_at <= $%d", argCount)
		args = append(args, *f.DateTo)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sales: %w", err)
	}

	query := `SELECT ` + saleColumns + ` FROM sales` + where + ` ORDER BY created_at DESC`
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

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.CustomerID, &s.CreatedBy, &s.TotalAmount, &s.Discount,
			&s.TaxAmount, &s.FinalAmount, &s.PaymentMethod, &s.Status, &s.Notes,
			&s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, s)
	}
	return sales, total, rows.Err()
}

func (r *pgRepository) Report(ctx context.Context, from, to time.Time) (*Report, error) {
	rep := &Report{ByPaymentMethod: make(map[PaymentMethod]int)}

	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(final_amount), 0),
			COALESCE(SUM(discount), 0),
			COALESCE(SUM(tax_amount), 0)
		FROM sales
		WHERE status = $1 AND created_at >= $2 AND created_at <= $3`,
		SaleStatusCompleted, from, to).
		Scan(&rep.TotalSales, &rep.TotalRevenue, &rep.TotalDiscount, &rep.TotalTax)
	if err != nil {
		return nil, fmt.Errorf("aggregate sales: %w", err)
	}
	if rep.TotalSales > 0 {
		rep.AverageSale = rep.TotalRevenue / float64(rep.TotalSales)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT payment_method, COUNT(*)
		FROM sales
		WHERE status = $1 AND created_at >= $2 AND created_at <= $3
		GROUP BY payment_method`,
		SaleStatusCompleted, from, to)
	if err != nil {
		return nil, fmt.Errorf("aggregate payment methods: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var method PaymentMethod
		var n int
		if err := rows.Scan(&method, &n); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		rep.ByPaymentMethod[method] = n
	}
	return rep, rows.Err()
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) GetProductForUpdate(ctx context.Context, productID int64) (*ProductSnapshot, error) {
	var p ProductSnapshot
	err := r.tx.QueryRow(ctx, `
		SELECT id, name, price, quantity, is_active
		FROM products WHERE id = $1 FOR UPDATE`, productID).
		Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &p.IsActive)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("lock product %d: %w", productID, err)
	}
	return &p, nil
}

func (r *pgTxRepository) AdjustProductQuantity(ctx context.Context, productID int64, delta int) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE products SET quantity = quantity + $1, updated_at = NOW()
		WHERE id = $2`, delta, productID)
	if err != nil {
		return fmt.Errorf("adjust product %d quantity: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *pgTxRepository) InsertSale(ctx context.Context, s *Sale) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO sales (customer_id, created_by, total_amount, discount, tax_amount,
			final_amount, payment_method, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id`,
		s.CustomerID, s.CreatedBy, s.TotalAmount, s.Discount, s.TaxAmount,
		s.FinalAmount, s.PaymentMethod, s.Status, s.Notes).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert sale: %w", err)
	}
	return id, nil
}

func (r *pgTxRepository) InsertItems(ctx context.Context, saleID int64, items []SaleItem) error {
	for i := range items {
		it := &items[i]
		err := r.tx.QueryRow(ctx, `
			INSERT INTO sale_items (sale_id, product_id, product_name, quantity,
				unit_price, discount, total_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			saleID, it.ProductID, it.ProductName, it.Quantity,
			it.UnitPrice, it.Discount, it.TotalPrice).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert sale item for product %d: %w", it.ProductID, err)
		}
		it.SaleID = saleID
	}
	return nil
}

func (r *pgTxRepository) GetSaleForUpdate(ctx context.Context, id int64) (*Sale, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id)
	s, err := scanSale(row)
	if err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, r.tx, id)
	if err != nil {
		return nil, err
	}
	s.Items = items
	return s, nil
}

func (r *pgTxRepository) UpdateStatus(ctx context.Context, id int64, status SaleStatus) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE sales SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update sale %d status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *pgTxRepository) DeleteSale(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, id); err != nil {
		return fmt.Errorf("delete sale %d items: %w", id, err)
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sale %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}
