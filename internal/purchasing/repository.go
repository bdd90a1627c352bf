package purchasing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian-pos/internal/platform/db"
	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetByID(ctx context.Context, id int64) (*Purchase, error)
	List(ctx context.Context, f ListFilters) ([]Purchase, int, error)
}

// TxRepository is the transactional port for receiving and reversing
// stock.
type TxRepository interface {
	GetProductQuantityForUpdate(ctx context.Context, productID int64) (int, error)
	AdjustProductStock(ctx context.Context, productID int64, delta int, costPrice *float64) error
	InsertPurchase(ctx context.Context, p *Purchase) (int64, error)
	InsertItems(ctx context.Context, purchaseID int64, items []PurchaseItem) error
	GetPurchaseForUpdate(ctx context.Context, id int64) (*Purchase, error)
	UpdateStatus(ctx context.Context, id int64, status PurchaseStatus) error
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

const purchaseColumns = `id, supplier_id, created_by, total_amount, status, notes, created_at, updated_at`

func scanPurchase(row pgx.Row) (*Purchase, error) {
	var p Purchase
	err := row.Scan(&p.ID, &p.SupplierID, &p.CreatedBy, &p.TotalAmount, &p.Status,
		&p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("scan purchase: %w", err)
	}
	return &p, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, purchaseID int64) ([]PurchaseItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, purchase_id, product_id, quantity, unit_cost, total_cost
		FROM purchase_items WHERE purchase_id = $1 ORDER BY id`, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("query purchase items: %w", err)
	}
	defer rows.Close()

	var items []PurchaseItem
	for rows.Next() {
		var it PurchaseItem
		if err := rows.Scan(&it.ID, &it.PurchaseID, &it.ProductID, &it.Quantity,
			&it.UnitCost, &it.TotalCost); err != nil {
			return nil, fmt.Errorf("scan purchase item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *pgRepository) GetByID(ctx context.Context, id int64) (*Purchase, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id)
	p, err := scanPurchase(row)
	if err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return p, nil
}

func (r *pgRepository) List(ctx context.Context, f ListFilters) ([]Purchase, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if f.SupplierID > 0 {
		argCount++
		where += fmt.Sprintf(" AND supplier_id = $%d", argCount)
		args = append(args, f.SupplierID)
	}
	if f.Status != "" {
		argCount++
		where += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, f.Status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchases`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count purchases: %w", err)
	}

	query := `SELECT ` + purchaseColumns + ` FROM purchases` + where + ` ORDER BY created_at DESC`
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
		return nil, 0, fmt.Errorf("query purchases: %w", err)
	}
	defer rows.Close()

	var purchases []Purchase
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.SupplierID, &p.CreatedBy, &p.TotalAmount, &p.Status,
			&p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, total, rows.Err()
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) GetProductQuantityForUpdate(ctx context.Context, productID int64) (int, error) {
	var quantity int
	err := r.tx.QueryRow(ctx,
		`SELECT quantity FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&quantity)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, httpx.ErrNotFound
		}
		return 0, fmt.Errorf("lock product %d: %w", productID, err)
	}
	return quantity, nil
}

func (r *pgTxRepository) AdjustProductStock(ctx context.Context, productID int64, delta int, costPrice *float64) error {
	var tag pgconn.CommandTag
	var err error
	if costPrice != nil {
		tag, err = r.tx.Exec(ctx, `
			UPDATE products SET quantity = quantity + $1, cost_price = $2, updated_at = NOW()
			WHERE id = $3`, delta, *costPrice, productID)
	} else {
		tag, err = r.tx.Exec(ctx, `
			UPDATE products SET quantity = quantity + $1, updated_at = NOW()
			WHERE id = $2`, delta, productID)
	}
	if err != nil {
		return fmt.Errorf("adjust product %d stock: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *pgTxRepository) InsertPurchase(ctx context.Context, p *Purchase) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO purchases (supplier_id, created_by, total_amount, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id`,
		p.SupplierID, p.CreatedBy, p.TotalAmount, p.Status, p.Notes).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert purchase: %w", err)
	}
	return id, nil
}

func (r *pgTxRepository) InsertItems(ctx context.Context, purchaseID int64, items []PurchaseItem) error {
	for i := range items {
		it := &items[i]
		err := r.tx.QueryRow(ctx, `
			INSERT INTO purchase_items (purchase_id, product_id, quantity, unit_cost, total_cost)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			purchaseID, it.ProductID, it.Quantity, it.UnitCost, it.TotalCost).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert purchase item for product %d: %w", it.ProductID, err)
		}
		it.PurchaseID = purchaseID
	}
	return nil
}

func (r *pgTxRepository) GetPurchaseForUpdate(ctx context.Context, id int64) (*Purchase, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1 FOR UPDATE`, id)
	p, err := scanPurchase(row)
	if err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, r.tx, id)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return p, nil
}

func (r *pgTxRepository) UpdateStatus(ctx context.Context, id int64, status PurchaseStatus) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE purchases SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update purchase %d status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}
