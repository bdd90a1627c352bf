package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	SalesSummary(ctx context.Context, from, to time.Time, categoryID int64) (*SalesReport, error)
	LowStockCount(ctx context.Context) (int, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error)
	RecentSales(ctx context.Context, limit int) ([]RecentSale, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) SalesSummary(ctx context.Context, from, to time.Time, categoryID int64) (*SalesReport, error) {
	query := `
		SELECT COUNT(*),
			COALESCE(SUM(s.final_amount), 0),
			COALESCE(SUM(s.discount), 0),
			COALESCE(SUM(s.tax_amount), 0)
		FROM sales s
		WHERE s.status = 'COMPLETED' AND s.created_at >= $1 AND s.created_at <= $2`
	args := []interface{}{from, to}

	if categoryID > 0 {
		query += `
		AND EXISTS (
			SELECT 1 FROM sale_items si
			JOIN products p ON p.id = si.product_id
			WHERE si.sale_id = s.id AND p.category_id = $3
		)`
		args = append(args, categoryID)
	}

	rep := &SalesReport{DateFrom: from, DateTo: to, CategoryID: categoryID}
	err := r.pool.QueryRow(ctx, query, args...).
		Scan(&rep.TotalSales, &rep.TotalRevenue, &rep.TotalDiscount, &rep.TotalTax)
	if err != nil {
		return nil, fmt.Errorf("reports: sales summary: %w", err)
	}
	if rep.TotalSales > 0 {
		rep.AverageSale = rep.TotalRevenue / float64(rep.TotalSales)
	}
	return rep, nil
}

func (r *repository) LowStockCount(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM products
		WHERE is_active = TRUE AND quantity <= min_quantity`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("reports: low stock count: %w", err)
	}
	return count, nil
}

func (r *repository) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT si.product_id, si.product_name, SUM(si.quantity), SUM(si.total_price)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE s.status = 'COMPLETED' AND s.created_at >= $1 AND s.created_at <= $2
		GROUP BY si.product_id, si.product_name
		ORDER BY SUM(si.quantity) DESC
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("reports: top products: %w", err)
	}
	defer rows.Close()

	var out []TopProduct
	for rows.Next() {
		var p TopProduct
		if err := rows.Scan(&p.ProductID, &p.ProductName, &p.QuantitySold, &p.Revenue); err != nil {
			return nil, fmt.Errorf("reports: scan top product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) RecentSales(ctx context.Context, limit int) ([]RecentSale, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, final_amount, payment_method, status, created_at
		FROM sales ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("reports: recent sales: %w", err)
	}
	defer rows.Close()

	var out []RecentSale
	for rows.Next() {
		var s RecentSale
		if err := rows.Scan(&s.ID, &s.FinalAmount, &s.PaymentMethod, &s.Status, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("reports: scan recent sale: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
