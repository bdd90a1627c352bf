package expenses

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
)

type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Expense, int, error)
	Get(ctx context.Context, id int64) (*Expense, error)
	Create(ctx context.Context, expense Expense) (*Expense, error)
	Update(ctx context.Context, id int64, expense Expense) error
	Delete(ctx context.Context, id int64) error
	SumRange(ctx context.Context, from, to time.Time) (float64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const expenseColumns = "id, category, amount, incurred_at, notes, created_by, created_at, updated_at"

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Expense, int, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM expenses WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Category != "" {
		argCount++
		clause := ` AND category ILIKE $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Category+"%")
	}
	if filters.DateFrom != nil {
		argCount++
		clause := ` AND incurred_at >= $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, *filters.DateFrom)
	}
	if filters.DateTo != nil {
		argCount++
		clause := ` AND incurred_at <= $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, *filters.DateTo)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("expenses: count: %w", err)
	}

	query += ` ORDER BY incurred_at DESC`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("expenses: list: %w", err)
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.Category, &e.Amount, &e.IncurredAt, &e.Notes, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("expenses: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Expense, error) {
	var e Expense
	err := r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id).
		Scan(&e.ID, &e.Category, &e.Amount, &e.IncurredAt, &e.Notes, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: expense", httpx.ErrNotFound)
		}
		return nil, fmt.Errorf("expenses: get: %w", err)
	}
	return &e, nil
}

func (r *repository) Create(ctx context.Context, expense Expense) (*Expense, error) {
	query := `
		INSERT INTO expenses (category, amount, incurred_at, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		expense.Category, expense.Amount, expense.IncurredAt, expense.Notes, expense.CreatedBy).
		Scan(&expense.ID, &expense.CreatedAt, &expense.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("expenses: insert: %w", err)
	}
	return &expense, nil
}

func (r *repository) Update(ctx context.Context, id int64, expense Expense) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE expenses
		SET category = $1, amount = $2, incurred_at = $3, notes = $4, updated_at = NOW()
		WHERE id = $5`,
		expense.Category, expense.Amount, expense.IncurredAt, expense.Notes, id)
	if err != nil {
		return fmt.Errorf("expenses: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expense", httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("expenses: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expense", httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) SumRange(ctx context.Context, from, to time.Time) (float64, error) {
	var sum float64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM expenses
		WHERE incurred_at >= $1 AND incurred_at <= $2`, from, to).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("expenses: sum range: %w", err)
	}
	return sum, nil
}
