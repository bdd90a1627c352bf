package reports

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/meridian-pos/meridian-pos/internal/platform/cache"
	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
)

// ExpenseSummer feeds the dashboard's expense total.
type ExpenseSummer interface {
	TotalBetween(ctx context.Context, from, to time.Time) (float64, error)
}

const (
	topProductLimit = 5
	recentSaleLimit = 5
)

// Service serves read-only aggregates. Results are cached under
// versioned keys; mutating modules bump the version so the next read
// recomputes.
type Service struct {
	repo     Repository
	expenses ExpenseSummer
	cache    *cache.Cache
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, expenses ExpenseSummer, c *cache.Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, expenses: expenses, cache: c, logger: logger, now: time.Now}
}

// SalesReport aggregates COMPLETED sales, optionally narrowed to sales
// containing a product of the given category.
func (s *Service) SalesReport(ctx context.Context, from, to time.Time, categoryID int64) (*SalesReport, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end date before start date", httpx.ErrValidation)
	}

	key, err := s.cache.BuildKey(ctx, "reports", "sales",
		from.Format("20060102"), to.Format("20060102"), strconv.FormatInt(categoryID, 10))
	if err != nil {
		s.logger.WarnContext(ctx, "cache key build failed", slog.String("error", err.Error()))
		return s.repo.SalesSummary(ctx, from, to, categoryID)
	}

	var rep SalesReport
	err = s.cache.FetchJSON(ctx, key, &rep, func(ctx context.Context) (interface{}, error) {
		return s.repo.SalesSummary(ctx, from, to, categoryID)
	})
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// Dashboard assembles the operational snapshot: today's and this
// month's revenue and counts, month expenses, low stock, top sellers
// and recent sales.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.now()
	key, err := s.cache.BuildKey(ctx, "reports", "dashboard", now.Format("20060102"))
	if err != nil {
		s.logger.WarnContext(ctx, "cache key build failed", slog.String("error", err.Error()))
		return s.buildDashboard(ctx, now)
	}

	var dash Dashboard
	err = s.cache.FetchJSON(ctx, key, &dash, func(ctx context.Context) (interface{}, error) {
		return s.buildDashboard(ctx, now)
	})
	if err != nil {
		return nil, err
	}
	return &dash, nil
}

func (s *Service) buildDashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	today, err := s.repo.SalesSummary(ctx, todayStart, now, 0)
	if err != nil {
		return nil, err
	}
	month, err := s.repo.SalesSummary(ctx, monthStart, now, 0)
	if err != nil {
		return nil, err
	}
	monthExpenses, err := s.expenses.TotalBetween(ctx, monthStart, now)
	if err != nil {
		return nil, err
	}
	lowStock, err := s.repo.LowStockCount(ctx)
	if err != nil {
		return nil, err
	}
	topProducts, err := s.repo.TopProducts(ctx, monthStart, now, topProductLimit)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.RecentSales(ctx, recentSaleLimit)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		TodayRevenue:  today.TotalRevenue,
		TodaySales:    today.TotalSales,
		MonthRevenue:  month.TotalRevenue,
		MonthSales:    month.TotalSales,
		MonthExpenses: monthExpenses,
		LowStockCount: lowStock,
		TopProducts:   topProducts,
		RecentSales:   recent,
		GeneratedAt:   now,
	}, nil
}
