package reports

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
)

// memSale is a completed-or-not sale with the category ids its items
// resolve to, enough to model the summary queries.
type memSale struct {
	id          int64
	finalAmount float64
	discount    float64
	taxAmount   float64
	status      string
	createdAt   time.Time
	categoryIDs []int64
}

type memRepo struct {
	sales    []memSale
	lowStock int
	top      []TopProduct
}

func (m *memRepo) SalesSummary(ctx context.Context, from, to time.Time, categoryID int64) (*SalesReport, error) {
	rep := &SalesReport{DateFrom: from, DateTo: to, CategoryID: categoryID}
	for _, s := range m.sales {
		if s.status != "COMPLETED" || s.createdAt.Before(from) || s.createdAt.After(to) {
			continue
		}
		if categoryID > 0 && !containsCategory(s.categoryIDs, categoryID) {
			continue
		}
		rep.TotalSales++
		rep.TotalRevenue += s.finalAmount
		rep.TotalDiscount += s.discount
		rep.TotalTax += s.taxAmount
	}
	if rep.TotalSales > 0 {
		rep.AverageSale = rep.TotalRevenue / float64(rep.TotalSales)
	}
	return rep, nil
}

func (m *memRepo) LowStockCount(ctx context.Context) (int, error) {
	return m.lowStock, nil
}

func (m *memRepo) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error) {
	if len(m.top) > limit {
		return m.top[:limit], nil
	}
	return m.top, nil
}

func (m *memRepo) RecentSales(ctx context.Context, limit int) ([]RecentSale, error) {
	out := make([]RecentSale, 0, limit)
	for i := len(m.sales) - 1; i >= 0 && len(out) < limit; i-- {
		s := m.sales[i]
		out = append(out, RecentSale{ID: s.id, FinalAmount: s.finalAmount, Status: s.status, CreatedAt: s.createdAt})
	}
	return out, nil
}

func containsCategory(ids []int64, want int64) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}

type fakeExpenses struct {
	total float64
	err   error
}

func (f *fakeExpenses) TotalBetween(ctx context.Context, from, to time.Time) (float64, error) {
	return f.total, f.err
}

func newTestService(repo *memRepo, expenses *fakeExpenses) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, expenses, nil, logger)
	svc.now = func() time.Time {
		return time.Date(2024, 12, 15, 10, 0, 0, 0, time.UTC)
	}
	return svc
}

func seededRepo() *memRepo {
	at := time.Date(2024, 12, 10, 9, 0, 0, 0, time.UTC)
	return &memRepo{
		sales: []memSale{
			{id: 1, finalAmount: 20.00, discount: 2.00, status: "COMPLETED", createdAt: at, categoryIDs: []int64{1}},
			{id: 2, finalAmount: 10.00, status: "COMPLETED", createdAt: at, categoryIDs: []int64{2}},
			{id: 3, finalAmount: 15.00, taxAmount: 1.00, status: "COMPLETED", createdAt: at, categoryIDs: []int64{1, 2}},
			{id: 4, finalAmount: 50.00, status: "CANCELLED", createdAt: at, categoryIDs: []int64{1}},
		},
	}
}

func TestSalesReportFiltersByCategory(t *testing.T) {
	svc := newTestService(seededRepo(), &fakeExpenses{})
	from := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	rep, err := svc.SalesReport(context.Background(), from, to, 1)
	require.NoError(t, err)
	require.Equal(t, 2, rep.TotalSales)
	require.Equal(t, 35.00, rep.TotalRevenue)
	require.Equal(t, 17.50, rep.AverageSale)

	// No filter counts every completed sale, cancelled ones never count.
	all, err := svc.SalesReport(context.Background(), from, to, 0)
	require.NoError(t, err)
	require.Equal(t, 3, all.TotalSales)
	require.Equal(t, 45.00, all.TotalRevenue)
}

func TestSalesReportUnmatchedCategoryIsEmpty(t *testing.T) {
	svc := newTestService(seededRepo(), &fakeExpenses{})
	from := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	rep, err := svc.SalesReport(context.Background(), from, to, 99)
	require.NoError(t, err)
	require.Equal(t, 0, rep.TotalSales)
	require.Equal(t, 0.00, rep.TotalRevenue)
	require.Equal(t, 0.00, rep.AverageSale)
}

func TestSalesReportRejectsInvertedRange(t *testing.T) {
	svc := newTestService(seededRepo(), &fakeExpenses{})
	from := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.SalesReport(context.Background(), from, to, 0)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDashboardAssemblesSnapshot(t *testing.T) {
	repo := seededRepo()
	repo.lowStock = 2
	repo.top = []TopProduct{{ProductID: 1, ProductName: "House Blend Beans 250g", QuantitySold: 12, Revenue: 150.00}}
	svc := newTestService(repo, &fakeExpenses{total: 30.00})

	dash, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	// Seeded sales all fall earlier in the month, so today is empty.
	require.Equal(t, 0, dash.TodaySales)
	require.Equal(t, 0.00, dash.TodayRevenue)
	require.Equal(t, 3, dash.MonthSales)
	require.Equal(t, 45.00, dash.MonthRevenue)
	require.Equal(t, 30.00, dash.MonthExpenses)
	require.Equal(t, 2, dash.LowStockCount)
	require.Len(t, dash.TopProducts, 1)
	require.Len(t, dash.RecentSales, 4)
}

func TestDashboardPropagatesExpenseFailure(t *testing.T) {
	svc := newTestService(seededRepo(), &fakeExpenses{err: errors.New("expenses down")})

	_, err := svc.Dashboard(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "expenses down")
}
