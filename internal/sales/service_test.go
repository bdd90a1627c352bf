package sales

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
)

type memRepo struct {
	products map[int64]*ProductSnapshot
	sales    map[int64]*Sale
	nextID   int64
}

func newMemRepo(products ...*ProductSnapshot) *memRepo {
	m := &memRepo{
		products: make(map[int64]*ProductSnapshot),
		sales:    make(map[int64]*Sale),
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

// WithTx gives the callback a copy of the store and commits it back only
// when the callback succeeds, mirroring transactional all-or-nothing.
func (m *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	tx := &memTx{
		products: make(map[int64]*ProductSnapshot, len(m.products)),
		sales:    make(map[int64]*Sale, len(m.sales)),
		nextID:   m.nextID,
	}
	for id, p := range m.products {
		cp := *p
		tx.products[id] = &cp
	}
	for id, s := range m.sales {
		cp := *s
		cp.Items = append([]SaleItem(nil), s.Items...)
		tx.sales[id] = &cp
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.products = tx.products
	m.sales = tx.sales
	m.nextID = tx.nextID
	return nil
}

func (m *memRepo) GetByID(ctx context.Context, id int64) (*Sale, error) {
	s, ok := m.sales[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return s, nil
}

func (m *memRepo) List(ctx context.Context, f ListFilters) ([]Sale, int, error) {
	var out []Sale
	for _, s := range m.sales {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *memRepo) Report(ctx context.Context, from, to time.Time) (*Report, error) {
	rep := &Report{ByPaymentMethod: make(map[PaymentMethod]int)}
	for _, s := range m.sales {
		if s.Status != SaleStatusCompleted || s.CreatedAt.Before(from) || s.CreatedAt.After(to) {
			continue
		}
		rep.TotalSales++
		rep.TotalRevenue += s.FinalAmount
		rep.TotalDiscount += s.Discount
		rep.TotalTax += s.TaxAmount
		rep.ByPaymentMethod[s.PaymentMethod]++
	}
	if rep.TotalSales > 0 {
		rep.AverageSale = rep.TotalRevenue / float64(rep.TotalSales)
	}
	return rep, nil
}

type memTx struct {
	products map[int64]*ProductSnapshot
	sales    map[int64]*Sale
	nextID   int64
}

func (t *memTx) GetProductForUpdate(ctx context.Context, productID int64) (*ProductSnapshot, error) {
	p, ok := t.products[productID]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) AdjustProductQuantity(ctx context.Context, productID int64, delta int) error {
	p, ok := t.products[productID]
	if !ok {
		return httpx.ErrNotFound
	}
	p.Quantity += delta
	return nil
}

func (t *memTx) InsertSale(ctx context.Context, s *Sale) (int64, error) {
	t.nextID++
	cp := *s
	cp.ID = t.nextID
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	t.sales[cp.ID] = &cp
	return cp.ID, nil
}

func (t *memTx) InsertItems(ctx context.Context, saleID int64, items []SaleItem) error {
	s, ok := t.sales[saleID]
	if !ok {
		return httpx.ErrNotFound
	}
	for i := range items {
		items[i].SaleID = saleID
		items[i].ID = int64(i + 1)
	}
	s.Items = append([]SaleItem(nil), items...)
	return nil
}

func (t *memTx) GetSaleForUpdate(ctx context.Context, id int64) (*Sale, error) {
	s, ok := t.sales[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return s, nil
}

func (t *memTx) UpdateStatus(ctx context.Context, id int64, status SaleStatus) error {
	s, ok := t.sales[id]
	if !ok {
		return httpx.ErrNotFound
	}
	s.Status = status
	return nil
}

func (t *memTx) DeleteSale(ctx context.Context, id int64) error {
	if _, ok := t.sales[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(t.sales, id)
	return nil
}

type fakeCustomers struct {
	ids map[int64]bool
}

func (f *fakeCustomers) Exists(ctx context.Context, id int64) error {
	if !f.ids[id] {
		return fmt.Errorf("%w: customer", httpx.ErrNotFound)
	}
	return nil
}

func newTestService(repo *memRepo) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, &fakeCustomers{ids: map[int64]bool{1: true}}, nil, logger)
}

func TestCreateSaleDecrementsStock(t *testing.T) {
	repo := newMemRepo(&ProductSnapshot{ID: 1, Name: "Espresso Beans", Price: 12.50, Quantity: 10, IsActive: true})
	svc := newTestService(repo)

	sale, err := svc.Create(context.Background(), 7, CreateSaleRequest{
		Items:         []CreateSaleItemRequest{{ProductID: 1, Quantity: 3}},
		PaymentMethod: PaymentCash,
		Discount:      2.50,
		TaxAmount:     1.00,
	})
	require.NoError(t, err)
	require.Equal(t, SaleStatusCompleted, sale.Status)
	require.Equal(t, int64(7), sale.CreatedBy)
	require.Len(t, sale.Items, 1)
	require.Equal(t, 12.50, sale.Items[0].UnitPrice)
	require.Equal(t, 37.50, sale.TotalAmount)
	require.Equal(t, 36.00, sale.FinalAmount)

	require.Equal(t, 7, repo.products[1].Quantity)
}

func TestCreateSaleInsufficientStock(t *testing.T) {
	repo := newMemRepo(&ProductSnapshot{ID: 1, Name: "Filter Paper", Price: 3.00, Quantity: 2, IsActive: true})
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), 7, CreateSaleRequest{
		Items:         []CreateSaleItemRequest{{ProductID: 1, Quantity: 5}},
		PaymentMethod: PaymentCash,
	})
	require.Error(t, err)
	require.True(t, IsInsufficientStock(err))
	require.Contains(t, err.Error(), "Filter Paper")

	require.Equal(t, 2, repo.products[1].Quantity)
}

func TestCreateSaleFailureLeavesAllStockUntouched(t *testing.T) {
	repo := newMemRepo(
		&ProductSnapshot{ID: 1, Name: "Mug", Price: 8.00, Quantity: 10, IsActive: true},
		&ProductSnapshot{ID: 2, Name: "Saucer", Price: 4.00, Quantity: 1, IsActive: true},
	)
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), 7, CreateSaleRequest{
		Items: []CreateSaleItemRequest{
			{ProductID: 1, Quantity: 4},
			{ProductID: 2, Quantity: 3},
		},
		PaymentMethod: PaymentCard,
	})
	require.Error(t, err)
	require.True(t, IsInsufficientStock(err))

	require.Equal(t, 10, repo.products[1].Quantity)
	require.Equal(t, 1, repo.products[2].Quantity)
	require.Empty(t, repo.sales)
}

func TestCreateSaleInactiveProduct(t *testing.T) {
	repo := newMemRepo(&ProductSnapshot{ID: 1, Name: "Discontinued Blend", Price: 9.00, Quantity: 50, IsActive: false})
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), 7, CreateSaleRequest{
		Items:         []CreateSaleItemRequest{{ProductID: 1, Quantity: 1}},
		PaymentMethod: PaymentCash,
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Equal(t, 50, repo.products[1].Quantity)
}

func TestCreateSaleUnknownProduct(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), 7, CreateSaleRequest{
		Items:         []CreateSaleItemRequest{{ProductID: 99, Quantity: 1}},
		PaymentMethod: PaymentCash,
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCreateSaleUnknownCustomer(t *testing.T) {
	repo := newMemRepo(&ProductSnapshot{ID: 1, Name: "Mug", Price: 8.00, Quantity: 10, IsActive: true})
	svc := newTestService(repo)

	missing := int64(42)
	_, err := svc.Create(context.Background(), 7, CreateSaleRequest{
		Items:         []CreateSaleItemRequest{{ProductID: 1, Quantity: 1}},
		PaymentMethod: PaymentCash,
		CustomerID:    &missing,
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.Equal(t, 10, repo.products[1].Quantity)
}

func TestCreateSaleEmptyItems(t *testing.T) {
	svc := newTestService(newMemRepo())

	_, err := svc.Create(context.Background(), 7, CreateSaleRequest{
		Items:         nil,
		PaymentMethod: PaymentCash,
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateSaleDiscountExceedsTotal(t *testing.T) {
	repo := newMemRepo(&ProductSnapshot{ID: 1, Name: "Mug", Price: 8.00, Quantity: 10, IsActive: true})
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), 7, CreateSaleRequest{
		Items:         []CreateSaleItemRequest{{ProductID: 1, Quantity: 1}},
		PaymentMethod: PaymentCash,
		Discount:      100.00,
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Equal(t, 10, repo.products[1].Quantity)
}

func TestCancelSaleRestoresStock(t *testing.T) {
	repo := newMemRepo(&ProductSnapshot{ID: 1, Name: "Espresso Beans", Price: 12.50, Quantity: 10, IsActive: true})
	svc := newTestService(repo)

	sale, err := svc.Create(context.Background(), 7, CreateSaleRequest{
		Items:         []CreateSaleItemRequest{{ProductID: 1, Quantity: 3}},
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)
	require.Equal(t, 7, repo.products[1].Quantity)

	cancelled, err := svc.Cancel(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Equal(t, SaleStatusCancelled, cancelled.Status)
	require.Equal(t, 10, repo.products[1].Quantity)
}

func TestCancelSaleTwiceFails(t *testing.T) {
	repo := newMemRepo(&ProductSnapshot{ID: 1, Name: "Espresso Beans", Price: 12.50, Quantity: 10, IsActive: true})
	svc := newTestService(repo)

	sale, err := svc.Create(context.Background(), 7, CreateSaleRequest{
		Items:         []CreateSaleItemRequest{{ProductID: 1, Quantity: 3}},
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), sale.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), sale.ID)
	require.ErrorIs(t, err, ErrSaleCancelled)
	require.Equal(t, 10, repo.products[1].Quantity)
}

func TestRemoveSaleRestoresStock(t *testing.T) {
	repo := newMemRepo(&ProductSnapshot{ID: 1, Name: "Mug", Price: 8.00, Quantity: 5, IsActive: true})
	svc := newTestService(repo)

	sale, err := svc.Create(context.Background(), 7, CreateSaleRequest{
		Items:         []CreateSaleItemRequest{{ProductID: 1, Quantity: 2}},
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)
	require.Equal(t, 3, repo.products[1].Quantity)

	require.NoError(t, svc.Remove(context.Background(), sale.ID))
	require.Equal(t, 5, repo.products[1].Quantity)

	_, err = svc.Get(context.Background(), sale.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestRemoveCancelledSaleDoesNotRestoreTwice(t *testing.T) {
	repo := newMemRepo(&ProductSnapshot{ID: 1, Name: "Mug", Price: 8.00, Quantity: 5, IsActive: true})
	svc := newTestService(repo)

	sale, err := svc.Create(context.Background(), 7, CreateSaleRequest{
		Items:         []CreateSaleItemRequest{{ProductID: 1, Quantity: 2}},
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Equal(t, 5, repo.products[1].Quantity)

	require.NoError(t, svc.Remove(context.Background(), sale.ID))
	require.Equal(t, 5, repo.products[1].Quantity)
}

func TestGetReportRejectsInvertedRange(t *testing.T) {
	svc := newTestService(newMemRepo())

	from := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.GetReport(context.Background(), from, to)
	require.ErrorIs(t, err, httpx.ErrValidation)
}
