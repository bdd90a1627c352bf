package purchasing

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

type stockRow struct {
	quantity  int
	costPrice float64
}

type memRepo struct {
	stock     map[int64]*stockRow
	purchases map[int64]*Purchase
	nextID    int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		stock:     make(map[int64]*stockRow),
		purchases: make(map[int64]*Purchase),
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	tx := &memTx{
		stock:     make(map[int64]*stockRow, len(m.stock)),
		purchases: make(map[int64]*Purchase, len(m.purchases)),
		nextID:    m.nextID,
	}
	for id, row := range m.stock {
		cp := *row
		tx.stock[id] = &cp
	}
	for id, p := range m.purchases {
		cp := *p
		cp.Items = append([]PurchaseItem(nil), p.Items...)
		tx.purchases[id] = &cp
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.stock = tx.stock
	m.purchases = tx.purchases
	m.nextID = tx.nextID
	return nil
}

func (m *memRepo) GetByID(ctx context.Context, id int64) (*Purchase, error) {
	p, ok := m.purchases[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return p, nil
}

func (m *memRepo) List(ctx context.Context, f ListFilters) ([]Purchase, int, error) {
	var out []Purchase
	for _, p := range m.purchases {
		out = append(out, *p)
	}
	return out, len(out), nil
}

type memTx struct {
	stock     map[int64]*stockRow
	purchases map[int64]*Purchase
	nextID    int64
}

func (t *memTx) GetProductQuantityForUpdate(ctx context.Context, productID int64) (int, error) {
	row, ok := t.stock[productID]
	if !ok {
		return 0, httpx.ErrNotFound
	}
	return row.quantity, nil
}

func (t *memTx) AdjustProductStock(ctx context.Context, productID int64, delta int, costPrice *float64) error {
	row, ok := t.stock[productID]
	if !ok {
		return httpx.ErrNotFound
	}
	row.quantity += delta
	if costPrice != nil {
		row.costPrice = *costPrice
	}
	return nil
}

func (t *memTx) InsertPurchase(ctx context.Context, p *Purchase) (int64, error) {
	t.nextID++
	cp := *p
	cp.ID = t.nextID
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	t.purchases[cp.ID] = &cp
	return cp.ID, nil
}

func (t *memTx) InsertItems(ctx context.Context, purchaseID int64, items []PurchaseItem) error {
	p, ok := t.purchases[purchaseID]
	if !ok {
		return httpx.ErrNotFound
	}
	p.Items = append([]PurchaseItem(nil), items...)
	return nil
}

func (t *memTx) GetPurchaseForUpdate(ctx context.Context, id int64) (*Purchase, error) {
	p, ok := t.purchases[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return p, nil
}

func (t *memTx) UpdateStatus(ctx context.Context, id int64, status PurchaseStatus) error {
	p, ok := t.purchases[id]
	if !ok {
		return httpx.ErrNotFound
	}
	p.Status = status
	return nil
}

type fakeSuppliers struct {
	ids map[int64]bool
}

func (f *fakeSuppliers) Exists(ctx context.Context, id int64) error {
	if !f.ids[id] {
		return fmt.Errorf("%w: supplier", httpx.ErrNotFound)
	}
	return nil
}

func newTestService(repo *memRepo) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, &fakeSuppliers{ids: map[int64]bool{1: true}}, nil, logger)
}

func TestCreatePurchaseReceivesStock(t *testing.T) {
	repo := newMemRepo()
	repo.stock[1] = &stockRow{quantity: 5, costPrice: 8.00}
	svc := newTestService(repo)

	purchase, err := svc.Create(context.Background(), 7, CreatePurchaseRequest{
		SupplierID: 1,
		Items:      []CreatePurchaseItemRequest{{ProductID: 1, Quantity: 10, UnitCost: 7.50}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusReceived, purchase.Status)
	require.Equal(t, 75.00, purchase.TotalAmount)

	require.Equal(t, 15, repo.stock[1].quantity)
	require.Equal(t, 7.50, repo.stock[1].costPrice)
}

func TestCreatePurchaseUnknownProduct(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), 7, CreatePurchaseRequest{
		SupplierID: 1,
		Items:      []CreatePurchaseItemRequest{{ProductID: 99, Quantity: 1, UnitCost: 1.00}},
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.Empty(t, repo.purchases)
}

func TestCreatePurchaseUnknownSupplier(t *testing.T) {
	repo := newMemRepo()
	repo.stock[1] = &stockRow{quantity: 5}
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), 7, CreatePurchaseRequest{
		SupplierID: 42,
		Items:      []CreatePurchaseItemRequest{{ProductID: 1, Quantity: 1, UnitCost: 1.00}},
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCancelPurchaseReversesStock(t *testing.T) {
	repo := newMemRepo()
	repo.stock[1] = &stockRow{quantity: 5}
	svc := newTestService(repo)

	purchase, err := svc.Create(context.Background(), 7, CreatePurchaseRequest{
		SupplierID: 1,
		Items:      []CreatePurchaseItemRequest{{ProductID: 1, Quantity: 10, UnitCost: 7.50}},
	})
	require.NoError(t, err)
	require.Equal(t, 15, repo.stock[1].quantity)

	cancelled, err := svc.Cancel(context.Background(), purchase.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Equal(t, 5, repo.stock[1].quantity)
}

func TestCancelPurchaseBlockedWhenStockConsumed(t *testing.T) {
	repo := newMemRepo()
	repo.stock[1] = &stockRow{quantity: 0}
	svc := newTestService(repo)

	purchase, err := svc.Create(context.Background(), 7, CreatePurchaseRequest{
		SupplierID: 1,
		Items:      []CreatePurchaseItemRequest{{ProductID: 1, Quantity: 10, UnitCost: 7.50}},
	})
	require.NoError(t, err)

	// Simulate sales consuming part of the received stock.
	repo.stock[1].quantity = 4

	_, err = svc.Cancel(context.Background(), purchase.ID)
	require.ErrorIs(t, err, ErrStockConsumed)
	require.Equal(t, 4, repo.stock[1].quantity)
	require.Equal(t, StatusReceived, repo.purchases[purchase.ID].Status)
}

func TestCancelPurchaseTwiceFails(t *testing.T) {
	repo := newMemRepo()
	repo.stock[1] = &stockRow{quantity: 0}
	svc := newTestService(repo)

	purchase, err := svc.Create(context.Background(), 7, CreatePurchaseRequest{
		SupplierID: 1,
		Items:      []CreatePurchaseItemRequest{{ProductID: 1, Quantity: 2, UnitCost: 3.00}},
	})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), purchase.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), purchase.ID)
	require.ErrorIs(t, err, ErrPurchaseCancelled)
}
