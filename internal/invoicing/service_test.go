package invoicing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
)

type memRepo struct {
	invoices map[int64]*Invoice
	nextID   int64

	// failNumberInserts makes the first n inserts fail with a unique
	// violation on the invoice number, simulating a lost allocation race.
	failNumberInserts int
}

func newMemRepo() *memRepo {
	return &memRepo{invoices: make(map[int64]*Invoice)}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	tx := &memTx{
		invoices: make(map[int64]*Invoice, len(m.invoices)),
		nextID:   m.nextID,
		repo:     m,
	}
	for id, inv := range m.invoices {
		cp := *inv
		cp.Items = append([]InvoiceItem(nil), inv.Items...)
		tx.invoices[id] = &cp
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.invoices = tx.invoices
	m.nextID = tx.nextID
	return nil
}

func (m *memRepo) GetByID(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return inv, nil
}

func (m *memRepo) List(ctx context.Context, f ListFilters) ([]Invoice, int, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (m *memRepo) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByStatus: make(map[InvoiceStatus]int)}
	for _, inv := range m.invoices {
		stats.ByStatus[inv.Status]++
		if inv.Status != StatusCancelled {
			stats.TotalAmount += inv.TotalAmount
		}
		switch inv.Status {
		case StatusPaid:
			stats.PaidAmount += inv.TotalAmount
		case StatusUnpaid, StatusPartiallyPaid, StatusOverdue:
			stats.UnpaidAmount += inv.TotalAmount
		}
	}
	return stats, nil
}

func (m *memRepo) Overdue(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if (inv.Status == StatusUnpaid || inv.Status == StatusPartiallyPaid) && inv.DueDate.Before(asOf) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

type memTx struct {
	invoices map[int64]*Invoice
	nextID   int64
	repo     *memRepo
}

func (t *memTx) NextSequence(ctx context.Context, prefix string) (int, error) {
	max := 0
	for _, inv := range t.invoices {
		if !strings.HasPrefix(inv.InvoiceNumber, prefix+"-") {
			continue
		}
		seq, err := strconv.Atoi(strings.TrimPrefix(inv.InvoiceNumber, prefix+"-"))
		if err != nil {
			return 0, err
		}
		if seq > max {
			max = seq
		}
	}
	return max + 1, nil
}

func (t *memTx) SaleInvoiced(ctx context.Context, saleID int64) (bool, error) {
	for _, inv := range t.invoices {
		if inv.SaleID != nil && *inv.SaleID == saleID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertInvoice(ctx context.Context, inv *Invoice) (int64, error) {
	if t.repo.failNumberInserts > 0 {
		t.repo.failNumberInserts--
		return 0, fmt.Errorf("insert invoice: %w", &pgconn.PgError{
			Code:           "23505",
			ConstraintName: "invoices_invoice_number_key",
		})
	}
	for _, existing := range t.invoices {
		if existing.InvoiceNumber == inv.InvoiceNumber {
			return 0, fmt.Errorf("insert invoice: %w", &pgconn.PgError{
				Code:           "23505",
				ConstraintName: "invoices_invoice_number_key",
			})
		}
	}
	t.nextID++
	cp := *inv
	cp.ID = t.nextID
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	t.invoices[cp.ID] = &cp
	return cp.ID, nil
}

func (t *memTx) InsertItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error {
	inv, ok := t.invoices[invoiceID]
	if !ok {
		return httpx.ErrNotFound
	}
	inv.Items = append([]InvoiceItem(nil), items...)
	return nil
}

func (t *memTx) GetInvoiceForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := t.invoices[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return inv, nil
}

func (t *memTx) UpdateStatus(ctx context.Context, id int64, status InvoiceStatus, paidDate *time.Time) error {
	inv, ok := t.invoices[id]
	if !ok {
		return httpx.ErrNotFound
	}
	inv.Status = status
	inv.PaidDate = paidDate
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
	svc := NewService(repo, &fakeCustomers{ids: map[int64]bool{1: true}}, logger)
	svc.now = func() time.Time {
		return time.Date(2024, 12, 15, 10, 0, 0, 0, time.UTC)
	}
	return svc
}

func validRequest() CreateInvoiceRequest {
	return CreateInvoiceRequest{
		CustomerID: 1,
		Items: []CreateInvoiceItemRequest{
			{Description: "Espresso Beans 1kg", Quantity: 2, UnitPrice: 12.50},
		},
		DueDate: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateInvoiceNumberSequence(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	first, err := svc.Create(context.Background(), 7, validRequest())
	require.NoError(t, err)
	require.Equal(t, "INV-202412-0001", first.InvoiceNumber)
	require.Equal(t, StatusUnpaid, first.Status)

	second, err := svc.Create(context.Background(), 7, validRequest())
	require.NoError(t, err)
	require.Equal(t, "INV-202412-0002", second.InvoiceNumber)
}

func TestCreateInvoiceNumberGrowsPastPadWidth(t *testing.T) {
	repo := newMemRepo()
	repo.invoices[1] = &Invoice{ID: 1, InvoiceNumber: "INV-202412-9999", Status: StatusUnpaid}
	repo.nextID = 1
	svc := newTestService(repo)

	inv, err := svc.Create(context.Background(), 7, validRequest())
	require.NoError(t, err)
	require.Equal(t, "INV-202412-10000", inv.InvoiceNumber)

	next, err := svc.Create(context.Background(), 7, validRequest())
	require.NoError(t, err)
	require.Equal(t, "INV-202412-10001", next.InvoiceNumber)
}

func TestCreateInvoiceTotals(t *testing.T) {
	svc := newTestService(newMemRepo())

	req := CreateInvoiceRequest{
		CustomerID: 1,
		Items: []CreateInvoiceItemRequest{
			{Description: "Beans", Quantity: 2, UnitPrice: 10.00, Discount: 1.00},
			{Description: "Mugs", Quantity: 3, UnitPrice: 5.00},
		},
		DueDate:   time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Discount:  4.00,
		TaxAmount: 2.00,
	}
	inv, err := svc.Create(context.Background(), 7, req)
	require.NoError(t, err)
	require.Equal(t, 35.00, inv.Subtotal)
	require.Equal(t, 5.00, inv.Discount)
	require.Equal(t, 32.00, inv.TotalAmount)
	require.Len(t, inv.Items, 2)
	require.Equal(t, 19.00, inv.Items[0].TotalPrice)
}

func TestCreateInvoiceRetriesOnNumberRace(t *testing.T) {
	repo := newMemRepo()
	repo.failNumberInserts = 1
	svc := newTestService(repo)

	inv, err := svc.Create(context.Background(), 7, validRequest())
	require.NoError(t, err)
	require.Equal(t, "INV-202412-0001", inv.InvoiceNumber)
}

func TestCreateInvoiceGivesUpAfterBoundedRetries(t *testing.T) {
	repo := newMemRepo()
	repo.failNumberInserts = numberRetries
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), 7, validRequest())
	require.Error(t, err)
	require.Contains(t, err.Error(), "allocate invoice number")
}

func TestCreateInvoiceSaleUniqueness(t *testing.T) {
	svc := newTestService(newMemRepo())

	saleID := int64(9)
	req := validRequest()
	req.SaleID = &saleID

	_, err := svc.Create(context.Background(), 7, req)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), 7, req)
	require.ErrorIs(t, err, ErrSaleAlreadyInvoiced)
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestCreateInvoiceUnknownCustomer(t *testing.T) {
	svc := newTestService(newMemRepo())

	req := validRequest()
	req.CustomerID = 42
	_, err := svc.Create(context.Background(), 7, req)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestUpdateStatusPaidPersistsDate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	inv, err := svc.Create(context.Background(), 7, validRequest())
	require.NoError(t, err)

	paid := time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)
	updated, err := svc.UpdateStatus(context.Background(), inv.ID, UpdateStatusRequest{
		Status:   StatusPaid,
		PaidDate: &paid,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, updated.Status)
	require.NotNil(t, updated.PaidDate)
	require.True(t, updated.PaidDate.Equal(paid))
}

func TestUpdateStatusPaidDefaultsDate(t *testing.T) {
	svc := newTestService(newMemRepo())

	inv, err := svc.Create(context.Background(), 7, validRequest())
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), inv.ID, UpdateStatusRequest{Status: StatusPaid})
	require.NoError(t, err)
	require.NotNil(t, updated.PaidDate)
}

func TestUpdateStatusCancelledIsTerminal(t *testing.T) {
	svc := newTestService(newMemRepo())

	inv, err := svc.Create(context.Background(), 7, validRequest())
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), inv.ID)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), inv.ID, UpdateStatusRequest{Status: StatusUnpaid})
	require.ErrorIs(t, err, ErrInvoiceCancelled)
}

func TestCancelPaidInvoiceFails(t *testing.T) {
	svc := newTestService(newMemRepo())

	inv, err := svc.Create(context.Background(), 7, validRequest())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), inv.ID, UpdateStatusRequest{Status: StatusPaid})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), inv.ID)
	require.ErrorIs(t, err, ErrInvoicePaid)
}

func TestOverdueListsOpenPastDue(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	pastDue := validRequest()
	pastDue.DueDate = time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	late, err := svc.Create(context.Background(), 7, pastDue)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), 7, validRequest())
	require.NoError(t, err)

	overdue, err := svc.Overdue(context.Background())
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, late.ID, overdue[0].ID)
}

func TestStatsSplitsPaidAndUnpaid(t *testing.T) {
	svc := newTestService(newMemRepo())

	first, err := svc.Create(context.Background(), 7, validRequest())
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), 7, validRequest())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), first.ID, UpdateStatusRequest{Status: StatusPaid})
	require.NoError(t, err)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.ByStatus[StatusPaid])
	require.Equal(t, 1, stats.ByStatus[StatusUnpaid])
	require.Equal(t, 25.00, stats.PaidAmount)
	require.Equal(t, 25.00, stats.UnpaidAmount)
	require.Equal(t, 50.00, stats.TotalAmount)
}
