package invoicing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-pos/meridian-pos/internal/platform/db"
	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// CustomerChecker verifies customer references.
type CustomerChecker interface {
	Exists(ctx context.Context, id int64) error
}

// numberRetries bounds how many times creation retries after losing an
// invoice-number race to a concurrent transaction.
const numberRetries = 3

type Service struct {
	repo      Repository
	customers CustomerChecker
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, customers CustomerChecker, logger *slog.Logger) *Service {
	return &Service{repo: repo, customers: customers, logger: logger, now: time.Now}
}

// Create allocates the next invoice number in the current month bucket
// and writes the invoice with an independent copy of its lines. Two
// transactions racing for the same number serialize on the bucket's row
// lock; if both read an empty bucket the unique index rejects the loser
// and the loser retries with a fresh number.
func (s *Service) Create(ctx context.Context, userID int64, req CreateInvoiceRequest) (*Invoice, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := s.customers.Exists(ctx, req.CustomerID); err != nil {
		return nil, fmt.Errorf("customer %d: %w", req.CustomerID, err)
	}

	inv := &Invoice{
		SaleID:     req.SaleID,
		CustomerID: req.CustomerID,
		IssuedBy:   userID,
		Discount:   req.Discount,
		TaxAmount:  req.TaxAmount,
		Status:     StatusUnpaid,
		DueDate:    req.DueDate,
		Notes:      req.Notes,
	}

	lines := make([]InvoiceItem, 0, len(req.Items))
	for _, item := range req.Items {
		gross := float64(item.Quantity) * item.UnitPrice
		lineTotal := gross - item.Discount
		if lineTotal < 0 {
			return nil, fmt.Errorf("%w: discount exceeds line total for %q", httpx.ErrValidation, item.Description)
		}
		lines = append(lines, InvoiceItem{
			ProductID:   item.ProductID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Discount:    item.Discount,
			TotalPrice:  lineTotal,
		})
		// Subtotal stays gross; item discounts accumulate into the
		// invoice-level discount figure.
		inv.Subtotal += gross
		inv.Discount += item.Discount
	}
	inv.TotalAmount = inv.Subtotal - inv.Discount + inv.TaxAmount
	if inv.TotalAmount < 0 {
		return nil, fmt.Errorf("%w: discount exceeds invoice subtotal", httpx.ErrValidation)
	}

	bucket := s.now()
	prefix := fmt.Sprintf("INV-%s", bucket.Format("200601"))

	var lastErr error
	for attempt := 0; attempt < numberRetries; attempt++ {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if req.SaleID != nil {
				invoiced, err := tx.SaleInvoiced(ctx, *req.SaleID)
				if err != nil {
					return err
				}
				if invoiced {
					return fmt.Errorf("sale %d: %w", *req.SaleID, ErrSaleAlreadyInvoiced)
				}
			}

			seq, err := tx.NextSequence(ctx, prefix)
			if err != nil {
				return err
			}
			inv.InvoiceNumber = FormatNumber(bucket, seq)

			id, err := tx.InsertInvoice(ctx, inv)
			if err != nil {
				return err
			}
			inv.ID = id
			if err := tx.InsertItems(ctx, id, lines); err != nil {
				return err
			}
			inv.Items = lines
			return nil
		})
		if err == nil {
			s.logger.InfoContext(ctx, "invoice created",
				slog.Int64("invoice_id", inv.ID),
				slog.String("invoice_number", inv.InvoiceNumber))
			return inv, nil
		}
		if db.IsUniqueViolation(err, "invoices_sale_id_key") {
			return nil, fmt.Errorf("sale %d: %w", *req.SaleID, ErrSaleAlreadyInvoiced)
		}
		if db.IsUniqueViolation(err, "invoices_invoice_number_key") {
			lastErr = err
			s.logger.WarnContext(ctx, "invoice number race lost, retrying",
				slog.String("invoice_number", inv.InvoiceNumber),
				slog.Int("attempt", attempt+1))
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("allocate invoice number after %d attempts: %w", numberRetries, lastErr)
}

// UpdateStatus transitions an invoice. CANCELLED is terminal. A PAID
// transition records the supplied paid date, defaulting to now.
func (s *Service) UpdateStatus(ctx context.Context, id int64, req UpdateStatusRequest) (*Invoice, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, req.Status)
	}

	var inv *Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("invoice %d: %w", id, err)
		}
		if current.Status == StatusCancelled {
			return ErrInvoiceCancelled
		}

		paidDate := current.PaidDate
		if req.Status == StatusPaid {
			paidDate = req.PaidDate
			if paidDate == nil {
				now := s.now()
				paidDate = &now
			}
		}
		if err := tx.UpdateStatus(ctx, id, req.Status, paidDate); err != nil {
			return err
		}
		current.Status = req.Status
		current.PaidDate = paidDate
		inv = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "invoice status updated",
		slog.Int64("invoice_id", id), slog.String("status", string(req.Status)))
	return inv, nil
}

// Cancel soft-cancels an invoice. PAID invoices cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id int64) (*Invoice, error) {
	var inv *Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("invoice %d: %w", id, err)
		}
		switch current.Status {
		case StatusPaid:
			return ErrInvoicePaid
		case StatusCancelled:
			return ErrInvoiceCancelled
		}
		if err := tx.UpdateStatus(ctx, id, StatusCancelled, current.PaidDate); err != nil {
			return err
		}
		current.Status = StatusCancelled
		inv = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "invoice cancelled", slog.Int64("invoice_id", id))
	return inv, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("invoice %d: %w", id, err)
	}
	return inv, nil
}

func (s *Service) List(ctx context.Context, f ListFilters) ([]Invoice, int, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

// Overdue lists open invoices past their due date. This is a read-only
// sweep; nothing mutates the stored status.
func (s *Service) Overdue(ctx context.Context) ([]Invoice, error) {
	return s.repo.Overdue(ctx, s.now())
}
