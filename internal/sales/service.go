package sales

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// CustomerChecker verifies customer references without coupling the sale
// engine to the customers package.
type CustomerChecker interface {
	Exists(ctx context.Context, id int64) error
}

// CacheBumper invalidates cached report aggregates after a mutation.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// Service is the sale engine. Every operation that touches stock runs
// inside a single transaction with per-product row locks, so a sale
// either fully commits (sale row, item rows, all decrements) or leaves
// stock untouched.
type Service struct {
	repo      Repository
	customers CustomerChecker
	cache     CacheBumper
	logger    *slog.Logger
}

func NewService(repo Repository, customers CustomerChecker, cache CacheBumper, logger *slog.Logger) *Service {
	return &Service{repo: repo, customers: customers, cache: cache, logger: logger}
}

// Create validates the request, snapshots prices, decrements stock and
// records the sale atomically. The created sale is COMPLETED.
func (s *Service) Create(ctx context.Context, userID int64, req CreateSaleRequest) (*Sale, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}
	if !req.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", httpx.ErrValidation, req.PaymentMethod)
	}
	if req.CustomerID != nil {
		if err := s.customers.Exists(ctx, *req.CustomerID); err != nil {
			return nil, fmt.Errorf("customer %d: %w", *req.CustomerID, err)
		}
	}

	// Lock products in ascending id order so concurrent sales over the
	// same products cannot deadlock each other.
	items := make([]CreateSaleItemRequest, len(req.Items))
	copy(items, req.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	sale := &Sale{
		CustomerID:    req.CustomerID,
		CreatedBy:     userID,
		Discount:      req.Discount,
		TaxAmount:     req.TaxAmount,
		PaymentMethod: req.PaymentMethod,
		Status:        SaleStatusCompleted,
		Notes:         req.Notes,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines := make([]SaleItem, 0, len(items))
		for _, item := range items {
			product, err := tx.GetProductForUpdate(ctx, item.ProductID)
			if err != nil {
				return fmt.Errorf("product %d: %w", item.ProductID, err)
			}
			if !product.IsActive {
				return fmt.Errorf("%w: product %q is inactive", httpx.ErrValidation, product.Name)
			}
			if product.Quantity < item.Quantity {
				return fmt.Errorf("%w: product %q has %d, requested %d",
					ErrInsufficientStock, product.Name, product.Quantity, item.Quantity)
			}

			lineTotal := float64(item.Quantity)*product.Price - item.Discount
			if lineTotal < 0 {
				return fmt.Errorf("%w: discount exceeds line total for product %q", httpx.ErrValidation, product.Name)
			}
			lines = append(lines, SaleItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    item.Quantity,
				UnitPrice:   product.Price,
				Discount:    item.Discount,
				TotalPrice:  lineTotal,
			})
			sale.TotalAmount += lineTotal

			if err := tx.AdjustProductQuantity(ctx, product.ID, -item.Quantity); err != nil {
				return err
			}
		}

		sale.FinalAmount = sale.TotalAmount - sale.Discount + sale.TaxAmount
		if sale.FinalAmount < 0 {
			return fmt.Errorf("%w: discount exceeds sale total", httpx.ErrValidation)
		}

		id, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		sale.ID = id
		if err := tx.InsertItems(ctx, id, lines); err != nil {
			return err
		}
		sale.Items = lines
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bumpCache(ctx)
	s.logger.InfoContext(ctx, "sale created",
		slog.Int64("sale_id", sale.ID),
		slog.Float64("final_amount", sale.FinalAmount),
		slog.Int("items", len(sale.Items)))
	return sale, nil
}

// Cancel restores the recorded item quantities to stock and marks the
// sale CANCELLED. Cancelling twice fails and restores nothing.
func (s *Service) Cancel(ctx context.Context, id int64) (*Sale, error) {
	var sale *Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("sale %d: %w", id, err)
		}
		if current.Status == SaleStatusCancelled {
			return ErrSaleCancelled
		}
		for _, it := range current.Items {
			if err := tx.AdjustProductQuantity(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		if err := tx.UpdateStatus(ctx, id, SaleStatusCancelled); err != nil {
			return err
		}
		current.Status = SaleStatusCancelled
		sale = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bumpCache(ctx)
	s.logger.InfoContext(ctx, "sale cancelled", slog.Int64("sale_id", id))
	return sale, nil
}

// Remove deletes a sale and its items. Stock is restored first when the
// sale still holds stock (anything not already CANCELLED).
func (s *Service) Remove(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("sale %d: %w", id, err)
		}
		if current.Status != SaleStatusCancelled {
			for _, it := range current.Items {
				if err := tx.AdjustProductQuantity(ctx, it.ProductID, it.Quantity); err != nil {
					return err
				}
			}
		}
		return tx.DeleteSale(ctx, id)
	})
	if err != nil {
		return err
	}

	s.bumpCache(ctx)
	s.logger.InfoContext(ctx, "sale deleted", slog.Int64("sale_id", id))
	return nil
}

// Get returns a sale with its items.
func (s *Service) Get(ctx context.Context, id int64) (*Sale, error) {
	sale, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("sale %d: %w", id, err)
	}
	return sale, nil
}

// List returns sales matching the filters plus the unpaginated total.
func (s *Service) List(ctx context.Context, f ListFilters) ([]Sale, int, error) {
	return s.repo.List(ctx, f)
}

// GetReport aggregates COMPLETED sales between from and to inclusive.
func (s *Service) GetReport(ctx context.Context, from, to time.Time) (*Report, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end date before start date", httpx.ErrValidation)
	}
	return s.repo.Report(ctx, from, to)
}

func (s *Service) bumpCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.WarnContext(ctx, "report cache bump failed", slog.String("error", err.Error()))
	}
}
