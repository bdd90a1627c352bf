package purchasing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// SupplierChecker verifies supplier references.
type SupplierChecker interface {
	Exists(ctx context.Context, id int64) error
}

// CacheBumper invalidates cached report aggregates after a mutation.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

type Service struct {
	repo      Repository
	suppliers SupplierChecker
	cache     CacheBumper
	logger    *slog.Logger
}

func NewService(repo Repository, suppliers SupplierChecker, cache CacheBumper, logger *slog.Logger) *Service {
	return &Service{repo: repo, suppliers: suppliers, cache: cache, logger: logger}
}

// Create records a purchase and receives its stock in one transaction:
// each product's quantity is incremented and its cost price updated to
// the purchased unit cost.
func (s *Service) Create(ctx context.Context, userID int64, req CreatePurchaseRequest) (*Purchase, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := s.suppliers.Exists(ctx, req.SupplierID); err != nil {
		return nil, fmt.Errorf("supplier %d: %w", req.SupplierID, err)
	}

	purchase := &Purchase{
		SupplierID: req.SupplierID,
		CreatedBy:  userID,
		Status:     StatusReceived,
		Notes:      req.Notes,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines := make([]PurchaseItem, 0, len(req.Items))
		for _, item := range req.Items {
			if _, err := tx.GetProductQuantityForUpdate(ctx, item.ProductID); err != nil {
				return fmt.Errorf("product %d: %w", item.ProductID, err)
			}
			cost := item.UnitCost
			if err := tx.AdjustProductStock(ctx, item.ProductID, item.Quantity, &cost); err != nil {
				return err
			}
			lines = append(lines, PurchaseItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitCost:  item.UnitCost,
				TotalCost: float64(item.Quantity) * item.UnitCost,
			})
			purchase.TotalAmount += float64(item.Quantity) * item.UnitCost
		}

		id, err := tx.InsertPurchase(ctx, purchase)
		if err != nil {
			return err
		}
		purchase.ID = id
		if err := tx.InsertItems(ctx, id, lines); err != nil {
			return err
		}
		purchase.Items = lines
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bumpCache(ctx)
	s.logger.InfoContext(ctx, "purchase received",
		slog.Int64("purchase_id", purchase.ID),
		slog.Float64("total_amount", purchase.TotalAmount))
	return purchase, nil
}

// Cancel reverses the stock a purchase brought in. It fails when any
// line's reversal would drive the product quantity negative, meaning
// the received stock was already sold.
func (s *Service) Cancel(ctx context.Context, id int64) (*Purchase, error) {
	var purchase *Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPurchaseForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("purchase %d: %w", id, err)
		}
		if current.Status == StatusCancelled {
			return ErrPurchaseCancelled
		}
		for _, it := range current.Items {
			quantity, err := tx.GetProductQuantityForUpdate(ctx, it.ProductID)
			if err != nil {
				return fmt.Errorf("product %d: %w", it.ProductID, err)
			}
			if quantity < it.Quantity {
				return fmt.Errorf("product %d: %w", it.ProductID, ErrStockConsumed)
			}
			if err := tx.AdjustProductStock(ctx, it.ProductID, -it.Quantity, nil); err != nil {
				return err
			}
		}
		if err := tx.UpdateStatus(ctx, id, StatusCancelled); err != nil {
			return err
		}
		current.Status = StatusCancelled
		purchase = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bumpCache(ctx)
	s.logger.InfoContext(ctx, "purchase cancelled", slog.Int64("purchase_id", id))
	return purchase, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Purchase, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("purchase %d: %w", id, err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, f ListFilters) ([]Purchase, int, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) bumpCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.WarnContext(ctx, "report cache bump failed", slog.String("error", err.Error()))
	}
}
