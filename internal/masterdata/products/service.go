package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
)

// CategoryChecker resolves category references before a product write.
type CategoryChecker interface {
	Exists(ctx context.Context, id int64) error
}

// SupplierChecker resolves supplier references before a product write.
type SupplierChecker interface {
	Exists(ctx context.Context, id int64) error
}

type Service struct {
	repo       Repository
	categories CategoryChecker
	suppliers  SupplierChecker
}

func NewService(repo Repository, categories CategoryChecker, suppliers SupplierChecker) *Service {
	return &Service{repo: repo, categories: categories, suppliers: suppliers}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: invalid product id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	if sku == "" {
		return nil, fmt.Errorf("%w: sku is required", httpx.ErrValidation)
	}
	return s.repo.GetBySKU(ctx, sku)
}

func (s *Service) GetByBarcode(ctx context.Context, barcode string) (*Product, error) {
	if barcode == "" {
		return nil, fmt.Errorf("%w: barcode is required", httpx.ErrValidation)
	}
	return s.repo.GetByBarcode(ctx, barcode)
}

func (s *Service) Create(ctx context.Context, req CreateProductRequest) (*Product, error) {
	// Uniqueness is pre-checked for a friendlier error; the database
	// unique indexes remain the authority under concurrency.
	if existing, err := s.repo.GetBySKU(ctx, req.SKU); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: sku %s already exists", httpx.ErrDuplicate, req.SKU)
	} else if err != nil && !errors.Is(err, httpx.ErrNotFound) {
		return nil, err
	}
	if req.Barcode != nil && *req.Barcode != "" {
		if existing, err := s.repo.GetByBarcode(ctx, *req.Barcode); err == nil && existing != nil {
			return nil, fmt.Errorf("%w: barcode %s already exists", httpx.ErrDuplicate, *req.Barcode)
		} else if err != nil && !errors.Is(err, httpx.ErrNotFound) {
			return nil, err
		}
	}

	if err := s.categories.Exists(ctx, req.CategoryID); err != nil {
		return nil, err
	}
	if req.SupplierID != nil {
		if err := s.suppliers.Exists(ctx, *req.SupplierID); err != nil {
			return nil, err
		}
	}

	return s.repo.Create(ctx, Product{
		Name:        req.Name,
		SKU:         req.SKU,
		Barcode:     req.Barcode,
		Description: req.Description,
		Price:       req.Price,
		CostPrice:   req.CostPrice,
		Quantity:    req.Quantity,
		MinQuantity: req.MinQuantity,
		IsActive:    true,
		CategoryID:  req.CategoryID,
		SupplierID:  req.SupplierID,
	})
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateProductRequest) (*Product, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Barcode != nil {
		existing.Barcode = req.Barcode
	}
	if req.Description != nil {
		existing.Description = req.Description
	}
	if req.Price != nil {
		existing.Price = *req.Price
	}
	if req.CostPrice != nil {
		existing.CostPrice = *req.CostPrice
	}
	if req.MinQuantity != nil {
		existing.MinQuantity = *req.MinQuantity
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	if req.CategoryID != nil {
		if err := s.categories.Exists(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
		existing.CategoryID = *req.CategoryID
	}
	if req.SupplierID != nil {
		if err := s.suppliers.Exists(ctx, *req.SupplierID); err != nil {
			return nil, err
		}
		existing.SupplierID = req.SupplierID
	}

	if err := s.repo.Update(ctx, id, *existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Delete hard-deletes a product. Deletion is rejected while historical
// sale items reference the product; deactivate instead.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid product id", httpx.ErrValidation)
	}
	count, err := s.repo.CountSaleItems(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: product appears on %d sale item(s); deactivate it instead", httpx.ErrValidation, count)
	}
	return s.repo.Delete(ctx, id)
}
