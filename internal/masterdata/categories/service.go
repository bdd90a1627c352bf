package categories

import (
	"context"
	"fmt"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Category, int, error) {
	return s.repo.List(ctx, filters)
}

// Exists resolves a category reference for cross-module checks.
func (s *Service) Exists(ctx context.Context, id int64) error {
	_, err := s.Get(ctx, id)
	return err
}

func (s *Service) Get(ctx context.Context, id int64) (*Category, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: invalid category id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, req CreateCategoryRequest) (*Category, error) {
	category := Category{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}
	if err := s.validate(category); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, category)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateCategoryRequest) (*Category, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Description != nil {
		existing.Description = req.Description
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	if err := s.validate(*existing); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, id, *existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Delete removes a category. Deletion is blocked while any product still
// references it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid category id", httpx.ErrValidation)
	}
	count, err := s.repo.CountProducts(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: category is referenced by %d product(s)", httpx.ErrValidation, count)
	}
	return s.repo.Delete(ctx, id)
}
