package expenses

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// CacheBumper invalidates cached dashboard aggregates after a mutation.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

type Service struct {
	repo   Repository
	cache  CacheBumper
	logger *slog.Logger
}

func NewService(repo Repository, cache CacheBumper, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Expense, int, error) {
	if filters.DateFrom != nil && filters.DateTo != nil && filters.DateTo.Before(*filters.DateFrom) {
		return nil, 0, fmt.Errorf("%w: end date before start date", httpx.ErrValidation)
	}
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (*Expense, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, userID int64, req CreateExpenseRequest) (*Expense, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}
	expense, err := s.repo.Create(ctx, Expense{
		Category:   req.Category,
		Amount:     req.Amount,
		IncurredAt: req.IncurredAt,
		Notes:      req.Notes,
		CreatedBy:  userID,
	})
	if err != nil {
		return nil, err
	}
	s.bumpCache(ctx)
	s.logger.InfoContext(ctx, "expense recorded",
		slog.Int64("expense_id", expense.ID),
		slog.String("category", expense.Category),
		slog.Float64("amount", expense.Amount))
	return expense, nil
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateExpenseRequest) (*Expense, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}
	err := s.repo.Update(ctx, id, Expense{
		Category:   req.Category,
		Amount:     req.Amount,
		IncurredAt: req.IncurredAt,
		Notes:      req.Notes,
	})
	if err != nil {
		return nil, err
	}
	s.bumpCache(ctx)
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.bumpCache(ctx)
	return nil
}

// TotalBetween sums expenses over a closed date range, used by the
// dashboard.
func (s *Service) TotalBetween(ctx context.Context, from, to time.Time) (float64, error) {
	return s.repo.SumRange(ctx, from, to)
}

func (s *Service) bumpCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.WarnContext(ctx, "dashboard cache bump failed", slog.String("error", err.Error()))
	}
}
