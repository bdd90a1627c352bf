package categories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
)

type memRepo struct {
	categories    map[int64]*Category
	productCounts map[int64]int
	nextID        int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		categories:    make(map[int64]*Category),
		productCounts: make(map[int64]int),
	}
}

func (m *memRepo) List(ctx context.Context, filters ListFilters) ([]Category, int, error) {
	var out []Category
	for _, c := range m.categories {
		if filters.IsActive != nil && c.IsActive != *filters.IsActive {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memRepo) Get(ctx context.Context, id int64) (*Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) Create(ctx context.Context, category Category) (*Category, error) {
	for _, c := range m.categories {
		if c.Name == category.Name {
			return nil, httpx.ErrDuplicate
		}
	}
	m.nextID++
	category.ID = m.nextID
	m.categories[category.ID] = &category
	return &category, nil
}

func (m *memRepo) Update(ctx context.Context, id int64, category Category) error {
	if _, ok := m.categories[id]; !ok {
		return httpx.ErrNotFound
	}
	category.ID = id
	m.categories[id] = &category
	return nil
}

func (m *memRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.categories[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.categories, id)
	return nil
}

func (m *memRepo) CountProducts(ctx context.Context, id int64) (int, error) {
	return m.productCounts[id], nil
}

func TestCreateCategory(t *testing.T) {
	svc := NewService(newMemRepo())

	c, err := svc.Create(context.Background(), CreateCategoryRequest{Name: "Beverages"})
	require.NoError(t, err)
	require.Equal(t, "Beverages", c.Name)
	require.True(t, c.IsActive)
}

func TestCreateCategoryDuplicateName(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.Create(context.Background(), CreateCategoryRequest{Name: "Beverages"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateCategoryRequest{Name: "Beverages"})
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestCreateCategoryBlankName(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.Create(context.Background(), CreateCategoryRequest{Name: "   "})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateCategoryPartial(t *testing.T) {
	svc := NewService(newMemRepo())

	c, err := svc.Create(context.Background(), CreateCategoryRequest{Name: "Beverages"})
	require.NoError(t, err)

	inactive := false
	updated, err := svc.Update(context.Background(), c.ID, UpdateCategoryRequest{IsActive: &inactive})
	require.NoError(t, err)
	require.Equal(t, "Beverages", updated.Name)
	require.False(t, updated.IsActive)
}

func TestDeleteCategoryBlockedByProducts(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	c, err := svc.Create(context.Background(), CreateCategoryRequest{Name: "Beverages"})
	require.NoError(t, err)
	repo.productCounts[c.ID] = 3

	err = svc.Delete(context.Background(), c.ID)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Contains(t, err.Error(), "referenced by 3")
}

func TestDeleteCategoryUnreferenced(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	c, err := svc.Create(context.Background(), CreateCategoryRequest{Name: "Beverages"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), c.ID))
	_, err = svc.Get(context.Background(), c.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestGetCategoryInvalidID(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, httpx.ErrValidation)
}
