package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rl1809/cropchain/internal/core/domain"
	"github.com/rl1809/cropchain/internal/port"
)

type CategoryService struct {
	categories port.CategoryRepository
}

func NewCategoryService(categories port.CategoryRepository) *CategoryService {
	return &CategoryService{categories: categories}
}

func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	return s.categories.ListCategories(ctx)
}

func (s *CategoryService) Get(ctx context.Context, categoryID int64) (domain.Category, error) {
	c, err := s.categories.GetCategory(ctx, categoryID)
	if err != nil {
		return domain.Category{}, fmt.Errorf("get category: %w", err)
	}
	if c == nil {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	return *c, nil
}

// Create returns ErrCategoryExists when the name is taken.
func (s *CategoryService) Create(ctx context.Context, name string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, domain.ErrInvalidCategory
	}
	id, err := s.categories.CreateCategory(ctx, name)
	if err != nil {
		return domain.Category{}, err
	}
	return domain.Category{ID: id, Name: name}, nil
}

func (s *CategoryService) Rename(ctx context.Context, categoryID int64, name string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, domain.ErrInvalidCategory
	}
	if _, err := s.Get(ctx, categoryID); err != nil {
		return domain.Category{}, err
	}
	if err := s.categories.RenameCategory(ctx, categoryID, name); err != nil {
		return domain.Category{}, err
	}
	return domain.Category{ID: categoryID, Name: name}, nil
}

func (s *CategoryService) Delete(ctx context.Context, categoryID int64) error {
	if _, err := s.Get(ctx, categoryID); err != nil {
		return err
	}
	return s.categories.DeleteCategory(ctx, categoryID)
}
