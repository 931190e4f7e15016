package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/cropchain/internal/core/domain"
	"github.com/rl1809/cropchain/internal/port"
)

const (
	defaultProductLimit = 10
	maxProductLimit     = 100
)

// CatalogService manages products. Quantity changes after creation are
// delegated to the InventoryLedger.
type CatalogService struct {
	products   port.ProductRepository
	categories port.CategoryRepository
	users      port.UserRepository
	ledger     *InventoryLedger
	logger     zerolog.Logger
	now        func() time.Time
}

func NewCatalogService(products port.ProductRepository, categories port.CategoryRepository, users port.UserRepository, ledger *InventoryLedger, logger zerolog.Logger) *CatalogService {
	return &CatalogService{
		products:   products,
		categories: categories,
		users:      users,
		ledger:     ledger,
		logger:     logger.With().Str("component", "catalog_service").Logger(),
		now:        time.Now,
	}
}

func (s *CatalogService) Create(ctx context.Context, ownerID int64, p domain.Product) (domain.Product, error) {
	owner, err := s.users.GetUser(ctx, ownerID)
	if err != nil {
		return domain.Product{}, fmt.Errorf("get user: %w", err)
	}
	if owner == nil {
		return domain.Product{}, domain.ErrUserNotFound
	}
	if !owner.IsSeller {
		return domain.Product{}, domain.ErrNotSeller
	}

	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	if err := s.requireCategory(ctx, p.CategoryID); err != nil {
		return domain.Product{}, err
	}

	now := s.now().UTC()
	p.OwnerID = ownerID
	p.CreatedAt = now
	p.UpdatedAt = now
	p.ID, err = s.products.CreateProduct(ctx, p)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}

	s.logger.Info().Int64("product_id", p.ID).Int64("owner_id", ownerID).Msg("product created")
	return p, nil
}

// Get returns a product to its owner.
func (s *CatalogService) Get(ctx context.Context, userID, productID int64) (domain.Product, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	if p == nil {
		return domain.Product{}, domain.ErrInvalidProduct
	}
	if p.OwnerID != userID {
		return domain.Product{}, domain.ErrNotProductOwner
	}
	return *p, nil
}

// Update applies a partial edit. Ownership is checked before the edit is
// validated. The descriptive fields are written first and the stock last; a
// failed restock puts the previous fields back.
func (s *CatalogService) Update(ctx context.Context, userID, productID int64, update domain.ProductUpdate) (domain.Product, error) {
	p, err := s.Get(ctx, userID, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if err := update.Validate(); err != nil {
		return domain.Product{}, err
	}
	if update.CategoryID != nil {
		if err := s.requireCategory(ctx, *update.CategoryID); err != nil {
			return domain.Product{}, err
		}
	}

	previous := p
	update.Apply(&p)
	p.UpdatedAt = s.now().UTC()
	if err := s.products.UpdateProduct(ctx, p); err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}

	if update.QuantityAvailable != nil {
		if err := s.ledger.Restock(ctx, productID, *update.QuantityAvailable); err != nil {
			if revertErr := s.products.UpdateProduct(ctx, previous); revertErr != nil {
				s.logger.Error().Err(revertErr).Int64("product_id", productID).Msg("failed to revert product after restock error")
			}
			return domain.Product{}, fmt.Errorf("restock: %w", err)
		}
	}
	return p, nil
}

func (s *CatalogService) Delete(ctx context.Context, userID, productID int64) error {
	if _, err := s.Get(ctx, userID, productID); err != nil {
		return err
	}
	if err := s.products.DeleteProduct(ctx, productID); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.logger.Info().Int64("product_id", productID).Int64("owner_id", userID).Msg("product deleted")
	return nil
}

// List returns the newest products first.
func (s *CatalogService) List(ctx context.Context, limit int) ([]domain.Product, error) {
	return s.products.ListProducts(ctx, domain.ProductFilter{SortBy: domain.SortByLatest, Limit: clampLimit(limit)})
}

func (s *CatalogService) ListOwned(ctx context.Context, ownerID int64) ([]domain.Product, error) {
	return s.products.ListProductsByOwner(ctx, ownerID)
}

func (s *CatalogService) Search(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	if !filter.SortBy.Valid() {
		return nil, domain.ErrInvalidSort
	}
	filter.Keyword = strings.TrimSpace(filter.Keyword)
	filter.Limit = clampLimit(filter.Limit)
	return s.products.ListProducts(ctx, filter)
}

func (s *CatalogService) requireCategory(ctx context.Context, categoryID int64) error {
	c, err := s.categories.GetCategory(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("get category: %w", err)
	}
	if c == nil {
		return domain.ErrCategoryNotFound
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultProductLimit
	}
	if limit > maxProductLimit {
		return maxProductLimit
	}
	return limit
}
