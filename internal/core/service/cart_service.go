package service

import (
	"context"
	"fmt"

	"github.com/rl1809/cropchain/internal/core/domain"
	"github.com/rl1809/cropchain/internal/port"
)

type CartService struct {
	carts    port.CartRepository
	products port.ProductRepository
}

func NewCartService(carts port.CartRepository, products port.ProductRepository) *CartService {
	return &CartService{carts: carts, products: products}
}

func (s *CartService) Get(ctx context.Context, userID int64) (domain.Cart, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}
	if cart == nil {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return *cart, nil
}

// AddItem adds quantity to the cart line for the product, creating it when absent.
func (s *CartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (domain.Cart, error) {
	if quantity <= 0 {
		return domain.Cart{}, domain.ErrInvalidQuantity
	}
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get product: %w", err)
	}
	if p == nil {
		return domain.Cart{}, domain.ErrInvalidProduct
	}

	cart, err := s.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := s.carts.AddCartItem(ctx, cart.ID, productID, quantity); err != nil {
		return domain.Cart{}, fmt.Errorf("add cart item: %w", err)
	}
	return s.Get(ctx, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64) error {
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	return s.carts.RemoveCartItem(ctx, cart.ID, productID)
}
