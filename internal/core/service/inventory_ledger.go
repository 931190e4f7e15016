package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rl1809/cropchain/internal/core/domain"
	"github.com/rl1809/cropchain/internal/port"
)

// InventoryLedger is the only writer of a product's available quantity.
// Every change goes through InventoryRepository.AdjustStock, which holds the
// product row lock for the duration of the read-modify-write.
type InventoryLedger struct {
	inventory port.InventoryRepository
	logger    zerolog.Logger
	now       func() time.Time
}

func NewInventoryLedger(inventory port.InventoryRepository, logger zerolog.Logger) *InventoryLedger {
	return &InventoryLedger{
		inventory: inventory,
		logger:    logger.With().Str("component", "inventory_ledger").Logger(),
		now:       time.Now,
	}
}

// Reserve takes quantity units of the product and returns the unit price read
// under the same lock.
func (l *InventoryLedger) Reserve(ctx context.Context, productID int64, quantity int) (domain.Reservation, error) {
	if quantity <= 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}

	product, err := l.inventory.AdjustStock(ctx, productID, func(p domain.Product) (int, error) {
		if p.QuantityAvailable == 0 {
			return 0, domain.ErrOutOfStock
		}
		if quantity > p.QuantityAvailable {
			return 0, domain.ErrInsufficientStock
		}
		return p.QuantityAvailable - quantity, nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	res := domain.Reservation{
		Token:      uuid.NewString(),
		ProductID:  productID,
		Quantity:   quantity,
		UnitPrice:  product.Price,
		ReservedAt: l.now(),
	}
	l.logger.Debug().
		Int64("product_id", productID).
		Int("quantity", quantity).
		Int("remaining", product.QuantityAvailable).
		Str("token", res.Token).
		Msg("stock reserved")

	return res, nil
}

// Release gives the reserved quantity back. The token is recorded in the
// same transaction as the stock restore, so releasing it twice is a no-op.
func (l *InventoryLedger) Release(ctx context.Context, res domain.Reservation) error {
	if res.Token == "" {
		return fmt.Errorf("release product %d: missing reservation token", res.ProductID)
	}

	released, err := l.inventory.ReleaseStock(ctx, res.Token, res.ProductID, res.Quantity)
	if errors.Is(err, domain.ErrInvalidProduct) {
		// product deleted since the reservation; nothing left to restore
		l.logger.Warn().Int64("product_id", res.ProductID).Str("token", res.Token).Msg("release skipped, product gone")
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore stock for product %d: %w", res.ProductID, err)
	}
	if !released {
		l.logger.Debug().Str("token", res.Token).Msg("reservation already released")
		return nil
	}

	l.logger.Debug().
		Int64("product_id", res.ProductID).
		Int("quantity", res.Quantity).
		Str("token", res.Token).
		Msg("stock released")
	return nil
}

// Restock sets the available quantity of a product to an absolute value.
func (l *InventoryLedger) Restock(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	_, err := l.inventory.AdjustStock(ctx, productID, func(domain.Product) (int, error) {
		return quantity, nil
	})
	return err
}
