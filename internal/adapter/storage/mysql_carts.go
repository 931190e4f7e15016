package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/cropchain/internal/core/domain"
)

func (m *MySQLAdapter) GetCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	cart := domain.Cart{UserID: userID}
	err := m.db.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id = ?`, userID).Scan(&cart.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, quantity FROM cart_items
		WHERE cart_id = ? ORDER BY product_id`, cart.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	cart.Items = []domain.CartItem{}
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ProductID, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (m *MySQLAdapter) AddCartItem(ctx context.Context, cartID, productID int64, quantity int) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`,
		cartID, productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) RemoveCartItem(ctx context.Context, cartID, productID int64) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ? AND product_id = ?`, cartID, productID); err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ClearCart(ctx context.Context, cartID int64) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
