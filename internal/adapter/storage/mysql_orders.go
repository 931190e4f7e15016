package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/cropchain/internal/core/domain"
)

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) (int64, error) {
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO orders (user_id, order_date, order_quantity, total_price, status)
		VALUES (?, ?, ?, ?, ?)`,
		order.UserID, order.OrderDate, order.OrderQuantity, order.TotalPrice, order.Status,
	)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return result.LastInsertId()
}

func (m *MySQLAdapter) AddLineItem(ctx context.Context, item domain.OrderLineItem) (int64, error) {
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, line_total, reservation_token)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.LineTotal, item.ReservationToken,
	)
	if err != nil {
		return 0, fmt.Errorf("insert order item: %w", err)
	}
	return result.LastInsertId()
}

func (m *MySQLAdapter) FinalizeOrder(ctx context.Context, order domain.Order) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET order_quantity = ?, total_price = ?, status = ?
		WHERE id = ?`,
		order.OrderQuantity, order.TotalPrice, order.Status, order.ID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (m *MySQLAdapter) DeleteOrder(ctx context.Context, orderID int64) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, orderID); err != nil {
		return fmt.Errorf("delete order items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, orderID); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	return tx.Commit()
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	var o domain.Order
	err := m.db.QueryRowContext(ctx, `
		SELECT id, user_id, order_date, order_quantity, total_price, status
		FROM orders WHERE id = ?`, orderID,
	).Scan(&o.ID, &o.UserID, &o.OrderDate, &o.OrderQuantity, &o.TotalPrice, &o.Status)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	o.Items, err = m.lineItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (m *MySQLAdapter) ListOrdersByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, order_date, order_quantity, total_price, status
		FROM orders WHERE user_id = ? AND status = ?
		ORDER BY order_date DESC, id DESC`, userID, domain.OrderStatusPlaced,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.OrderDate, &o.OrderQuantity, &o.TotalPrice, &o.Status); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Items, err = m.lineItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (m *MySQLAdapter) ListOrdersByStatus(ctx context.Context, status domain.OrderStatus, before time.Time, limit int) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, order_date, order_quantity, total_price, status
		FROM orders WHERE status = ? AND order_date <= ?
		ORDER BY order_date, id
		LIMIT ?`, status, before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.OrderDate, &o.OrderQuantity, &o.TotalPrice, &o.Status); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Items, err = m.lineItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (m *MySQLAdapter) lineItems(ctx context.Context, orderID int64) ([]domain.OrderLineItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, line_total, reservation_token
		FROM order_items WHERE order_id = ? ORDER BY id`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderLineItem
	for rows.Next() {
		var it domain.OrderLineItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.LineTotal, &it.ReservationToken); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
