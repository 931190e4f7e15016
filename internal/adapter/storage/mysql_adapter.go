package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/cropchain/internal/core/domain"
)

const mysqlDuplicateEntry = 1062

var ErrNegativeStock = errors.New("stock cannot go below zero")

// MySQLAdapter implements every relational repository of the service.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// AdjustStock runs fn against the product row held with SELECT ... FOR UPDATE,
// so concurrent reservations on one product are serialized by InnoDB.
func (m *MySQLAdapter) AdjustStock(ctx context.Context, productID int64, fn func(p domain.Product) (int, error)) (domain.Product, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var p domain.Product
	err = tx.QueryRowContext(ctx, `
		SELECT id, title, description, price, quantity_available, category_id, owner_id, created_at, updated_at
		FROM products WHERE id = ? FOR UPDATE`, productID,
	).Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.QuantityAvailable, &p.CategoryID, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrInvalidProduct
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("lock product: %w", err)
	}

	next, err := fn(p)
	if err != nil {
		return domain.Product{}, err
	}
	if next < 0 {
		return domain.Product{}, ErrNegativeStock
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET quantity_available = ?, updated_at = NOW(6)
		WHERE id = ?`,
		next, productID,
	)
	if err != nil {
		return domain.Product{}, fmt.Errorf("update stock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Product{}, fmt.Errorf("commit: %w", err)
	}

	p.QuantityAvailable = next
	return p, nil
}

// ReleaseStock inserts the token into reservation_releases and restores the
// stock in the same transaction. A duplicate token means the reservation was
// already returned.
func (m *MySQLAdapter) ReleaseStock(ctx context.Context, token string, productID int64, quantity int) (bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservation_releases (reservation_token, product_id, quantity, released_at)
		VALUES (?, ?, ?, NOW(6))`,
		token, productID, quantity,
	)
	if isDuplicateEntry(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("record release: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET quantity_available = quantity_available + ?, updated_at = NOW(6)
		WHERE id = ?`,
		quantity, productID,
	)
	if err != nil {
		return false, fmt.Errorf("restore stock: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return false, domain.ErrInvalidProduct
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
