package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/cropchain/internal/core/domain"
)

// CreateUser inserts the user and, for buyers, the cart in one transaction.
func (m *MySQLAdapter) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, is_seller, created_at)
		VALUES (?, ?, ?, ?, NOW(6))`,
		user.Username, user.Email, user.PasswordHash, user.IsSeller,
	)
	if isDuplicateEntry(err) {
		return domain.User{}, domain.ErrUserExists
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	user.ID, err = result.LastInsertId()
	if err != nil {
		return domain.User{}, err
	}

	if !user.IsSeller {
		result, err = tx.ExecContext(ctx, `INSERT INTO carts (user_id) VALUES (?)`, user.ID)
		if err != nil {
			return domain.User{}, fmt.Errorf("insert cart: %w", err)
		}
		user.CartID, err = result.LastInsertId()
		if err != nil {
			return domain.User{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.User{}, fmt.Errorf("commit: %w", err)
	}
	return user, nil
}

const selectUser = `
	SELECT u.id, u.username, u.email, u.password_hash, u.is_seller, COALESCE(c.id, 0), u.created_at
	FROM users u LEFT JOIN carts c ON c.user_id = u.id`

func (m *MySQLAdapter) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	return m.scanUser(m.db.QueryRowContext(ctx, selectUser+` WHERE u.id = ?`, userID))
}

func (m *MySQLAdapter) GetUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	return m.scanUser(m.db.QueryRowContext(ctx, selectUser+` WHERE u.username = ? OR u.email = ? LIMIT 1`, login, login))
}

func (m *MySQLAdapter) scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsSeller, &u.CartID, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}
