package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rl1809/cropchain/internal/core/domain"
)

const selectProduct = `
	SELECT id, title, description, price, quantity_available, category_id, owner_id, created_at, updated_at
	FROM products`

func (m *MySQLAdapter) CreateProduct(ctx context.Context, p domain.Product) (int64, error) {
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO products (title, description, price, quantity_available, category_id, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.Description, p.Price, p.QuantityAvailable, p.CategoryID, p.OwnerID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert product: %w", err)
	}
	return result.LastInsertId()
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, selectProduct+` WHERE id = ?`, productID).
		Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.QuantityAvailable, &p.CategoryID, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

// UpdateProduct writes the descriptive fields. quantity_available belongs to
// AdjustStock and is never written here.
func (m *MySQLAdapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET title = ?, description = ?, price = ?, category_id = ?, updated_at = ?
		WHERE id = ?`,
		p.Title, p.Description, p.Price, p.CategoryID, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, productID int64) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, productID); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	query, args := buildProductQuery(filter)
	return m.queryProducts(ctx, query, args...)
}

func (m *MySQLAdapter) ListProductsByOwner(ctx context.Context, ownerID int64) ([]domain.Product, error) {
	return m.queryProducts(ctx, selectProduct+` WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
}

func buildProductQuery(filter domain.ProductFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.Keyword != "" {
		like := "%" + escapeLike(filter.Keyword) + "%"
		where = append(where, "(title LIKE ? OR description LIKE ?)")
		args = append(args, like, like)
	}
	if filter.CategoryID > 0 {
		where = append(where, "category_id = ?")
		args = append(args, filter.CategoryID)
	}

	var b strings.Builder
	b.WriteString(selectProduct)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	switch filter.SortBy {
	case domain.SortByTitle:
		b.WriteString(" ORDER BY title ASC, id ASC")
	case domain.SortByPriceAsc:
		b.WriteString(" ORDER BY price ASC, id ASC")
	case domain.SortByPriceDsc:
		b.WriteString(" ORDER BY price DESC, id ASC")
	default:
		b.WriteString(" ORDER BY created_at DESC, id DESC")
	}

	if filter.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}
	return b.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (m *MySQLAdapter) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.QuantityAvailable, &p.CategoryID, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (m *MySQLAdapter) CreateCategory(ctx context.Context, name string) (int64, error) {
	result, err := m.db.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name)
	if isDuplicateEntry(err) {
		return 0, domain.ErrCategoryExists
	}
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	return result.LastInsertId()
}

func (m *MySQLAdapter) GetCategory(ctx context.Context, categoryID int64) (*domain.Category, error) {
	var c domain.Category
	err := m.db.QueryRowContext(ctx, `SELECT id, name FROM categories WHERE id = ?`, categoryID).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query category: %w", err)
	}
	return &c, nil
}

func (m *MySQLAdapter) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (m *MySQLAdapter) RenameCategory(ctx context.Context, categoryID int64, name string) error {
	_, err := m.db.ExecContext(ctx, `UPDATE categories SET name = ? WHERE id = ?`, name, categoryID)
	if isDuplicateEntry(err) {
		return domain.ErrCategoryExists
	}
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) DeleteCategory(ctx context.Context, categoryID int64) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, categoryID); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}
