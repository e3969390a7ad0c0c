package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/bizshop/storefront/internal/domain/catalog"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	query := `
		SELECT id, store_id, name, price, stock, updated_at
		FROM products
		WHERE id = $1
	`

	var p domain.Product
	err := r.db.QueryRowContext(ctx, query, productID).
		Scan(&p.ID, &p.StoreID, &p.Name, &p.Price, &p.Stock, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// DecrementStock relies on a single conditional UPDATE so the availability
// check and the decrement happen in one statement. Zero affected rows means
// either a missing product or not enough stock; a follow-up read tells which.
func (r *ProductRepository) DecrementStock(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	query := `
		UPDATE products
		SET stock = stock - $2,
		    updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`

	res, err := r.db.ExecContext(ctx, query, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if affected > 0 {
		return nil
	}

	p, err := r.Get(ctx, productID)
	if err != nil {
		return err
	}
	return &domain.InsufficientStockError{
		ProductID: p.ID,
		Name:      p.Name,
		Available: p.Stock,
		Requested: quantity,
	}
}

func (r *ProductRepository) RestoreStock(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	query := `
		UPDATE products
		SET stock = stock + $2,
		    updated_at = NOW()
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, productID, quantity)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
