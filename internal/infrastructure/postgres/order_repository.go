package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	domain "github.com/bizshop/storefront/internal/domain/order"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Insert writes the order header and its line items in one transaction so a
// partial order can never be observed.
func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert order: begin tx: %w", err)
	}
	defer tx.Rollback()

	header := `
		INSERT INTO orders (
			id, customer_id, store_id,
			address, city, postal_code, country,
			payment_method, items_price, tax_price, shipping_price, total_price,
			status, is_paid, is_delivered, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = tx.ExecContext(ctx, header,
		order.ID, order.CustomerID, order.StoreID,
		order.ShippingAddress.Address, order.ShippingAddress.City,
		order.ShippingAddress.PostalCode, order.ShippingAddress.Country,
		string(order.PaymentMethod),
		order.ItemsPrice, order.TaxPrice, order.ShippingPrice, order.TotalPrice,
		string(order.Status), order.IsPaid, order.IsDelivered,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	line := `
		INSERT INTO order_items (order_id, product_id, name, price, quantity)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, item := range order.Items {
		if _, err := tx.ExecContext(ctx, line,
			order.ID, item.ProductID, item.Name, item.Price, item.Quantity,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert order: commit: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	query := `
		SELECT id, customer_id, store_id,
		       address, city, postal_code, country,
		       payment_method, items_price, tax_price, shipping_price, total_price,
		       status, payment_result_id, payment_result_status,
		       is_paid, paid_at, is_delivered, delivered_at,
		       created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = $2,
		    payment_result_id = $3,
		    payment_result_status = $4,
		    is_paid = $5,
		    paid_at = $6,
		    is_delivered = $7,
		    delivered_at = $8,
		    updated_at = $9
		WHERE id = $1
	`

	var resultID, resultStatus sql.NullString
	if order.PaymentResult != nil {
		resultID = sql.NullString{String: order.PaymentResult.ID, Valid: true}
		resultStatus = sql.NullString{String: order.PaymentResult.Status, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query,
		order.ID, string(order.Status),
		resultID, resultStatus,
		order.IsPaid, order.PaidAt,
		order.IsDelivered, order.DeliveredAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	query := `
		SELECT id, customer_id, store_id,
		       address, city, postal_code, country,
		       payment_method, items_price, tax_price, shipping_price, total_price,
		       status, payment_result_id, payment_result_status,
		       is_paid, paid_at, is_delivered, delivered_at,
		       created_at, updated_at
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list orders by customer: %w", err)
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}
	return r.attachItems(ctx, orders)
}

func (r *OrderRepository) ListByStore(ctx context.Context, storeID string, filter domain.ListFilter) ([]*domain.Order, int, error) {
	page, limit := filter.Page, filter.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	countQuery := `
		SELECT COUNT(*)
		FROM orders
		WHERE store_id = $1 AND ($2 = '' OR status = $2)
	`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, storeID, string(filter.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders by store: %w", err)
	}

	query := `
		SELECT id, customer_id, store_id,
		       address, city, postal_code, country,
		       payment_method, items_price, tax_price, shipping_price, total_price,
		       status, payment_result_id, payment_result_status,
		       is_paid, paid_at, is_delivered, delivered_at,
		       created_at, updated_at
		FROM orders
		WHERE store_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.QueryContext(ctx, query, storeID, string(filter.Status), limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders by store: %w", err)
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	orders, err = r.attachItems(ctx, orders)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	query := `
		SELECT product_id, name, price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *OrderRepository) attachItems(ctx context.Context, orders []*domain.Order) ([]*domain.Order, error) {
	for _, o := range orders {
		items, err := r.loadItems(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		o.Items = items
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o            domain.Order
		method       string
		status       string
		resultID     sql.NullString
		resultStatus sql.NullString
		paidAt       sql.NullTime
		deliveredAt  sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.StoreID,
		&o.ShippingAddress.Address, &o.ShippingAddress.City,
		&o.ShippingAddress.PostalCode, &o.ShippingAddress.Country,
		&method, &o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&status, &resultID, &resultStatus,
		&o.IsPaid, &paidAt, &o.IsDelivered, &deliveredAt,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.PaymentMethod = domain.PaymentMethod(method)
	o.Status = domain.Status(status)
	if resultID.Valid {
		o.PaymentResult = &domain.PaymentResult{ID: resultID.String, Status: resultStatus.String}
	}
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		o.DeliveredAt = &t
	}
	return &o, nil
}

func collectOrders(rows *sql.Rows) ([]*domain.Order, error) {
	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
