package catalog

import "context"

type Repository interface {
	Get(ctx context.Context, productID string) (*Product, error)

	// DecrementStock subtracts quantity from the product's stock only when
	// enough stock remains. The check and the subtraction happen as one
	// conditional update; on failure it returns *InsufficientStockError and
	// leaves stock untouched.
	DecrementStock(ctx context.Context, productID string, quantity int) error

	// RestoreStock adds quantity back after a failed multi-line decrement.
	RestoreStock(ctx context.Context, productID string, quantity int) error
}
