package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("catalog: product not found")
	ErrInvalidQuantity = errors.New("catalog: quantity must be greater than zero")
)

// InsufficientStockError reports a failed conditional decrement together with
// the stock level observed at the time of the attempt.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return "catalog: insufficient stock for product " + e.ProductID
}

// Product is the catalog snapshot the order flow reads. Price and stock are
// owned by merchant-side CRUD; this core only decrements stock.
type Product struct {
	ID        string
	StoreID   string
	Name      string
	Price     decimal.Decimal
	Stock     int
	UpdatedAt time.Time
}
