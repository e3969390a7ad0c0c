package order

import "context"

// ListFilter narrows merchant-side order listings.
type ListFilter struct {
	Status Status
	Page   int
	Limit  int
}

type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, order *Order) error
	ListByCustomer(ctx context.Context, customerID string) ([]*Order, error)
	ListByStore(ctx context.Context, storeID string, filter ListFilter) ([]*Order, int, error)
}
