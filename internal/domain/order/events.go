package order

import "time"

// OrderPlacedEvent is emitted after a cart has been committed: stock is
// decremented and the order record persisted.
type OrderPlacedEvent struct {
	OrderID    string
	CustomerID string
	StoreID    string
	Lines      int
	TotalPrice string
	OccurredAt time.Time
}

func (OrderPlacedEvent) EventName() string { return "order.placed" }

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		StoreID:    o.StoreID,
		Lines:      len(o.Items),
		TotalPrice: o.TotalPrice.String(),
		OccurredAt: time.Now().UTC(),
	}
}

// OrderStatusChangedEvent is emitted on merchant status transitions.
type OrderStatusChangedEvent struct {
	OrderID    string
	StoreID    string
	Status     Status
	OccurredAt time.Time
}

func (OrderStatusChangedEvent) EventName() string { return "order.status_changed" }

func NewOrderStatusChangedEvent(o *Order) OrderStatusChangedEvent {
	return OrderStatusChangedEvent{
		OrderID:    o.ID,
		StoreID:    o.StoreID,
		Status:     o.Status,
		OccurredAt: time.Now().UTC(),
	}
}
