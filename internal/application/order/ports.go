package order

// IDGenerator yields unique identifiers for new orders.
type IDGenerator interface {
	NewID() string
}
