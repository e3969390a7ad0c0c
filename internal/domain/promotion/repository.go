package promotion

import "context"

type Repository interface {
	// Get returns the singleton config, creating the default one on first
	// access.
	Get(ctx context.Context) (*Config, error)

	// ReserveSlot increments UsersClaimed by one, guarded by
	// Active && UsersClaimed < MaxUsers inside the same atomic update.
	// Returns ErrUnavailable when the guard fails; two concurrent
	// reservations can never jointly exceed MaxUsers.
	ReserveSlot(ctx context.Context) error

	// ReleaseSlot undoes a reservation whose follow-up step failed.
	ReleaseSlot(ctx context.Context) error
}
