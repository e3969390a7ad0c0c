package account

import "context"

type Repository interface {
	Get(ctx context.Context, id string) (*Account, error)

	// UpdateSubscription persists tier, expiry and quota flag changes.
	UpdateSubscription(ctx context.Context, acct *Account) error

	// MarkQuotaUsed sets the quota-used flag only when it is still unset.
	// Returns ErrAlreadyClaimed when the flag was already set, so two
	// concurrent claims by the same account cannot both succeed.
	MarkQuotaUsed(ctx context.Context, id string) error
}
