package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/bizshop/storefront/internal/domain/account"
)

type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[string]*domain.Account),
	}
}

func (r *AccountRepository) Seed(accounts ...*domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range accounts {
		r.accounts[a.ID] = a.Clone()
	}
}

func (r *AccountRepository) Get(ctx context.Context, id string) (*domain.Account, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return acct.Clone(), nil
}

func (r *AccountRepository) UpdateSubscription(ctx context.Context, acct *domain.Account) error {
	_ = ctx
	if acct == nil || acct.ID == "" {
		return domain.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[acct.ID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Tier = acct.Tier
	stored.QuotaUsed = acct.QuotaUsed
	if acct.ExpiresAt != nil {
		t := *acct.ExpiresAt
		stored.ExpiresAt = &t
	} else {
		stored.ExpiresAt = nil
	}
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkQuotaUsed is the conditional flag set: it fails when the flag is
// already up, so the same account cannot claim twice even concurrently.
func (r *AccountRepository) MarkQuotaUsed(ctx context.Context, id string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	if acct.QuotaUsed {
		return domain.ErrAlreadyClaimed
	}
	acct.QuotaUsed = true
	acct.UpdatedAt = time.Now().UTC()
	return nil
}
