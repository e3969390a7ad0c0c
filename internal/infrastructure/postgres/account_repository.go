package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/bizshop/storefront/internal/domain/account"
)

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Get(ctx context.Context, id string) (*domain.Account, error) {
	query := `
		SELECT id, email, role, store_id, tier, expires_at, quota_used, updated_at
		FROM accounts
		WHERE id = $1
	`

	var (
		acct      domain.Account
		role      string
		tier      string
		storeID   sql.NullString
		expiresAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&acct.ID, &acct.Email, &role, &storeID, &tier, &expiresAt, &acct.QuotaUsed, &acct.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	acct.Role = domain.Role(role)
	acct.Tier = domain.Tier(tier)
	acct.StoreID = storeID.String
	if expiresAt.Valid {
		t := expiresAt.Time
		acct.ExpiresAt = &t
	}
	return &acct, nil
}

func (r *AccountRepository) UpdateSubscription(ctx context.Context, acct *domain.Account) error {
	query := `
		UPDATE accounts
		SET tier = $2,
		    expires_at = $3,
		    quota_used = $4,
		    updated_at = NOW()
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, acct.ID, string(acct.Tier), acct.ExpiresAt, acct.QuotaUsed)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkQuotaUsed sets the flag only when it is still clear, so concurrent
// claims by one account collapse to a single winner.
func (r *AccountRepository) MarkQuotaUsed(ctx context.Context, id string) error {
	query := `
		UPDATE accounts
		SET quota_used = TRUE,
		    updated_at = NOW()
		WHERE id = $1 AND quota_used = FALSE
	`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark quota used: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark quota used: %w", err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return domain.ErrAlreadyClaimed
}
