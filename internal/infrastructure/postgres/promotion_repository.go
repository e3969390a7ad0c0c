package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/bizshop/storefront/internal/domain/promotion"
)

// PromotionRepository stores the single promotion config row under a fixed id.
type PromotionRepository struct {
	db *sql.DB
}

func NewPromotionRepository(db *sql.DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

func (r *PromotionRepository) Get(ctx context.Context) (*domain.Config, error) {
	query := `
		SELECT max_users, users_claimed, is_active, reward, discounted_amount, duration_days, updated_at
		FROM promotion_config
		WHERE id = 1
	`

	var (
		cfg    domain.Config
		reward string
	)
	err := r.db.QueryRowContext(ctx, query).
		Scan(&cfg.MaxUsers, &cfg.UsersClaimed, &cfg.Active, &reward, &cfg.DiscountedAmount, &cfg.DurationDays, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r.insertDefault(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("get promotion config: %w", err)
	}
	cfg.Reward = domain.RewardKind(reward)
	return &cfg, nil
}

func (r *PromotionRepository) insertDefault(ctx context.Context) (*domain.Config, error) {
	cfg := domain.DefaultConfig()
	query := `
		INSERT INTO promotion_config (id, max_users, users_claimed, is_active, reward, discounted_amount, duration_days, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		cfg.MaxUsers, cfg.UsersClaimed, cfg.Active, string(cfg.Reward), cfg.DiscountedAmount, cfg.DurationDays,
	)
	if err != nil {
		return nil, fmt.Errorf("insert default promotion config: %w", err)
	}
	return r.Get(ctx)
}

// ReserveSlot bumps the claim counter with a bound baked into the WHERE
// clause. Competing claims for the last slot resolve to one winner.
func (r *PromotionRepository) ReserveSlot(ctx context.Context) error {
	query := `
		UPDATE promotion_config
		SET users_claimed = users_claimed + 1,
		    updated_at = NOW()
		WHERE id = 1 AND is_active AND users_claimed < max_users
	`

	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("reserve promotion slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve promotion slot: %w", err)
	}
	if affected == 0 {
		return domain.ErrUnavailable
	}
	return nil
}

func (r *PromotionRepository) ReleaseSlot(ctx context.Context) error {
	query := `
		UPDATE promotion_config
		SET users_claimed = users_claimed - 1,
		    updated_at = NOW()
		WHERE id = 1 AND users_claimed > 0
	`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("release promotion slot: %w", err)
	}
	return nil
}
