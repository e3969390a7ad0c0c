package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/bizshop/storefront/internal/domain/promotion"
)

type PromotionRepository struct {
	mu  sync.Mutex
	cfg *domain.Config
}

func NewPromotionRepository() *PromotionRepository {
	return &PromotionRepository{}
}

// SetConfig replaces the singleton config, for admin bootstrap and tests.
func (r *PromotionRepository) SetConfig(cfg *domain.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg.Clone()
}

func (r *PromotionRepository) Get(ctx context.Context) (*domain.Config, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg == nil {
		r.cfg = domain.DefaultConfig()
	}
	return r.cfg.Clone(), nil
}

// ReserveSlot increments the claim counter under the same lock that checks
// the bound, which is the in-memory equivalent of a conditional update.
func (r *PromotionRepository) ReserveSlot(ctx context.Context) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg == nil {
		r.cfg = domain.DefaultConfig()
	}
	if !r.cfg.Active || r.cfg.UsersClaimed >= r.cfg.MaxUsers {
		return domain.ErrUnavailable
	}
	r.cfg.UsersClaimed++
	r.cfg.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *PromotionRepository) ReleaseSlot(ctx context.Context) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg == nil || r.cfg.UsersClaimed == 0 {
		return nil
	}
	r.cfg.UsersClaimed--
	r.cfg.UpdatedAt = time.Now().UTC()
	return nil
}
