package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizshop/storefront/internal/domain/account"
	"github.com/bizshop/storefront/internal/domain/catalog"
	"github.com/bizshop/storefront/internal/domain/payment"
	"github.com/bizshop/storefront/internal/domain/promotion"
)

func TestProductRepository_DecrementNeverGoesNegative(t *testing.T) {
	repo := NewProductRepository()
	repo.Seed(&catalog.Product{ID: "p1", StoreID: "s1", Name: "Mug", Price: decimal.NewFromInt(5), Stock: 3})

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.DecrementStock(context.Background(), "p1", 1)
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *catalog.InsufficientStockError
		require.True(t, errors.As(err, &insufficient))
		assert.Equal(t, 1, insufficient.Requested)
	}
	assert.Equal(t, 3, succeeded)

	p, err := repo.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func TestProductRepository_GetReturnsCopy(t *testing.T) {
	repo := NewProductRepository()
	repo.Seed(&catalog.Product{ID: "p1", StoreID: "s1", Name: "Mug", Price: decimal.NewFromInt(5), Stock: 3})

	p, err := repo.Get(context.Background(), "p1")
	require.NoError(t, err)
	p.Stock = 999

	again, err := repo.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, again.Stock)
}

func TestAccountRepository_MarkQuotaUsedIsOneShot(t *testing.T) {
	repo := NewAccountRepository()
	repo.Seed(&account.Account{ID: "a1", Role: account.RoleCustomer, Tier: account.TierFree})

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.MarkQuotaUsed(context.Background(), "a1")
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, account.ErrAlreadyClaimed)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestPromotionRepository_ReserveSlotBounded(t *testing.T) {
	repo := NewPromotionRepository()
	repo.SetConfig(&promotion.Config{
		MaxUsers:     3,
		Active:       true,
		Reward:       promotion.RewardFreeGrant,
		DurationDays: 30,
	})

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.ReserveSlot(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, promotion.ErrUnavailable)
		}
	}
	assert.Equal(t, 3, succeeded)

	cfg, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.UsersClaimed)
}

func TestPromotionRepository_ReleaseSlotCompensates(t *testing.T) {
	repo := NewPromotionRepository()
	repo.SetConfig(&promotion.Config{
		MaxUsers:     1,
		Active:       true,
		Reward:       promotion.RewardFreeGrant,
		DurationDays: 30,
	})

	require.NoError(t, repo.ReserveSlot(context.Background()))
	require.ErrorIs(t, repo.ReserveSlot(context.Background()), promotion.ErrUnavailable)

	require.NoError(t, repo.ReleaseSlot(context.Background()))
	require.NoError(t, repo.ReserveSlot(context.Background()))
}

func TestPromotionRepository_GetCreatesDefault(t *testing.T) {
	repo := NewPromotionRepository()

	cfg, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.MaxUsers)
	assert.True(t, cfg.Active)
	assert.Equal(t, promotion.RewardFreeGrant, cfg.Reward)
}

func TestProcessedEventStore_InsertOnceThenReplay(t *testing.T) {
	store := NewProcessedEventStore()

	require.NoError(t, store.Insert(context.Background(), "pay_1"))
	assert.ErrorIs(t, store.Insert(context.Background(), "pay_1"), payment.ErrEventProcessed)
	require.NoError(t, store.Insert(context.Background(), "pay_2"))
}

func TestProcessedEventStore_DeleteReopensGate(t *testing.T) {
	store := NewProcessedEventStore()

	require.NoError(t, store.Insert(context.Background(), "pay_1"))
	require.NoError(t, store.Delete(context.Background(), "pay_1"))
	require.NoError(t, store.Insert(context.Background(), "pay_1"))
}
