package billing

import (
	"context"
	"errors"
	"time"

	"github.com/bizshop/storefront/internal/domain/account"
	domoutbox "github.com/bizshop/storefront/internal/domain/outbox"
	"github.com/bizshop/storefront/internal/domain/payment"
	"github.com/bizshop/storefront/internal/domain/promotion"
	"github.com/bizshop/storefront/internal/observability"
	"github.com/bizshop/storefront/internal/observability/logctx"
)

const defaultChargeDuration = 30 * 24 * time.Hour

// SubscriptionUpdater is the only writer of subscription fields. Free and
// promotional grants apply synchronously; gateway charges arrive through the
// webhook and are applied exactly once.
type SubscriptionUpdater struct {
	accounts  account.Repository
	promos    promotion.Repository
	events    payment.ProcessedEventStore
	publisher domoutbox.Publisher

	log    observability.Logger
	claims observability.Counter
}

func NewSubscriptionUpdater(
	accounts account.Repository,
	promos promotion.Repository,
	events payment.ProcessedEventStore,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *SubscriptionUpdater {
	if tel == nil {
		tel = observability.Nop()
	}
	return &SubscriptionUpdater{
		accounts:  accounts,
		promos:    promos,
		events:    events,
		publisher: publisher,
		log:       tel.Logger().With(observability.F("component", "subscription_updater")),
		claims:    tel.Metrics().Counter(observability.MPromotionClaims),
	}
}

// ApplyFreePlan downgrades the account: Free tier, no expiry, and the
// promotional quota flag is handed back.
func (u *SubscriptionUpdater) ApplyFreePlan(ctx context.Context, accountID string) (*account.Account, error) {
	acct, err := u.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	acct.Tier = account.TierFree
	acct.ExpiresAt = nil
	acct.QuotaUsed = false
	if err := u.accounts.UpdateSubscription(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// ApplyPromotionalFreeGrant activates the promotional tier for durationDays.
// The quota bookkeeping has already happened in the reservation step.
func (u *SubscriptionUpdater) ApplyPromotionalFreeGrant(ctx context.Context, accountID string, durationDays int) (*account.Account, error) {
	acct, err := u.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	expiry := time.Now().UTC().Add(time.Duration(durationDays) * 24 * time.Hour)
	acct.Tier = account.TierPromotional
	acct.ExpiresAt = &expiry
	acct.QuotaUsed = true
	if err := u.accounts.UpdateSubscription(ctx, acct); err != nil {
		return nil, err
	}
	u.claims.Add(1, observability.L("reward", "free_grant"))
	return acct, nil
}

// ApplyCharge applies a verified settlement notification. The processed-event
// store keyed by the gateway payment id makes replays a no-op: applying the
// same notification N times leaves the account exactly as one application.
func (u *SubscriptionUpdater) ApplyCharge(ctx context.Context, notif payment.Notification) error {
	logger := logctx.FromOr(ctx, u.log).With(
		observability.F("payment_id", notif.PaymentID),
		observability.F("account_id", notif.AccountID),
	)

	if err := u.events.Insert(ctx, notif.PaymentID); err != nil {
		if errors.Is(err, payment.ErrEventProcessed) {
			logger.Info("settlement_replay_ignored")
			return nil
		}
		return err
	}

	tier, ok := account.ParseTier(notif.PlanTag)
	if !ok || tier == account.TierFree {
		logger.Warn("settlement_unknown_plan", observability.F("plan", notif.PlanTag))
		return nil
	}

	acct, err := u.accounts.Get(ctx, notif.AccountID)
	if err != nil {
		u.releaseEventKey(ctx, notif.PaymentID, logger)
		return err
	}

	duration := defaultChargeDuration
	if tier == account.TierPromotional && !acct.QuotaUsed {
		// Claim the promised slot at settlement time, bounded by MaxUsers.
		if err := u.promos.ReserveSlot(ctx); err != nil {
			logger.Warn("promotion_slot_claim_failed", observability.F("error", err.Error()))
		} else if err := u.accounts.MarkQuotaUsed(ctx, acct.ID); err != nil {
			if releaseErr := u.promos.ReleaseSlot(ctx); releaseErr != nil {
				logger.Error("promotion_slot_release_failed", observability.F("error", releaseErr.Error()))
			}
		} else {
			acct.QuotaUsed = true
			u.claims.Add(1, observability.L("reward", "discounted_charge"))
			if cfg, cfgErr := u.promos.Get(ctx); cfgErr == nil && cfg.DurationDays > 0 {
				duration = time.Duration(cfg.DurationDays) * 24 * time.Hour
			}
		}
	}

	expiry := time.Now().UTC().Add(duration)
	acct.Tier = tier
	acct.ExpiresAt = &expiry
	if err := u.accounts.UpdateSubscription(ctx, acct); err != nil {
		u.releaseEventKey(ctx, notif.PaymentID, logger)
		return err
	}

	if u.publisher != nil {
		_ = u.publisher.Publish(ctx, payment.SettlementAppliedEvent{
			PaymentID:  notif.PaymentID,
			AccountID:  notif.AccountID,
			PlanTag:    notif.PlanTag,
			OccurredAt: time.Now().UTC(),
		})
	}
	logger.Info("subscription_activated",
		observability.F("tier", string(tier)),
		observability.F("expires_at", expiry),
	)
	return nil
}

// releaseEventKey hands the idempotency key back after a failed apply. The
// account was not updated, so the next delivery of the same payment must pass
// the gate again instead of no-opping a lost settlement.
func (u *SubscriptionUpdater) releaseEventKey(ctx context.Context, paymentID string, logger observability.Logger) {
	if err := u.events.Delete(ctx, paymentID); err != nil {
		logger.Error("settlement_key_release_failed",
			observability.F("payment_id", paymentID),
			observability.F("error", err.Error()),
		)
	}
}
