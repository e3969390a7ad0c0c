package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bizshop/storefront/internal/domain/account"
	"github.com/bizshop/storefront/internal/domain/payment"
	"github.com/bizshop/storefront/internal/domain/promotion"
	"github.com/bizshop/storefront/internal/observability"
	"github.com/bizshop/storefront/internal/observability/logctx"
)

const useCaseSelectPlan = "billing.select_plan"

// ErrUnknownPlan rejects plan types outside Free, Promotional and Paid.
var ErrUnknownPlan = errors.New("billing: unknown plan type")

// Service drives plan selection: free downgrades, promotional claims and paid
// upgrades via the payment gateway.
type Service struct {
	accounts account.Repository
	promos   promotion.Repository
	gateway  payment.Gateway
	updater  *SubscriptionUpdater
	tel      observability.Observability

	currency          string
	defaultPaidAmount decimal.Decimal

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewService(
	accounts account.Repository,
	promos promotion.Repository,
	gateway payment.Gateway,
	updater *SubscriptionUpdater,
	currency string,
	defaultPaidAmount decimal.Decimal,
	tel observability.Observability,
) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	if currency == "" {
		currency = "INR"
	}
	return &Service{
		accounts:          accounts,
		promos:            promos,
		gateway:           gateway,
		updater:           updater,
		tel:               tel,
		currency:          currency,
		defaultPaidAmount: defaultPaidAmount,
		log:               tel.Logger().With(observability.F("component", "billing_service")),
		reqCounter:        tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram:      tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

// PromotionStatus returns the public offer status, creating the default
// config on first access.
func (s *Service) PromotionStatus(ctx context.Context) (promotion.Status, error) {
	cfg, err := s.promos.Get(ctx)
	if err != nil {
		return promotion.Status{}, err
	}
	return cfg.Status(), nil
}

// Subscription returns the account's current subscription view.
func (s *Service) Subscription(ctx context.Context, accountID string) (*account.Account, error) {
	return s.accounts.Get(ctx, accountID)
}

// PlanSelection is the outcome of SelectPlan: either an immediately activated
// subscription or a payment intent the customer still has to settle.
type PlanSelection struct {
	Activated bool
	Tier      account.Tier
	ExpiresAt *time.Time
	Intent    *payment.Intent
}

// SelectPlan routes a plan request. Free plans activate immediately; a
// promotional FreeGrant atomically claims a slot and activates; promotional
// DiscountedCharge and Paid plans produce a gateway intent whose settlement
// notification finishes the activation.
func (s *Service) SelectPlan(ctx context.Context, accountID, planType string, amount decimal.Decimal) (_ *PlanSelection, err error) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCaseSelectPlan))

	ctx, span := s.tel.Tracer().Start(ctx, "UC.SelectPlan",
		attribute.String("billing.account_id", accountID),
		attribute.String("billing.plan", planType),
	)
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()
		s.reqCounter.Add(1,
			observability.L("use_case", useCaseSelectPlan),
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(time.Since(start).Seconds(),
			observability.L("use_case", useCaseSelectPlan),
		)
	}()

	tier, ok := account.ParseTier(planType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, planType)
	}

	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	switch tier {
	case account.TierFree:
		updated, err := s.updater.ApplyFreePlan(ctx, acct.ID)
		if err != nil {
			return nil, err
		}
		logger.Info("plan_downgraded_free", observability.F("account_id", acct.ID))
		return &PlanSelection{Activated: true, Tier: updated.Tier}, nil

	case account.TierPromotional:
		return s.selectPromotional(ctx, acct, logger)

	default: // TierPaid
		if amount.IsZero() {
			amount = s.defaultPaidAmount
		}
		if !amount.IsPositive() {
			return nil, payment.ErrInvalidAmount
		}
		intent, err := s.createIntent(ctx, acct, amount, string(account.TierPaid))
		if err != nil {
			return nil, err
		}
		return &PlanSelection{Tier: account.TierPaid, Intent: intent}, nil
	}
}

func (s *Service) selectPromotional(ctx context.Context, acct *account.Account, logger observability.Logger) (*PlanSelection, error) {
	cfg, err := s.promos.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.AvailableSlots() == 0 {
		return nil, promotion.ErrUnavailable
	}
	if acct.QuotaUsed {
		return nil, account.ErrAlreadyClaimed
	}

	if cfg.Reward == promotion.RewardDiscountedCharge {
		// The slot is consumed only once the gateway confirms settlement;
		// an abandoned intent must not burn a claim.
		intent, err := s.createIntent(ctx, acct, cfg.DiscountedAmount, string(account.TierPromotional))
		if err != nil {
			return nil, err
		}
		return &PlanSelection{Tier: account.TierPromotional, Intent: intent}, nil
	}

	// FreeGrant: claim the slot now, bounded by MaxUsers.
	if err := s.promos.ReserveSlot(ctx); err != nil {
		return nil, err
	}
	if err := s.accounts.MarkQuotaUsed(ctx, acct.ID); err != nil {
		if releaseErr := s.promos.ReleaseSlot(ctx); releaseErr != nil {
			logger.Error("promotion_slot_release_failed",
				observability.F("account_id", acct.ID),
				observability.F("error", releaseErr.Error()),
			)
		}
		return nil, err
	}

	updated, err := s.updater.ApplyPromotionalFreeGrant(ctx, acct.ID, cfg.DurationDays)
	if err != nil {
		return nil, err
	}
	logger.Info("promotion_claimed",
		observability.F("account_id", acct.ID),
		observability.F("duration_days", cfg.DurationDays),
	)
	return &PlanSelection{Activated: true, Tier: updated.Tier, ExpiresAt: updated.ExpiresAt}, nil
}

func (s *Service) createIntent(ctx context.Context, acct *account.Account, amount decimal.Decimal, planTag string) (*payment.Intent, error) {
	if !amount.IsPositive() {
		return nil, payment.ErrInvalidAmount
	}
	receipt := fmt.Sprintf("rcpt_%s_%d", acct.ID, time.Now().UnixNano())
	return s.gateway.CreateIntent(ctx, payment.IntentRequest{
		AccountID: acct.ID,
		Email:     acct.Email,
		PlanTag:   planTag,
		Amount:    amount,
		Currency:  s.currency,
		Receipt:   receipt,
	})
}
