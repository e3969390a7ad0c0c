package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizshop/storefront/internal/domain/account"
	"github.com/bizshop/storefront/internal/domain/payment"
	"github.com/bizshop/storefront/internal/domain/promotion"
)

const testSecret = "whsec_test"

func sign(raw []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)
	return hex.EncodeToString(mac.Sum(nil))
}

func settlementBody(event, paymentID, accountID, plan string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":%q,"payload":{"payment":{"id":%q,"status":"captured","notes":{"account_id":%q,"plan":%q,"email":"a@example.com"}}}}`,
		event, paymentID, accountID, plan,
	))
}

func newWebhookFixture(accounts ...*account.Account) (*WebhookProcessor, *billingFixture) {
	f := newBillingFixture(accounts...)
	return NewWebhookProcessor(testSecret, f.updater, nil), f
}

func TestWebhook_TamperedSignatureRejectedBeforeAnyWrite(t *testing.T) {
	proc, f := newWebhookFixture(customer("a1"))

	body := settlementBody("payment.captured", "pay_1", "a1", string(account.TierPaid))
	err := proc.Process(context.Background(), body, sign(body, "wrong-secret"))

	assert.ErrorIs(t, err, payment.ErrInvalidSignature)

	stored, getErr := f.accounts.Get(context.Background(), "a1")
	require.NoError(t, getErr)
	assert.Equal(t, account.TierFree, stored.Tier)
	assert.Nil(t, stored.ExpiresAt)
}

func TestWebhook_MissingSignatureRejected(t *testing.T) {
	proc, _ := newWebhookFixture(customer("a1"))

	body := settlementBody("payment.captured", "pay_1", "a1", string(account.TierPaid))
	err := proc.Process(context.Background(), body, "")

	assert.ErrorIs(t, err, payment.ErrMissingCredentials)
}

func TestWebhook_CapturedActivatesPaidPlan(t *testing.T) {
	proc, f := newWebhookFixture(customer("a1"))

	body := settlementBody("payment.captured", "pay_1", "a1", string(account.TierPaid))
	err := proc.Process(context.Background(), body, sign(body, testSecret))
	require.NoError(t, err)

	stored, err := f.accounts.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, account.TierPaid, stored.Tier)
	require.NotNil(t, stored.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *stored.ExpiresAt, time.Minute)
}

func TestWebhook_ReplayAppliesExactlyOnce(t *testing.T) {
	proc, f := newWebhookFixture(customer("a1"))

	body := settlementBody("payment.captured", "pay_1", "a1", string(account.TierPaid))
	require.NoError(t, proc.Process(context.Background(), body, sign(body, testSecret)))

	first, err := f.accounts.Get(context.Background(), "a1")
	require.NoError(t, err)
	require.NotNil(t, first.ExpiresAt)
	firstExpiry := *first.ExpiresAt

	for i := 0; i < 5; i++ {
		require.NoError(t, proc.Process(context.Background(), body, sign(body, testSecret)))
	}

	after, err := f.accounts.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, account.TierPaid, after.Tier)
	require.NotNil(t, after.ExpiresAt)
	assert.True(t, after.ExpiresAt.Equal(firstExpiry))
}

func TestWebhook_PromotionalSettlementClaimsSlot(t *testing.T) {
	proc, f := newWebhookFixture(customer("a1"))
	f.promos.SetConfig(&promotion.Config{
		MaxUsers:         10,
		Active:           true,
		Reward:           promotion.RewardDiscountedCharge,
		DiscountedAmount: decimal.NewFromInt(499),
		DurationDays:     45,
	})

	body := settlementBody("payment.captured", "pay_1", "a1", string(account.TierPromotional))
	require.NoError(t, proc.Process(context.Background(), body, sign(body, testSecret)))

	stored, err := f.accounts.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, account.TierPromotional, stored.Tier)
	assert.True(t, stored.QuotaUsed)
	require.NotNil(t, stored.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(45*24*time.Hour), *stored.ExpiresAt, time.Minute)

	cfg, err := f.promos.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.UsersClaimed)
}

func TestWebhook_PromotionalSettlementHonoredWhenSlotsGone(t *testing.T) {
	// The customer already paid; a full counter must not void the purchase.
	proc, f := newWebhookFixture(customer("a1"))
	f.promos.SetConfig(&promotion.Config{
		MaxUsers:     1,
		UsersClaimed: 1,
		Active:       true,
		Reward:       promotion.RewardDiscountedCharge,
		DurationDays: 45,
	})

	body := settlementBody("payment.captured", "pay_1", "a1", string(account.TierPromotional))
	require.NoError(t, proc.Process(context.Background(), body, sign(body, testSecret)))

	stored, err := f.accounts.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, account.TierPromotional, stored.Tier)
	assert.False(t, stored.QuotaUsed)
	require.NotNil(t, stored.ExpiresAt)
	// Falls back to the default duration, not the promo's.
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *stored.ExpiresAt, time.Minute)
}

func TestWebhook_FailedApplyReleasesIdempotencyKey(t *testing.T) {
	// No account is provisioned yet, so the first delivery cannot apply.
	proc, f := newWebhookFixture()

	body := settlementBody("payment.captured", "pay_1", "a1", string(account.TierPaid))
	require.NoError(t, proc.Process(context.Background(), body, sign(body, testSecret)))

	// The key was handed back, so a redelivery after the account exists
	// applies instead of no-opping at the gate.
	f.accounts.Seed(customer("a1"))
	require.NoError(t, proc.Process(context.Background(), body, sign(body, testSecret)))

	stored, err := f.accounts.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, account.TierPaid, stored.Tier)
	require.NotNil(t, stored.ExpiresAt)
}

func TestWebhook_UnknownEventIgnored(t *testing.T) {
	proc, f := newWebhookFixture(customer("a1"))

	body := settlementBody("payment.refunded", "pay_1", "a1", string(account.TierPaid))
	require.NoError(t, proc.Process(context.Background(), body, sign(body, testSecret)))

	stored, err := f.accounts.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, account.TierFree, stored.Tier)
}

func TestWebhook_FailedEventDoesNotMutate(t *testing.T) {
	proc, f := newWebhookFixture(customer("a1"))

	body := settlementBody("payment.failed", "pay_1", "a1", string(account.TierPaid))
	require.NoError(t, proc.Process(context.Background(), body, sign(body, testSecret)))

	stored, err := f.accounts.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, account.TierFree, stored.Tier)
}

func TestWebhook_MalformedPayloadAcknowledged(t *testing.T) {
	proc, _ := newWebhookFixture(customer("a1"))

	body := []byte(`{"event": "payment.captured", "payload":`)
	err := proc.Process(context.Background(), body, sign(body, testSecret))

	// Signature was valid, so the transport should not ask the gateway to retry.
	assert.NoError(t, err)
}

func TestWebhook_UnknownPlanTagAbsorbed(t *testing.T) {
	proc, f := newWebhookFixture(customer("a1"))

	body := settlementBody("payment.captured", "pay_1", "a1", "Gold")
	require.NoError(t, proc.Process(context.Background(), body, sign(body, testSecret)))

	stored, err := f.accounts.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, account.TierFree, stored.Tier)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)

	assert.NoError(t, VerifySignature(body, sign(body, testSecret), testSecret))
	assert.ErrorIs(t, VerifySignature(body, sign(body, "other"), testSecret), payment.ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(body, "", testSecret), payment.ErrMissingCredentials)
	assert.ErrorIs(t, VerifySignature(body, sign(body, testSecret), ""), payment.ErrMissingCredentials)
}
