package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/bizshop/storefront/internal/domain/payment"
	"github.com/bizshop/storefront/internal/observability"
	"github.com/bizshop/storefront/internal/observability/logctx"
)

// gatewayEnvelope mirrors the gateway's webhook wire format.
type gatewayEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Notes  struct {
				AccountID string `json:"account_id"`
				Plan      string `json:"plan"`
				Email     string `json:"email"`
			} `json:"notes"`
		} `json:"payment"`
	} `json:"payload"`
}

// WebhookProcessor verifies inbound settlement notifications and hands
// recognised events to the subscription updater. Verification happens over
// the exact raw body before anything else is read from the payload.
type WebhookProcessor struct {
	secret  string
	updater *SubscriptionUpdater

	log      observability.Logger
	events   observability.Counter
	failures observability.Counter
}

func NewWebhookProcessor(secret string, updater *SubscriptionUpdater, tel observability.Observability) *WebhookProcessor {
	if tel == nil {
		tel = observability.Nop()
	}
	return &WebhookProcessor{
		secret:   secret,
		updater:  updater,
		log:      tel.Logger().With(observability.F("component", "webhook_processor")),
		events:   tel.Metrics().Counter(observability.MWebhookEvents),
		failures: tel.Metrics().Counter(observability.MWebhookProcessFailures),
	}
}

// VerifySignature recomputes the HMAC-SHA256 of the raw payload and compares
// it against the supplied hex signature.
func VerifySignature(raw []byte, signature, secret string) error {
	if signature == "" || secret == "" {
		return payment.ErrMissingCredentials
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return payment.ErrInvalidSignature
	}
	return nil
}

// Process validates the signature and dispatches the event. A returned error
// always means the signature check failed (the transport answers 400);
// processing failures after verification are logged and absorbed so the
// gateway stops retrying.
func (p *WebhookProcessor) Process(ctx context.Context, raw []byte, signature string) error {
	logger := logctx.FromOr(ctx, p.log)

	if err := VerifySignature(raw, signature, p.secret); err != nil {
		logger.Warn("webhook_signature_rejected", observability.F("error", err.Error()))
		p.failures.Add(1, observability.L("reason", "signature"))
		return err
	}

	var env gatewayEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Error("webhook_payload_malformed", observability.F("error", err.Error()))
		p.failures.Add(1, observability.L("reason", "payload"))
		return nil
	}

	p.events.Add(1, observability.L("event", env.Event))

	switch env.Event {
	case "payment.captured", "payment.authorized":
		notif := payment.Notification{
			Event:     env.Event,
			PaymentID: env.Payload.Payment.ID,
			AccountID: env.Payload.Payment.Notes.AccountID,
			PlanTag:   env.Payload.Payment.Notes.Plan,
			Email:     env.Payload.Payment.Notes.Email,
		}
		if err := p.apply(ctx, notif); err != nil {
			logger.Error("webhook_process_failed",
				observability.F("event", env.Event),
				observability.F("payment_id", notif.PaymentID),
				observability.F("error", err.Error()),
			)
			p.failures.Add(1, observability.L("reason", "apply"))
		}
	case "payment.failed":
		logger.Info("webhook_payment_failed_recorded",
			observability.F("payment_id", env.Payload.Payment.ID),
		)
	default:
		logger.Info("webhook_event_ignored", observability.F("event", env.Event))
	}
	return nil
}

func (p *WebhookProcessor) apply(ctx context.Context, notif payment.Notification) error {
	if notif.PaymentID == "" || notif.AccountID == "" {
		return errors.New("notification missing payment or account id")
	}
	return p.updater.ApplyCharge(ctx, notif)
}
