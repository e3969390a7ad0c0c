package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrMissingCredentials = errors.New("payment: missing signature or webhook secret")
	ErrInvalidSignature   = errors.New("payment: invalid webhook signature")
	ErrInvalidAmount      = errors.New("payment: amount must be a positive number")
	ErrEventProcessed     = errors.New("payment: event already processed")
)

// GatewayError wraps an upstream gateway failure so callers can map it to a
// 502 instead of swallowing it.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string { return "payment: gateway " + e.Op + ": " + e.Err.Error() }
func (e *GatewayError) Unwrap() error { return e.Err }

// IntentRequest describes the payment the customer is asked to settle.
// Amount is in major units; the gateway wire format uses minor units.
type IntentRequest struct {
	AccountID string
	Email     string
	PlanTag   string
	Amount    decimal.Decimal
	Currency  string
	Receipt   string
}

// Intent is the gateway-side payment request presented to the customer. It is
// consumed exactly once by a matching settlement notification.
type Intent struct {
	ID          string
	Currency    string
	AmountMinor int64
	Receipt     string
}

// Gateway creates payment intents upstream. Calls carry a bounded timeout and
// surface failures as *GatewayError.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// Notification is a parsed settlement notification from the gateway.
type Notification struct {
	Event     string
	PaymentID string
	AccountID string
	PlanTag   string
	Email     string
}

// ProcessedEventStore records gateway payment ids that have already been
// applied. Insert is the idempotency gate: it fails with ErrEventProcessed on
// replay. Delete hands the key back when the apply could not complete, so the
// next delivery of the same payment gets another attempt.
type ProcessedEventStore interface {
	Insert(ctx context.Context, paymentID string) error
	Delete(ctx context.Context, paymentID string) error
}
