package payment

import "time"

// SettlementAppliedEvent is emitted after a verified gateway notification has
// been applied to an account exactly once.
type SettlementAppliedEvent struct {
	PaymentID  string
	AccountID  string
	PlanTag    string
	OccurredAt time.Time
}

func (SettlementAppliedEvent) EventName() string { return "payment.settlement_applied" }
