package worker

import (
	"context"

	domorder "github.com/bizshop/storefront/internal/domain/order"
	domoutbox "github.com/bizshop/storefront/internal/domain/outbox"
	dompayment "github.com/bizshop/storefront/internal/domain/payment"
	"github.com/bizshop/storefront/internal/observability"
)

// Worker consumes domain events from the bus and writes the audit trail.
type Worker struct {
	subscriber domoutbox.Subscriber
	log        observability.Logger
}

func New(subscriber domoutbox.Subscriber, logger observability.Logger) *Worker {
	return &Worker{
		subscriber: subscriber,
		log:        logger.With(observability.F("component", "audit_worker")),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderPlacedEvent{}.EventName(), w.handleOrderPlaced)
	w.subscriber.Subscribe(domorder.OrderStatusChangedEvent{}.EventName(), w.handleOrderStatusChanged)
	w.subscriber.Subscribe(dompayment.SettlementAppliedEvent{}.EventName(), w.handleSettlementApplied)
}

func (w *Worker) handleOrderPlaced(_ context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderPlacedEvent)
	if !ok {
		return nil
	}
	w.log.Info("audit_order_placed",
		observability.F("order_id", evt.OrderID),
		observability.F("customer_id", evt.CustomerID),
		observability.F("store_id", evt.StoreID),
		observability.F("lines", evt.Lines),
		observability.F("total_price", evt.TotalPrice),
	)
	return nil
}

func (w *Worker) handleOrderStatusChanged(_ context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderStatusChangedEvent)
	if !ok {
		return nil
	}
	w.log.Info("audit_order_status_changed",
		observability.F("order_id", evt.OrderID),
		observability.F("store_id", evt.StoreID),
		observability.F("status", string(evt.Status)),
	)
	return nil
}

func (w *Worker) handleSettlementApplied(_ context.Context, e domoutbox.Event) error {
	evt, ok := e.(dompayment.SettlementAppliedEvent)
	if !ok {
		return nil
	}
	w.log.Info("audit_settlement_applied",
		observability.F("payment_id", evt.PaymentID),
		observability.F("account_id", evt.AccountID),
		observability.F("plan", evt.PlanTag),
	)
	return nil
}
