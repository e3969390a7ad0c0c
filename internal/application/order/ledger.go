package order

import (
	"context"
	"errors"

	"github.com/bizshop/storefront/internal/domain/catalog"
	"github.com/bizshop/storefront/internal/observability"
	"github.com/bizshop/storefront/internal/observability/logctx"
)

// Line is one stock decrement within an order.
type Line struct {
	ProductID string
	Name      string
	Quantity  int
}

// Ledger applies all stock decrements of one order as a single all-or-nothing
// unit. Each per-product decrement is a conditional atomic update in the
// repository; when a later line fails, the lines already decremented are
// restored before the error is returned.
type Ledger struct {
	products  catalog.Repository
	log       observability.Logger
	conflicts observability.Counter
}

func NewLedger(products catalog.Repository, tel observability.Observability) *Ledger {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Ledger{
		products:  products,
		log:       tel.Logger().With(observability.F("component", "inventory_ledger")),
		conflicts: tel.Metrics().Counter(observability.MStockConflicts),
	}
}

// DecrementAll decrements stock for every line or for none of them.
func (l *Ledger) DecrementAll(ctx context.Context, lines []Line) error {
	for i, line := range lines {
		if line.Quantity <= 0 {
			l.rollback(ctx, lines[:i])
			return catalog.ErrInvalidQuantity
		}
		if err := l.products.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
			l.rollback(ctx, lines[:i])

			var insufficient *catalog.InsufficientStockError
			if errors.As(err, &insufficient) {
				if insufficient.Name == "" {
					insufficient.Name = line.Name
				}
				l.conflicts.Add(1, observability.L("product_id", line.ProductID))
			}
			return err
		}
	}
	return nil
}

// RestoreAll reverses a committed decrement, e.g. when the order record fails
// to persist afterwards.
func (l *Ledger) RestoreAll(ctx context.Context, lines []Line) {
	l.rollback(ctx, lines)
}

func (l *Ledger) rollback(ctx context.Context, decremented []Line) {
	logger := logctx.FromOr(ctx, l.log)
	for _, line := range decremented {
		if err := l.products.RestoreStock(ctx, line.ProductID, line.Quantity); err != nil {
			// Stock stays under-counted until reconciliation; this must never
			// pass silently.
			logger.Error("stock_restore_failed",
				observability.F("product_id", line.ProductID),
				observability.F("quantity", line.Quantity),
				observability.F("error", err.Error()),
			)
		}
	}
}
