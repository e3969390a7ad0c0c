package order

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bizshop/storefront/internal/domain/catalog"
	domain "github.com/bizshop/storefront/internal/domain/order"
	domoutbox "github.com/bizshop/storefront/internal/domain/outbox"
	"github.com/bizshop/storefront/internal/observability"
	"github.com/bizshop/storefront/internal/observability/logctx"
)

const (
	useCasePlaceOrder   = "order.place"
	useCaseUpdateStatus = "order.update_status"
	publishTimeout      = 300 * time.Millisecond
)

// Service assembles carts into committed orders and handles merchant status
// transitions.
type Service struct {
	orders    domain.Repository
	products  catalog.Repository
	ledger    *Ledger
	idGen     IDGenerator
	publisher domoutbox.Publisher
	tel       observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewService(
	orders domain.Repository,
	products catalog.Repository,
	ledger *Ledger,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		orders:       orders,
		products:     products,
		ledger:       ledger,
		idGen:        idGen,
		publisher:    publisher,
		tel:          tel,
		log:          tel.Logger().With(observability.F("component", "order_service")),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

type CartItem struct {
	ProductID string
	Quantity  int
}

type PlaceOrderInput struct {
	CustomerID      string
	Items           []CartItem
	ShippingAddress domain.ShippingAddress
	PaymentMethod   string
}

// PlaceOrder validates the cart, snapshots product name and price per line,
// decrements stock atomically across all lines, computes totals and persists
// the order with status Processing.
func (s *Service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (_ *domain.Order, err error) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCasePlaceOrder))

	ctx, span := s.tel.Tracer().Start(ctx, "UC.PlaceOrder",
		attribute.String("order.customer_id", input.CustomerID),
		attribute.Int("order.lines", len(input.Items)),
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
			observability.L("use_case", useCasePlaceOrder),
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(time.Since(start).Seconds(),
			observability.L("use_case", useCasePlaceOrder),
		)
	}()

	if len(input.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	if !input.ShippingAddress.Complete() {
		return nil, domain.ErrIncompleteAddress
	}
	method, err := domain.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, err
	}

	// Snapshot every line before touching stock: price and name are frozen
	// here, and the single-store invariant is checked across the whole cart.
	items := make([]domain.LineItem, 0, len(input.Items))
	lines := make([]Line, 0, len(input.Items))
	storeID := ""
	for _, cartItem := range input.Items {
		if cartItem.ProductID == "" || cartItem.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		product, err := s.products.Get(ctx, cartItem.ProductID)
		if err != nil {
			return nil, err
		}
		if storeID == "" {
			storeID = product.StoreID
		} else if product.StoreID != storeID {
			return nil, domain.ErrCrossStore
		}
		items = append(items, domain.LineItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  cartItem.Quantity,
		})
		lines = append(lines, Line{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  cartItem.Quantity,
		})
	}

	if err := s.ledger.DecrementAll(ctx, lines); err != nil {
		return nil, err
	}

	totals := domain.CalculateTotals(items)
	now := time.Now().UTC()
	entity := &domain.Order{
		ID:              s.idGen.NewID(),
		CustomerID:      input.CustomerID,
		StoreID:         storeID,
		Items:           items,
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   method,
		ItemsPrice:      totals.ItemsPrice,
		TaxPrice:        totals.TaxPrice,
		ShippingPrice:   totals.ShippingPrice,
		TotalPrice:      totals.TotalPrice,
		Status:          domain.StatusProcessing,
		IsPaid:          false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orders.Insert(ctx, entity); err != nil {
		// The stock is already gone; hand it back before failing the request.
		s.ledger.RestoreAll(ctx, lines)
		return nil, fmt.Errorf("order: insert: %w", err)
	}

	s.publish(ctx, domain.NewOrderPlacedEvent(entity))
	logger.Info("order_placed",
		observability.F("order_id", entity.ID),
		observability.F("store_id", entity.StoreID),
		observability.F("total", entity.TotalPrice.String()),
	)
	return entity, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	if id == "" {
		return nil, domain.ErrNotFound
	}
	return s.orders.Get(ctx, id)
}

func (s *Service) ListMine(ctx context.Context, customerID string) ([]*domain.Order, error) {
	return s.orders.ListByCustomer(ctx, customerID)
}

func (s *Service) ListForStore(ctx context.Context, storeID string, filter domain.ListFilter) ([]*domain.Order, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 10
	}
	return s.orders.ListByStore(ctx, storeID, filter)
}

type UpdateStatusInput struct {
	OrderID       string
	StoreID       string
	Status        string
	IsPaid        *bool
	PaymentResult *domain.PaymentResult
	DeliveredAt   *time.Time
}

// UpdateStatus applies a merchant-side transition. The order must belong to
// the merchant's store. Delivered auto-sets the delivery flags; the paid flag
// only ever goes false to true. A supplied payment result snapshots the
// gateway's id and status on the order and implies paid.
func (s *Service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (_ *domain.Order, err error) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCaseUpdateStatus))
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		s.reqCounter.Add(1,
			observability.L("use_case", useCaseUpdateStatus),
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(time.Since(start).Seconds(),
			observability.L("use_case", useCaseUpdateStatus),
		)
	}()

	entity, err := s.orders.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if entity.StoreID != input.StoreID {
		// Do not reveal orders of other stores.
		return nil, domain.ErrNotFound
	}

	now := time.Now().UTC()
	if input.Status != "" {
		status, err := domain.ParseStatus(input.Status)
		if err != nil {
			return nil, err
		}
		if input.DeliveredAt != nil && status == domain.StatusDelivered && !entity.IsDelivered {
			entity.Status = status
			entity.MarkDelivered(input.DeliveredAt.UTC())
		} else {
			entity.SetStatus(status, now)
		}
	}
	if input.PaymentResult != nil {
		result := *input.PaymentResult
		entity.PaymentResult = &result
		entity.MarkPaid(now)
	}
	if input.IsPaid != nil && *input.IsPaid {
		entity.MarkPaid(now)
	}

	if err := s.orders.Update(ctx, entity); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.NewOrderStatusChangedEvent(entity))
	logger.Info("order_status_updated",
		observability.F("order_id", entity.ID),
		observability.F("status", string(entity.Status)),
	)
	return entity, nil
}

func (s *Service) publish(ctx context.Context, e domoutbox.Event) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, e); err != nil {
		logctx.FromOr(ctx, s.log).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}
