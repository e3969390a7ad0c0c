package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizshop/storefront/internal/domain/catalog"
	domain "github.com/bizshop/storefront/internal/domain/order"
	"github.com/bizshop/storefront/internal/infrastructure/memory"
)

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("order-%d", g.n)
}

func product(id, storeID, name, price string, stock int) *catalog.Product {
	return &catalog.Product{
		ID:      id,
		StoreID: storeID,
		Name:    name,
		Price:   decimal.RequireFromString(price),
		Stock:   stock,
	}
}

func validAddress() domain.ShippingAddress {
	return domain.ShippingAddress{
		Address:    "1 Main St",
		City:       "Pune",
		PostalCode: "411001",
		Country:    "IN",
	}
}

func newTestService(products ...*catalog.Product) (*Service, *memory.ProductRepository, *memory.OrderRepository) {
	productRepo := memory.NewProductRepository()
	productRepo.Seed(products...)
	orderRepo := memory.NewOrderRepository()
	svc := NewService(orderRepo, productRepo, NewLedger(productRepo, nil), &seqIDGen{}, nil, nil)
	return svc, productRepo, orderRepo
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID:      "c1",
		ShippingAddress: validAddress(),
		PaymentMethod:   string(domain.PaymentCashOnDelivery),
	})

	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestPlaceOrder_IncompleteAddress(t *testing.T) {
	svc, _, _ := newTestService(product("p1", "s1", "Mug", "9.99", 10))

	addr := validAddress()
	addr.PostalCode = ""
	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID:      "c1",
		Items:           []CartItem{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: addr,
		PaymentMethod:   string(domain.PaymentCashOnDelivery),
	})

	assert.ErrorIs(t, err, domain.ErrIncompleteAddress)
}

func TestPlaceOrder_InvalidPaymentMethod(t *testing.T) {
	svc, _, _ := newTestService(product("p1", "s1", "Mug", "9.99", 10))

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID:      "c1",
		Items:           []CartItem{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: validAddress(),
		PaymentMethod:   "Barter",
	})

	assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)
}

func TestPlaceOrder_NonPositiveQuantity(t *testing.T) {
	svc, _, _ := newTestService(product("p1", "s1", "Mug", "9.99", 10))

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID:      "c1",
		Items:           []CartItem{{ProductID: "p1", Quantity: 0}},
		ShippingAddress: validAddress(),
		PaymentMethod:   string(domain.PaymentCashOnDelivery),
	})

	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	svc, _, _ := newTestService(product("p1", "s1", "Mug", "9.99", 10))

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID:      "c1",
		Items:           []CartItem{{ProductID: "ghost", Quantity: 1}},
		ShippingAddress: validAddress(),
		PaymentMethod:   string(domain.PaymentCashOnDelivery),
	})

	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestPlaceOrder_CrossStoreCart(t *testing.T) {
	svc, productRepo, _ := newTestService(
		product("p1", "s1", "Mug", "9.99", 10),
		product("p2", "s2", "Cap", "4.99", 10),
	)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: "c1",
		Items: []CartItem{
			{ProductID: "p1", Quantity: 1},
			{ProductID: "p2", Quantity: 1},
		},
		ShippingAddress: validAddress(),
		PaymentMethod:   string(domain.PaymentCashOnDelivery),
	})

	require.ErrorIs(t, err, domain.ErrCrossStore)

	// Rejected before any decrement.
	p1, err := productRepo.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, p1.Stock)
}

func TestPlaceOrder_Success(t *testing.T) {
	svc, productRepo, orderRepo := newTestService(
		product("p1", "s1", "Mug", "19.99", 10),
		product("p2", "s1", "Cap", "5.50", 10),
	)

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: "c1",
		Items: []CartItem{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 3},
		},
		ShippingAddress: validAddress(),
		PaymentMethod:   string(domain.PaymentGateway),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusProcessing, order.Status)
	assert.False(t, order.IsPaid)
	assert.Equal(t, "s1", order.StoreID)
	assert.Equal(t, "56.48", order.ItemsPrice.StringFixed(2))
	assert.Equal(t, "10.17", order.TaxPrice.StringFixed(2))
	assert.Equal(t, "5.00", order.ShippingPrice.StringFixed(2))
	assert.Equal(t, "71.65", order.TotalPrice.StringFixed(2))

	p1, err := productRepo.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 8, p1.Stock)
	p2, err := productRepo.Get(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, 7, p2.Stock)

	stored, err := orderRepo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
}

func TestPlaceOrder_SnapshotsIgnoreLaterProductEdits(t *testing.T) {
	svc, productRepo, orderRepo := newTestService(product("p1", "s1", "Mug", "19.99", 10))

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID:      "c1",
		Items:           []CartItem{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: validAddress(),
		PaymentMethod:   string(domain.PaymentCashOnDelivery),
	})
	require.NoError(t, err)

	// Rename and reprice after the order committed.
	productRepo.Seed(product("p1", "s1", "Deluxe Mug", "29.99", 8))

	stored, err := orderRepo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mug", stored.Items[0].Name)
	assert.Equal(t, "19.99", stored.Items[0].Price.StringFixed(2))
}

func TestPlaceOrder_InsufficientStockRestoresEarlierLines(t *testing.T) {
	svc, productRepo, _ := newTestService(
		product("p1", "s1", "Mug", "19.99", 10),
		product("p2", "s1", "Cap", "5.50", 1),
	)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: "c1",
		Items: []CartItem{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 5},
		},
		ShippingAddress: validAddress(),
		PaymentMethod:   string(domain.PaymentCashOnDelivery),
	})

	var insufficient *catalog.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "p2", insufficient.ProductID)
	assert.Equal(t, 1, insufficient.Available)
	assert.Equal(t, 5, insufficient.Requested)

	// The decrement of p1 was compensated.
	p1, err := productRepo.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, p1.Stock)
	p2, err := productRepo.Get(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, 1, p2.Stock)
}

func TestPlaceOrder_ConcurrentOrdersNeverOversell(t *testing.T) {
	const stock = 5
	const attempts = 20
	svc, productRepo, _ := newTestService(product("p1", "s1", "Mug", "19.99", stock))

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
				CustomerID:      fmt.Sprintf("c%d", n),
				Items:           []CartItem{{ProductID: "p1", Quantity: 1}},
				ShippingAddress: validAddress(),
				PaymentMethod:   string(domain.PaymentCashOnDelivery),
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			var insufficient *catalog.InsufficientStockError
			require.True(t, errors.As(err, &insufficient))
		}
	}
	assert.Equal(t, stock, succeeded)

	p1, err := productRepo.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p1.Stock)
}

func TestUpdateStatus_OtherStoreLooksLikeMissing(t *testing.T) {
	svc, _, _ := newTestService(product("p1", "s1", "Mug", "19.99", 10))

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID:      "c1",
		Items:           []CartItem{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: validAddress(),
		PaymentMethod:   string(domain.PaymentCashOnDelivery),
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		StoreID: "someone-else",
		Status:  string(domain.StatusShipped),
	})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateStatus_DeliveredSetsDeliveryFlags(t *testing.T) {
	svc, _, _ := newTestService(product("p1", "s1", "Mug", "19.99", 10))

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID:      "c1",
		Items:           []CartItem{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: validAddress(),
		PaymentMethod:   string(domain.PaymentCashOnDelivery),
	})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		StoreID: "s1",
		Status:  string(domain.StatusDelivered),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDelivered, updated.Status)
	assert.True(t, updated.IsDelivered)
	require.NotNil(t, updated.DeliveredAt)
}

func TestUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newTestService(product("p1", "s1", "Mug", "19.99", 10))

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID:      "c1",
		Items:           []CartItem{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: validAddress(),
		PaymentMethod:   string(domain.PaymentCashOnDelivery),
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		StoreID: "s1",
		Status:  "Teleported",
	})

	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestUpdateStatus_MarkPaidKeepsFirstTimestamp(t *testing.T) {
	svc, _, _ := newTestService(product("p1", "s1", "Mug", "19.99", 10))

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID:      "c1",
		Items:           []CartItem{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: validAddress(),
		PaymentMethod:   string(domain.PaymentCashOnDelivery),
	})
	require.NoError(t, err)

	paid := true
	first, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		StoreID: "s1",
		IsPaid:  &paid,
	})
	require.NoError(t, err)
	require.NotNil(t, first.PaidAt)
	firstPaidAt := *first.PaidAt

	time.Sleep(5 * time.Millisecond)
	second, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		StoreID: "s1",
		IsPaid:  &paid,
	})
	require.NoError(t, err)
	require.NotNil(t, second.PaidAt)
	assert.True(t, second.PaidAt.Equal(firstPaidAt))
}

func TestUpdateStatus_RecordsPaymentResult(t *testing.T) {
	svc, _, orderRepo := newTestService(product("p1", "s1", "Mug", "19.99", 10))

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID:      "c1",
		Items:           []CartItem{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: validAddress(),
		PaymentMethod:   string(domain.PaymentGateway),
	})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:       order.ID,
		StoreID:       "s1",
		PaymentResult: &domain.PaymentResult{ID: "pay_42", Status: "captured"},
	})
	require.NoError(t, err)

	// The gateway snapshot is stored and the order flips to paid.
	require.NotNil(t, updated.PaymentResult)
	assert.Equal(t, "pay_42", updated.PaymentResult.ID)
	assert.Equal(t, "captured", updated.PaymentResult.Status)
	assert.True(t, updated.IsPaid)
	require.NotNil(t, updated.PaidAt)

	stored, err := orderRepo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PaymentResult)
	assert.Equal(t, "pay_42", stored.PaymentResult.ID)
}

func TestListForStore_FilterAndPagination(t *testing.T) {
	svc, _, _ := newTestService(product("p1", "s1", "Mug", "19.99", 100))

	for i := 0; i < 5; i++ {
		_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
			CustomerID:      fmt.Sprintf("c%d", i),
			Items:           []CartItem{{ProductID: "p1", Quantity: 1}},
			ShippingAddress: validAddress(),
			PaymentMethod:   string(domain.PaymentCashOnDelivery),
		})
		require.NoError(t, err)
	}

	orders, total, err := svc.ListForStore(context.Background(), "s1", domain.ListFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, orders, 2)

	orders, total, err = svc.ListForStore(context.Background(), "s1", domain.ListFilter{Status: domain.StatusDelivered})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, orders)
}
