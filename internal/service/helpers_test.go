package service

import (
	"context"
	"testing"

	"grape-store/internal/models"

	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store    *memStore
	notifier *fakeNotifier
	gateway  *fakeGateway
	locker   *fakeLocker

	settings *SettingsService
	catalog  *CatalogService
	carts    *CartService
	orders   *OrderService
	payments *PaymentService
	admin    *AdminOrderService
	stats    *StatsService

	customer *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	e := &testEnv{
		store:    newMemStore(),
		notifier: &fakeNotifier{},
		gateway:  &fakeGateway{},
		locker:   &fakeLocker{},
	}
	e.settings = NewSettingsService(e.store)
	e.catalog = NewCatalogService(e.store)
	e.carts = NewCartService(e.store, e.store)
	e.orders = NewOrderService(e.store, e.store, e.carts, e.settings, e.locker, e.notifier)
	e.payments = NewPaymentService(e.store, e.gateway, e.settings, e.notifier, "https://shop.example/ok", "https://shop.example/cancel")
	e.admin = NewAdminOrderService(e.store, e.notifier)
	e.stats = NewStatsService(e.store)

	e.customer = &models.User{Name: "Asha", Email: "asha@example.com", Mobile: "9800000000", Role: models.RoleCustomer}
	require.NoError(t, e.store.CreateUser(context.Background(), e.customer))
	return e
}

func (e *testEnv) addProduct(t *testing.T, name string, price int64, stock int) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Price: price, Stock: stock, IsActive: true, Unit: "kg"}
	require.NoError(t, e.store.CreateProduct(context.Background(), p))
	return p
}

func (e *testEnv) addToCart(t *testing.T, productID int64, qty int) {
	t.Helper()
	_, err := e.carts.AddItem(context.Background(), e.customer.ID, &CartItemRequest{ProductID: productID, Quantity: qty})
	require.NoError(t, err)
}

func checkoutRequest(method models.PaymentMethod) *CreateOrderRequest {
	return &CreateOrderRequest{
		AddressLine:   "12 Vineyard Road",
		City:          "Nashik",
		State:         "Maharashtra",
		PostalCode:    "422001",
		PaymentMethod: string(method),
	}
}

// placeOrder fills the cart with the standard two-product basket (100x2 and
// 50x1) and checks out.
func (e *testEnv) placeOrder(t *testing.T, method models.PaymentMethod) *models.Order {
	t.Helper()
	a := e.addProduct(t, "Thompson Seedless", 100, 10)
	b := e.addProduct(t, "Sharad Seedless", 50, 10)
	e.addToCart(t, a.ID, 2)
	e.addToCart(t, b.ID, 1)

	order, err := e.orders.CreateOrder(context.Background(), e.customer.ID, checkoutRequest(method))
	require.NoError(t, err)
	return order
}

func (e *testEnv) storedOrder(t *testing.T, id int64) *models.Order {
	t.Helper()
	order, err := e.store.GetOrderByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

func (e *testEnv) forceStatus(id int64, status models.OrderStatus) {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	e.store.orders[id].Status = status
}

func (e *testEnv) revenue(t *testing.T) int64 {
	t.Helper()
	summary, err := e.stats.OrderStats(context.Background())
	require.NoError(t, err)
	return summary.TotalRevenue
}

func historyStatuses(order *models.Order) []models.OrderStatus {
	out := make([]models.OrderStatus, 0, len(order.History))
	for _, h := range order.History {
		out = append(out, h.Status)
	}
	return out
}
