package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"grape-store/internal/models"
	"grape-store/internal/payment"
	"grape-store/internal/store"
)

// memStore is an in-memory stand-in for *store.Store.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]*models.Product
	carts    map[int64]*models.Cart
	orders   map[int64]*models.Order
	users    map[int64]*models.User
	settings map[string]json.RawMessage
	dealers  map[int64]*models.DealerRequest

	updateErr error
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[int64]*models.Product),
		carts:    make(map[int64]*models.Cart),
		orders:   make(map[int64]*models.Order),
		users:    make(map[int64]*models.User),
		settings: make(map[string]json.RawMessage),
		dealers:  make(map[int64]*models.DealerRequest),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func copyOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	c.History = append([]models.StatusHistoryEntry(nil), o.History...)
	return &c
}

// products

func (m *memStore) CreateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	c := *p
	m.products[p.ID] = &c
	return nil
}

func (m *memStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return fmt.Errorf("%w: product %d", store.ErrNotFound, p.ID)
	}
	c := *p
	m.products[p.ID] = &c
	return nil
}

func (m *memStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, id)
	}
	c := *p
	return &c, nil
}

func (m *memStore) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Product{}
	for _, p := range m.products {
		if f.ActiveOnly && !p.IsActive {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CountProducts(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.products {
		if p.IsActive {
			n++
		}
	}
	return n, nil
}

// carts

func (m *memStore) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[userID]
	if !ok {
		cart = &models.Cart{ID: m.id(), UserID: userID}
		m.carts[userID] = cart
	}
	c := *cart
	c.Items = append([]models.CartItem{}, cart.Items...)
	return &c, nil
}

func (m *memStore) cartByID(cartID int64) *models.Cart {
	for _, c := range m.carts {
		if c.ID == cartID {
			return c
		}
	}
	return nil
}

func (m *memStore) SaveCartItems(ctx context.Context, cartID int64, items []models.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart := m.cartByID(cartID)
	if cart == nil {
		return fmt.Errorf("%w: cart %d", store.ErrNotFound, cartID)
	}
	cart.Items = append([]models.CartItem(nil), items...)
	return nil
}

func (m *memStore) ClearCart(ctx context.Context, cartID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cart := m.cartByID(cartID); cart != nil {
		cart.Items = nil
	}
	return nil
}

// orders

func (m *memStore) CreateOrder(ctx context.Context, order *models.Order, cartID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderCode == order.OrderCode {
			return fmt.Errorf("%w %s", store.ErrDuplicateOrderCode, order.OrderCode)
		}
		if o.IdempotencyKey == order.IdempotencyKey {
			return fmt.Errorf("%w: order %s", store.ErrDuplicate, order.OrderCode)
		}
	}
	order.ID = m.id()
	order.CreatedAt, order.UpdatedAt = time.Now(), time.Now()
	m.orders[order.ID] = copyOrder(order)
	if cart := m.cartByID(cartID); cart != nil {
		cart.Items = nil
	}
	return nil
}

func (m *memStore) UpdateOrder(ctx context.Context, order *models.Order, entry *models.StatusHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.orders[order.ID]
	if !ok {
		return fmt.Errorf("%w: order %d", store.ErrNotFound, order.ID)
	}

	// Only lifecycle fields are written, as in the SQL store.
	stored.PaymentStatus = order.PaymentStatus
	stored.TransactionID = order.TransactionID
	stored.PaymentGateway = order.PaymentGateway
	stored.PaidAt = order.PaidAt
	stored.Status = order.Status
	stored.ReviewedBy = order.ReviewedBy
	stored.ReviewedAt = order.ReviewedAt
	stored.ReviewNote = order.ReviewNote
	stored.ApprovalStatus = order.ApprovalStatus
	stored.IsLocked = order.IsLocked
	stored.DeliveredAt = order.DeliveredAt
	stored.CancelledBy = order.CancelledBy
	stored.CancelReason = order.CancelReason
	stored.UpdatedAt = time.Now()
	if entry != nil {
		stored.History = append(stored.History, *entry)
	}
	return nil
}

func (m *memStore) findOrder(match func(*models.Order) bool, what interface{}) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if match(o) {
			return copyOrder(o), nil
		}
	}
	return nil, fmt.Errorf("%w: order %v", store.ErrNotFound, what)
}

func (m *memStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	return m.findOrder(func(o *models.Order) bool { return o.ID == id }, id)
}

func (m *memStore) GetOrderByCode(ctx context.Context, code string) (*models.Order, error) {
	return m.findOrder(func(o *models.Order) bool { return o.OrderCode == code }, code)
}

func (m *memStore) GetOrderByTransactionID(ctx context.Context, txID string) (*models.Order, error) {
	if txID == "" {
		return nil, fmt.Errorf("%w: empty transaction id", store.ErrNotFound)
	}
	return m.findOrder(func(o *models.Order) bool { return o.TransactionID == txID }, txID)
}

func (m *memStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	o, err := m.findOrder(func(o *models.Order) bool { return o.IdempotencyKey == key }, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return o, err
}

func (m *memStore) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if f.UserID != 0 && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (m *memStore) ListOrderFacts(ctx context.Context, since time.Time) ([]models.OrderFact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.OrderFact
	for _, o := range m.orders {
		if !o.CreatedAt.Before(since) {
			out = append(out, o.Fact())
		}
	}
	return out, nil
}

func (m *memStore) ListOrderItemFacts(ctx context.Context) ([]models.OrderItemFact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.OrderItemFact
	for _, o := range m.orders {
		for _, item := range o.Items {
			out = append(out, models.OrderItemFact{
				ProductID:     item.ProductID,
				ProductName:   item.ProductName,
				Quantity:      item.Quantity,
				Subtotal:      item.Subtotal,
				Status:        o.Status,
				PaymentStatus: o.PaymentStatus,
				PaymentMethod: o.PaymentMethod,
			})
		}
	}
	return out, nil
}

// users

func (m *memStore) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return fmt.Errorf("%w: user %s", store.ErrDuplicate, u.Email)
		}
	}
	u.ID = m.id()
	u.CreatedAt = time.Now()
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *memStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", store.ErrNotFound, id)
	}
	c := *u
	return &c, nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, email)
}

func (m *memStore) ListUsers(ctx context.Context, role string, limit, offset int) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, u := range m.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CountUsers(ctx context.Context, role string) (int, error) {
	users, _ := m.ListUsers(ctx, role, 0, 0)
	return len(users), nil
}

// settings

func (m *memStore) GetSetting(ctx context.Context, key string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[key]
	if !ok {
		return nil, fmt.Errorf("%w: setting %s", store.ErrNotFound, key)
	}
	return v, nil
}

func (m *memStore) ListSettings(ctx context.Context) ([]models.Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Setting{}
	for k, v := range m.settings {
		out = append(out, models.Setting{Key: k, Value: v})
	}
	return out, nil
}

func (m *memStore) UpsertSetting(ctx context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// dealers

func (m *memStore) CreateDealerRequest(ctx context.Context, d *models.DealerRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = m.id()
	c := *d
	m.dealers[d.ID] = &c
	return nil
}

func (m *memStore) GetDealerRequest(ctx context.Context, id int64) (*models.DealerRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dealers[id]
	if !ok {
		return nil, fmt.Errorf("%w: dealer request %d", store.ErrNotFound, id)
	}
	c := *d
	return &c, nil
}

func (m *memStore) ListDealerRequests(ctx context.Context, status string, limit, offset int) ([]models.DealerRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.DealerRequest{}
	for _, d := range m.dealers {
		if status == "" || d.Status == status {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *memStore) UpdateDealerRequestStatus(ctx context.Context, id int64, status, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dealers[id]
	if !ok {
		return fmt.Errorf("%w: dealer request %d", store.ErrNotFound, id)
	}
	d.Status, d.AdminNote = status, note
	return nil
}

func (m *memStore) CountDealerRequests(ctx context.Context, status string) (int, error) {
	list, _ := m.ListDealerRequests(ctx, status, 0, 0)
	return len(list), nil
}

// fakeNotifier records published events and can be told to fail.
type fakeNotifier struct {
	mu     sync.Mutex
	events []*models.OrderEvent
	err    error
}

func (n *fakeNotifier) Publish(ctx context.Context, event *models.OrderEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *fakeNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.EventType)
	}
	return out
}

// fakeLocker is an in-process Locker.
type fakeLocker struct {
	mu    sync.Mutex
	held  map[string]bool
	calls int
}

func (l *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// fakeGateway scripts the checkout gateway.
type fakeGateway struct {
	createErr error
	requests  []*payment.CheckoutRequest
	event     *payment.Event
	verifyErr error
	session   *payment.Session
}

func (g *fakeGateway) Name() string { return "fakepay" }

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req *payment.CheckoutRequest) (*payment.Session, error) {
	g.requests = append(g.requests, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	id := fmt.Sprintf("cs_%s", req.OrderCode)
	return &payment.Session{ID: id, URL: "https://pay.example/" + id, Status: payment.SessionStatusOpen}, nil
}

func (g *fakeGateway) VerifyWebhook(payload []byte, signatureHeader string) (*payment.Event, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return g.event, nil
}

func (g *fakeGateway) RetrieveSession(ctx context.Context, sessionID string) (*payment.Session, error) {
	if g.session == nil {
		return nil, errors.New("session not found")
	}
	return g.session, nil
}
