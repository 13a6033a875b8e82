package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"grape-store/internal/models"
	"grape-store/internal/store"
	"grape-store/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	idempotencyLockTTL   = 30 * time.Second
	maxOrderCodeAttempts = 3
)

// OrderService handles customer-facing order operations
type OrderService struct {
	orders   OrderStore
	users    UserStore
	carts    *CartService
	settings *SettingsService
	locker   Locker
	lc       *lifecycle
	newCode  func(time.Time) string
	logger   *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	orders OrderStore,
	users UserStore,
	carts *CartService,
	settings *SettingsService,
	locker Locker,
	notifier Notifier,
) *OrderService {
	return &OrderService{
		orders:   orders,
		users:    users,
		carts:    carts,
		settings: settings,
		locker:   locker,
		lc:       newLifecycle(orders, notifier),
		newCode:  models.NewOrderCode,
		logger:   util.GetLogger(),
	}
}

// CreateOrderRequest represents a checkout request. Items come from the
// caller's cart.
type CreateOrderRequest struct {
	AddressLine    string `json:"address_line" binding:"required"`
	City           string `json:"city" binding:"required"`
	State          string `json:"state" binding:"required"`
	PostalCode     string `json:"postal_code" binding:"required"`
	Mobile         string `json:"mobile,omitempty"`
	PaymentMethod  string `json:"payment_method" binding:"required,oneof=cod card upi"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

func (r *CreateOrderRequest) validate() error {
	for _, f := range []*string{&r.AddressLine, &r.City, &r.State, &r.PostalCode, &r.Mobile} {
		*f = strings.TrimSpace(*f)
	}
	return validateRequest(r)
}

// CreateOrder converts the caller's cart into an order. The order, its line
// items and the cart clear are written in one transaction. A repeated
// idempotency key returns the order created by the first request.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := req.validate(); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	} else {
		if existing, err := s.findByIdempotencyKey(ctx, userID, req.IdempotencyKey); existing != nil || err != nil {
			return existing, err
		}

		release, err := s.lock(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		defer release()

		if existing, err := s.findByIdempotencyKey(ctx, userID, req.IdempotencyKey); existing != nil || err != nil {
			return existing, err
		}
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	products, err := s.carts.ValidateCart(ctx, cart)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_cart").Inc()
		return nil, err
	}

	items, itemsTotal := buildOrderItems(cart.Items, products)

	deliveryCharges, err := s.settings.Int64(ctx, SettingDeliveryCharge)
	if err != nil {
		return nil, err
	}

	mobile := user.Mobile
	if req.Mobile != "" {
		mobile = req.Mobile
	}

	now := time.Now()
	order := &models.Order{
		OrderCode:       s.newCode(now),
		UserID:          user.ID,
		CustomerName:    user.Name,
		CustomerMobile:  mobile,
		CustomerEmail:   user.Email,
		AddressLine:     strings.TrimSpace(req.AddressLine),
		City:            strings.TrimSpace(req.City),
		State:           strings.TrimSpace(req.State),
		PostalCode:      strings.TrimSpace(req.PostalCode),
		ItemsTotal:      itemsTotal,
		DeliveryCharges: deliveryCharges,
		Total:           itemsTotal + deliveryCharges,
		PaymentMethod:   models.PaymentMethod(req.PaymentMethod),
		PaymentStatus:   models.PaymentStatusPending,
		Status:          models.OrderStatusCreated,
		ApprovalStatus:  models.ApprovalPending,
		IdempotencyKey:  req.IdempotencyKey,
		Items:           items,
		History: []models.StatusHistoryEntry{
			{Status: models.OrderStatusCreated, Note: "Order placed", CreatedAt: now},
		},
	}

	for attempt := 1; ; attempt++ {
		err = s.orders.CreateOrder(ctx, order, cart.ID)
		if !errors.Is(err, store.ErrDuplicateOrderCode) || attempt == maxOrderCodeAttempts {
			break
		}
		s.logger.Warn("Order code collision, retrying",
			zap.String("order_code", order.OrderCode),
			zap.Int("attempt", attempt))
		order.OrderCode = s.newCode(time.Now())
	}
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			if existing, _ := s.findByIdempotencyKey(ctx, userID, req.IdempotencyKey); existing != nil {
				return existing, nil
			}
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_code", order.OrderCode),
		zap.Int64("total", order.Total))

	s.lc.publish(ctx, models.EventTypeOrderPlaced, order, "")
	return order, nil
}

func (s *OrderService) findByIdempotencyKey(ctx context.Context, userID int64, key string) (*models.Order, error) {
	existing, err := s.orders.GetOrderByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.UserID != userID {
		return nil, fmt.Errorf("%w: idempotency key already used", ErrConflict)
	}
	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.Int64("order_id", existing.ID))
	return existing, nil
}

func (s *OrderService) lock(ctx context.Context, key string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	lockKey := "order:" + key
	ok, err := s.locker.AcquireLock(ctx, lockKey, idempotencyLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire order lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: an order with this idempotency key is already being placed", ErrConflict)
	}
	return func() {
		if err := s.locker.ReleaseLock(context.Background(), lockKey); err != nil {
			s.logger.Warn("Failed to release order lock", zap.String("key", lockKey), zap.Error(err))
		}
	}, nil
}

// buildOrderItems snapshots the live catalog price of every cart line.
func buildOrderItems(cartItems []models.CartItem, products map[int64]*models.Product) ([]models.OrderItem, int64) {
	items := make([]models.OrderItem, 0, len(cartItems))
	var total int64
	for _, ci := range cartItems {
		product := products[ci.ProductID]
		subtotal := product.Price * int64(ci.Quantity)
		items = append(items, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    ci.Quantity,
			UnitPrice:   product.Price,
			Subtotal:    subtotal,
		})
		total += subtotal
	}
	return items, total
}

// GetOrder retrieves one of the caller's orders
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	return order, nil
}

// ListOrders lists the caller's orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, userID int64, status string, limit, offset int) ([]models.Order, int, error) {
	f := store.OrderFilter{UserID: userID, Limit: limit, Offset: offset}
	if status != "" {
		st, ok := models.ParseOrderStatus(status)
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
		}
		f.Status = st
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	return s.orders.ListOrders(ctx, f)
}

// CancelOrder cancels one of the caller's orders. Orders that have left the
// warehouse, were already closed, or are older than the cancellation window
// cannot be cancelled.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID int64, reason string) (*models.Order, error) {
	ctx, span := util.StartOrderSpan(ctx, "OrderService.CancelOrder", orderID)
	defer span.End()

	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case models.OrderStatusDispatched, models.OrderStatusDelivered, models.OrderStatusCompleted:
		return nil, fmt.Errorf("%w: cannot cancel order at this stage", ErrConflict)
	case models.OrderStatusCancelled:
		return nil, fmt.Errorf("%w: order already cancelled", ErrConflict)
	case models.OrderStatusRejected:
		return nil, fmt.Errorf("%w: cannot cancel a rejected order", ErrConflict)
	}

	windowHours, err := s.settings.Int64(ctx, SettingCancellationWindow)
	if err != nil {
		return nil, err
	}
	if windowHours > 0 && s.lc.now().Sub(order.CreatedAt) > time.Duration(windowHours)*time.Hour {
		return nil, fmt.Errorf("%w: orders can only be cancelled within %d hours of placement", ErrConflict, windowHours)
	}

	err = s.lc.transition(ctx, order, models.OrderStatusCancelled, "Cancelled by customer.", func(o *models.Order) {
		o.CancelledBy = models.CancelledByCustomer
		o.CancelReason = strings.TrimSpace(reason)
		cancelOpenPayment(o)
	})
	if err != nil {
		return nil, err
	}

	util.OrdersCancelledTotal.WithLabelValues(string(models.CancelledByCustomer)).Inc()
	s.lc.publish(ctx, models.EventTypeOrderCancelled, order, "Cancelled by customer.")
	return order, nil
}

// cancelOpenPayment marks an online payment that never completed as cancelled.
func cancelOpenPayment(o *models.Order) {
	if !o.PaymentMethod.IsOnline() {
		return
	}
	if o.PaymentStatus == models.PaymentStatusInitiated || o.PaymentStatus == models.PaymentStatusPending {
		o.PaymentStatus = models.PaymentStatusCancelled
	}
}
