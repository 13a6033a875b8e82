package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grape-store/internal/models"
	"grape-store/internal/payment"
	"grape-store/internal/util"

	"go.uber.org/zap"
)

// PaymentService bridges orders and the hosted checkout gateway
type PaymentService struct {
	orders     OrderStore
	gateway    payment.Gateway
	settings   *SettingsService
	lc         *lifecycle
	successURL string
	cancelURL  string
	logger     *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	orders OrderStore,
	gateway payment.Gateway,
	settings *SettingsService,
	notifier Notifier,
	successURL, cancelURL string,
) *PaymentService {
	return &PaymentService{
		orders:     orders,
		gateway:    gateway,
		settings:   settings,
		lc:         newLifecycle(orders, notifier),
		successURL: successURL,
		cancelURL:  cancelURL,
		logger:     util.GetLogger(),
	}
}

// PaymentInitResult tells the client where the order went next
type PaymentInitResult struct {
	OrderID    int64              `json:"order_id"`
	Status     models.OrderStatus `json:"status"`
	SessionID  string             `json:"session_id,omitempty"`
	PaymentURL string             `json:"payment_url,omitempty"`
}

// InitiatePayment moves a freshly created order forward. Cash on delivery
// orders go straight to review; online orders get a checkout session. If the
// gateway fails the order is left untouched.
func (ps *PaymentService) InitiatePayment(ctx context.Context, userID, orderID int64) (*PaymentInitResult, error) {
	ctx, span := util.StartOrderSpan(ctx, "PaymentService.InitiatePayment", orderID)
	defer span.End()

	order, err := ps.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	if order.Status != models.OrderStatusCreated {
		return nil, fmt.Errorf("%w: payment already initiated for order %s", ErrConflict, order.OrderCode)
	}

	if !order.PaymentMethod.IsOnline() {
		if err := ps.lc.submit(ctx, order, "Cash on delivery order submitted for review"); err != nil {
			return nil, err
		}
		return &PaymentInitResult{OrderID: order.ID, Status: order.Status}, nil
	}

	currency, err := ps.settings.String(ctx, SettingCurrency)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	session, err := ps.gateway.CreateCheckoutSession(ctx, &payment.CheckoutRequest{
		OrderID:       order.ID,
		OrderCode:     order.OrderCode,
		CustomerEmail: order.CustomerEmail,
		Currency:      currency,
		LineItems:     checkoutLineItems(order),
		SuccessURL:    ps.successURL,
		CancelURL:     ps.cancelURL,
	})
	util.PaymentGatewayLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.PaymentSessionsTotal.WithLabelValues("error").Inc()
		ps.logger.Error("Failed to create checkout session",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: could not start online payment: %v", ErrExternal, err)
	}
	util.PaymentSessionsTotal.WithLabelValues("created").Inc()

	err = ps.lc.transition(ctx, order, models.OrderStatusAwaitingPayment, "Payment initiated", func(o *models.Order) {
		o.TransactionID = session.ID
		o.PaymentGateway = ps.gateway.Name()
		o.PaymentStatus = models.PaymentStatusInitiated
	})
	if err != nil {
		return nil, err
	}

	return &PaymentInitResult{
		OrderID:    order.ID,
		Status:     order.Status,
		SessionID:  session.ID,
		PaymentURL: session.URL,
	}, nil
}

// checkoutLineItems itemizes the order for the gateway, with delivery as its
// own line.
func checkoutLineItems(order *models.Order) []payment.LineItem {
	items := make([]payment.LineItem, 0, len(order.Items)+1)
	for _, item := range order.Items {
		items = append(items, payment.LineItem{
			Name:       item.ProductName,
			UnitAmount: item.UnitPrice,
			Quantity:   item.Quantity,
		})
	}
	if order.DeliveryCharges > 0 {
		items = append(items, payment.LineItem{
			Name:       "Delivery charges",
			UnitAmount: order.DeliveryCharges,
			Quantity:   1,
		})
	}
	return items
}

// HandleWebhook verifies and applies a gateway callback. A bad signature is
// rejected before anything is read or written.
func (ps *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	event, err := ps.gateway.VerifyWebhook(payload, signatureHeader)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			util.WebhookRejectedTotal.WithLabelValues("signature").Inc()
			ps.logger.Warn("Rejected payment webhook", zap.Error(err))
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		util.WebhookRejectedTotal.WithLabelValues("payload").Inc()
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	ps.logger.Info("Payment webhook received",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type))

	switch event.Type {
	case payment.EventCheckoutCompleted, payment.EventCheckoutAsyncSucceeded:
		if event.Session.PaymentStatus != payment.SessionPaid {
			return nil
		}
		_, err = ps.applyOutcome(ctx, &event.Session, true)
	case payment.EventCheckoutExpired, payment.EventCheckoutAsyncFailed, payment.EventPaymentIntentPaymentFailed:
		_, err = ps.applyOutcome(ctx, &event.Session, false)
	default:
		ps.logger.Debug("Ignoring webhook event", zap.String("event_type", event.Type))
	}
	return err
}

// VerifySession pulls the session state from the gateway and applies it.
// Used by the checkout return page when the webhook has not arrived yet.
func (ps *PaymentService) VerifySession(ctx context.Context, userID int64, sessionID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.VerifySession")
	defer span.End()

	session, err := ps.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: could not verify payment: %v", ErrExternal, err)
	}

	order, err := ps.findOrder(ctx, session)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}

	switch {
	case session.PaymentStatus == payment.SessionPaid:
		return ps.applyOutcome(ctx, session, true)
	case session.Status == payment.SessionStatusExpired:
		return ps.applyOutcome(ctx, session, false)
	}
	return order, nil
}

// findOrder locates the order by transaction id, falling back to the order
// code the session was opened with.
func (ps *PaymentService) findOrder(ctx context.Context, session *payment.Session) (*models.Order, error) {
	order, err := ps.orders.GetOrderByTransactionID(ctx, session.ID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	code := session.OrderCode()
	if code == "" {
		return nil, fmt.Errorf("%w: no order for session %s", ErrNotFound, session.ID)
	}
	return ps.orders.GetOrderByCode(ctx, code)
}

func (ps *PaymentService) applyOutcome(ctx context.Context, session *payment.Session, paid bool) (*models.Order, error) {
	order, err := ps.findOrder(ctx, session)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			util.WebhookRejectedTotal.WithLabelValues("unknown_order").Inc()
			ps.logger.Warn("Payment event for unknown order", zap.String("session_id", session.ID))
		}
		return nil, err
	}

	if order.PaymentStatus == models.PaymentStatusSuccess {
		ps.logger.Info("Payment already recorded, ignoring event",
			zap.Int64("order_id", order.ID),
			zap.String("session_id", session.ID))
		return order, nil
	}

	if paid {
		return order, ps.markPaid(ctx, order)
	}
	return order, ps.markFailed(ctx, order)
}

// markPaid records the payment, advances to payment_completed and chains
// straight into submission for review.
func (ps *PaymentService) markPaid(ctx context.Context, order *models.Order) error {
	now := ps.lc.now()
	recordPayment := func(o *models.Order) {
		o.PaymentStatus = models.PaymentStatusSuccess
		o.PaidAt = &now
		o.PaymentGateway = ps.gateway.Name()
	}

	if !models.CanTransition(order.Status, models.OrderStatusPaymentCompleted) {
		// Money arrived for an order that moved on, e.g. cancelled while on the checkout page.
		ps.logger.Warn("Payment received for order outside checkout",
			zap.Int64("order_id", order.ID),
			zap.String("status", string(order.Status)))
		if err := ps.lc.save(ctx, order, recordPayment); err != nil {
			return err
		}
		util.PaymentSuccessTotal.Inc()
		ps.lc.publish(ctx, models.EventTypePaymentSuccess, order, "")
		return nil
	}

	if err := ps.lc.transition(ctx, order, models.OrderStatusPaymentCompleted, "Payment received", recordPayment); err != nil {
		return err
	}
	util.PaymentSuccessTotal.Inc()
	ps.lc.publish(ctx, models.EventTypePaymentSuccess, order, "")

	return ps.lc.submit(ctx, order, "Submitted for review after online payment")
}

// markFailed records the failure. The order status is left where it was.
func (ps *PaymentService) markFailed(ctx context.Context, order *models.Order) error {
	if order.PaymentStatus == models.PaymentStatusFailed || order.Status == models.OrderStatusCancelled {
		return nil
	}

	err := ps.lc.save(ctx, order, func(o *models.Order) {
		o.PaymentStatus = models.PaymentStatusFailed
	})
	if err != nil {
		return err
	}

	util.PaymentFailedTotal.Inc()
	ps.logger.Warn("Payment failed", zap.Int64("order_id", order.ID))
	ps.lc.publish(ctx, models.EventTypePaymentFailed, order, "")
	return nil
}
