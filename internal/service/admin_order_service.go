package service

import (
	"context"
	"fmt"
	"strings"

	"grape-store/internal/models"
	"grape-store/internal/store"
	"grape-store/internal/util"

	"go.uber.org/zap"
)

const adminDeletedNote = "Deleted by admin"

// AdminOrderService handles back-office order operations
type AdminOrderService struct {
	orders OrderStore
	lc     *lifecycle
	logger *zap.Logger
}

// NewAdminOrderService creates a new admin order service
func NewAdminOrderService(orders OrderStore, notifier Notifier) *AdminOrderService {
	return &AdminOrderService{
		orders: orders,
		lc:     newLifecycle(orders, notifier),
		logger: util.GetLogger(),
	}
}

// ListOrders lists orders across all customers
func (s *AdminOrderService) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	return s.orders.ListOrders(ctx, f)
}

// GetOrder retrieves any order, including cancelled ones
func (s *AdminOrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.orders.GetOrderByID(ctx, orderID)
}

// ApproveOrder accepts a submitted order
func (s *AdminOrderService) ApproveOrder(ctx context.Context, adminID, orderID int64, note string) (*models.Order, error) {
	return s.review(ctx, adminID, orderID, note, models.ApprovalApproved)
}

// RejectOrder turns down a submitted order
func (s *AdminOrderService) RejectOrder(ctx context.Context, adminID, orderID int64, note string) (*models.Order, error) {
	return s.review(ctx, adminID, orderID, note, models.ApprovalRejected)
}

func (s *AdminOrderService) review(ctx context.Context, adminID, orderID int64, note string, decision models.ApprovalStatus) (*models.Order, error) {
	ctx, span := util.StartOrderSpan(ctx, "AdminOrderService.Review", orderID)
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.ApprovalStatus == decision {
		return nil, fmt.Errorf("%w: order already %s", ErrConflict, decision)
	}

	target, eventType, defaultNote := models.OrderStatusApproved, models.EventTypeOrderApproved, "Approved by admin"
	if decision == models.ApprovalRejected {
		target, eventType, defaultNote = models.OrderStatusRejected, models.EventTypeOrderRejected, "Rejected by admin"
	}

	note = strings.TrimSpace(note)
	historyNote := note
	if historyNote == "" {
		historyNote = defaultNote
	}

	now := s.lc.now()
	err = s.lc.transition(ctx, order, target, historyNote, func(o *models.Order) {
		o.ApprovalStatus = decision
		o.ReviewedBy = &adminID
		o.ReviewedAt = &now
		o.ReviewNote = note
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order reviewed",
		zap.Int64("order_id", order.ID),
		zap.Int64("admin_id", adminID),
		zap.String("decision", string(decision)))
	s.lc.publish(ctx, eventType, order, note)
	return order, nil
}

// UpdateStatus moves an order along the fulfillment path. Reaching delivered
// stamps the delivery time; delivered or completed cash on delivery orders
// count as paid.
func (s *AdminOrderService) UpdateStatus(ctx context.Context, orderID int64, status, note string) (*models.Order, error) {
	ctx, span := util.StartOrderSpan(ctx, "AdminOrderService.UpdateStatus", orderID)
	defer span.End()

	to, ok := models.ParseOrderStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if to == models.OrderStatusApproved || to == models.OrderStatusRejected {
		return nil, fmt.Errorf("%w: use approve or reject to review an order", ErrValidation)
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == to {
		return nil, fmt.Errorf("%w: order is already %s", ErrConflict, to)
	}
	if models.IsTerminal(order.Status) {
		return nil, fmt.Errorf("%w: %s orders can no longer change status", ErrConflict, order.Status)
	}

	note = strings.TrimSpace(note)
	now := s.lc.now()
	err = s.lc.transition(ctx, order, to, note, func(o *models.Order) {
		if to == models.OrderStatusDelivered {
			o.DeliveredAt = &now
		}
		if o.PaymentMethod == models.PaymentMethodCOD &&
			(to == models.OrderStatusDelivered || to == models.OrderStatusCompleted) &&
			o.PaymentStatus != models.PaymentStatusSuccess {
			o.PaymentStatus = models.PaymentStatusSuccess
			o.PaidAt = &now
		}
		if to == models.OrderStatusCancelled {
			o.CancelledBy = models.CancelledByAdmin
			o.CancelReason = note
			cancelOpenPayment(o)
		}
	})
	if err != nil {
		return nil, err
	}

	if to == models.OrderStatusCancelled {
		util.OrdersCancelledTotal.WithLabelValues(string(models.CancelledByAdmin)).Inc()
		s.lc.publish(ctx, models.EventTypeOrderCancelled, order, note)
	} else {
		s.lc.publish(ctx, models.EventTypeOrderStatusChanged, order, note)
	}
	return order, nil
}

// DeleteOrder soft-deletes an order by forcing it to cancelled. The record
// stays retrievable and drops out of every aggregate.
func (s *AdminOrderService) DeleteOrder(ctx context.Context, adminID, orderID int64) (*models.Order, error) {
	ctx, span := util.StartOrderSpan(ctx, "AdminOrderService.DeleteOrder", orderID)
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, fmt.Errorf("%w: order already cancelled", ErrConflict)
	}

	now := s.lc.now()
	err = s.lc.apply(ctx, order, models.OrderStatusCancelled, adminDeletedNote, func(o *models.Order) {
		o.CancelledBy = models.CancelledByAdmin
		o.CancelReason = adminDeletedNote
		o.ReviewedBy = &adminID
		o.ReviewedAt = &now
		o.ReviewNote = adminDeletedNote
		cancelOpenPayment(o)
	})
	if err != nil {
		return nil, err
	}

	util.OrdersCancelledTotal.WithLabelValues(string(models.CancelledByAdmin)).Inc()
	s.logger.Info("Order deleted by admin",
		zap.Int64("order_id", order.ID),
		zap.Int64("admin_id", adminID))
	return order, nil
}
