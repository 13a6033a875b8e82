package service

import (
	"context"
	"fmt"
	"time"

	"grape-store/internal/models"
	"grape-store/internal/util"

	"go.uber.org/zap"
)

// lifecycle applies status changes to orders. Every status write goes
// through here so the transition table, history and metrics stay in step.
type lifecycle struct {
	orders   OrderStore
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func newLifecycle(orders OrderStore, notifier Notifier) *lifecycle {
	return &lifecycle{
		orders:   orders,
		notifier: notifier,
		logger:   util.GetLogger(),
		now:      time.Now,
	}
}

// transition moves the order to status `to` if the transition table allows it.
func (l *lifecycle) transition(ctx context.Context, order *models.Order, to models.OrderStatus, note string, mutate func(*models.Order)) error {
	if !models.CanTransition(order.Status, to) {
		return fmt.Errorf("%w: cannot move order from %s to %s", ErrConflict, order.Status, to)
	}
	return l.apply(ctx, order, to, note, mutate)
}

// apply writes the new status, the mutation and one history entry. On a
// store failure the in-memory order is restored.
func (l *lifecycle) apply(ctx context.Context, order *models.Order, to models.OrderStatus, note string, mutate func(*models.Order)) error {
	prev := *order
	from := order.Status

	order.Status = to
	if mutate != nil {
		mutate(order)
	}

	entry := &models.StatusHistoryEntry{
		Status:    to,
		Note:      note,
		CreatedAt: l.now(),
	}
	if err := l.orders.UpdateOrder(ctx, order, entry); err != nil {
		*order = prev
		return fmt.Errorf("failed to update order status: %w", err)
	}
	order.History = append(order.History, *entry)

	util.OrderTransitionsTotal.WithLabelValues(string(to)).Inc()
	l.logger.Info("Order status changed",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return nil
}

// save writes non-status fields without a history entry.
func (l *lifecycle) save(ctx context.Context, order *models.Order, mutate func(*models.Order)) error {
	prev := *order
	mutate(order)
	if err := l.orders.UpdateOrder(ctx, order, nil); err != nil {
		*order = prev
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

// submit locks the order, hands it to admin review and notifies the admin.
func (l *lifecycle) submit(ctx context.Context, order *models.Order, note string) error {
	err := l.transition(ctx, order, models.OrderStatusSubmitted, note, func(o *models.Order) {
		o.IsLocked = true
	})
	if err != nil {
		return err
	}
	l.publish(ctx, models.EventTypeOrderSubmitted, order, note)
	return nil
}

// publish is best effort: failures are logged and counted, never returned.
func (l *lifecycle) publish(ctx context.Context, eventType string, order *models.Order, note string) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Publish(ctx, models.NewOrderEvent(eventType, order, note)); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(eventType).Inc()
		l.logger.Error("Failed to publish order event",
			zap.String("event_type", eventType),
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}
