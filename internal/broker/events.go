package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"grape-store/internal/models"
	"grape-store/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes order lifecycle events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// Publish publishes an order event keyed by order so that events for one
// order stay on one partition, in order.
func (ep *EventPublisher) Publish(ctx context.Context, event *models.OrderEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming order events by type
type EventHandler struct {
	handlers map[string]func(context.Context, *models.OrderEvent) error
	fallback func(context.Context, *models.OrderEvent) error
	logger   *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{
		handlers: make(map[string]func(context.Context, *models.OrderEvent) error),
		logger:   util.Named("broker"),
	}
}

// On registers a handler for one event type
func (eh *EventHandler) On(eventType string, handler func(context.Context, *models.OrderEvent) error) {
	eh.handlers[eventType] = handler
}

// OnAny registers a handler for event types without a specific handler
func (eh *EventHandler) OnAny(handler func(context.Context, *models.OrderEvent) error) {
	eh.fallback = handler
}

// HandleMessage decodes a message and routes it to its handler. Malformed
// messages are logged and dropped so they do not block the partition.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		eh.logger.Error("Dropping malformed event",
			zap.ByteString("key", msg.Key),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return nil
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	handler, ok := eh.handlers[baseEvent.EventType]
	if !ok {
		handler = eh.fallback
	}
	if handler == nil {
		eh.logger.Debug("Unhandled event type", zap.String("event_type", baseEvent.EventType))
		return nil
	}

	var event models.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		eh.logger.Error("Dropping malformed order event",
			zap.String("event_id", baseEvent.EventID),
			zap.Error(err))
		return nil
	}
	return handler(ctx, &event)
}
