package worker

import (
	"context"
	"strings"

	"grape-store/internal/broker"
	"grape-store/internal/models"
	"grape-store/internal/notify"
	"grape-store/internal/service"
	"grape-store/internal/util"

	"go.uber.org/zap"
)

// SettingsReader resolves string settings
type SettingsReader interface {
	String(ctx context.Context, key string) (string, error)
}

// NotificationWorker consumes order events and emails the customer, or the
// admin for orders waiting on review.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	mailer       notify.Mailer
	renderer     *notify.Renderer
	settings     SettingsReader
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(
	consumer *broker.Consumer,
	mailer notify.Mailer,
	settings SettingsReader,
) *NotificationWorker {
	w := &NotificationWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		mailer:       mailer,
		renderer:     notify.NewRenderer(),
		settings:     settings,
		logger:       util.Named("notification-worker"),
	}

	w.eventHandler.OnAny(w.HandleEvent)
	return w
}

// Start consumes until ctx is cancelled
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop closes the consumer
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

// HandleEvent sends the email for one event. Delivery failures are logged
// and counted, never returned: a broken mail relay must not stall the topic.
func (w *NotificationWorker) HandleEvent(ctx context.Context, event *models.OrderEvent) error {
	if !w.renderer.Supports(event.EventType) {
		return nil
	}

	logger := w.logger.With(
		zap.String("event_type", event.EventType),
		zap.String("event_id", event.EventID),
		zap.Int64("order_id", event.OrderID))

	to := event.CustomerEmail
	if event.EventType == models.EventTypeOrderSubmitted {
		to = w.setting(ctx, service.SettingAdminNotificationEmail)
	}
	if strings.TrimSpace(to) == "" {
		logger.Warn("No recipient for notification")
		util.NotificationsSentTotal.WithLabelValues(event.EventType, "skipped").Inc()
		return nil
	}

	shop := notify.Shop{
		Name:     w.setting(ctx, service.SettingCompanyName),
		Email:    w.setting(ctx, service.SettingCompanyEmail),
		Phone:    w.setting(ctx, service.SettingCompanyPhone),
		Currency: w.setting(ctx, service.SettingCurrency),
	}

	msg, err := w.renderer.Render(event, shop, to)
	if err != nil {
		logger.Error("Failed to render notification", zap.Error(err))
		util.NotificationsSentTotal.WithLabelValues(event.EventType, "error").Inc()
		return nil
	}

	if err := w.mailer.Send(ctx, msg); err != nil {
		logger.Error("Failed to send notification", zap.String("to", to), zap.Error(err))
		util.NotificationsSentTotal.WithLabelValues(event.EventType, "error").Inc()
		return nil
	}

	logger.Info("Notification sent", zap.String("to", to))
	util.NotificationsSentTotal.WithLabelValues(event.EventType, "sent").Inc()
	return nil
}

func (w *NotificationWorker) setting(ctx context.Context, key string) string {
	v, err := w.settings.String(ctx, key)
	if err != nil {
		w.logger.Warn("Failed to read setting", zap.String("key", key), zap.Error(err))
		return ""
	}
	return v
}
