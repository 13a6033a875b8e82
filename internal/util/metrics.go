package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grape_orders_created_total",
		Help: "Total number of orders placed",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grape_orders_failed_total",
		Help: "Total number of rejected order placements",
	}, []string{"reason"})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grape_order_transitions_total",
		Help: "Total number of order status transitions by target status",
	}, []string{"status"})

	OrdersCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grape_orders_cancelled_total",
		Help: "Total number of cancelled orders",
	}, []string{"by"})

	PaymentSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grape_payment_sessions_total",
		Help: "Total number of checkout sessions requested from the gateway",
	}, []string{"result"})

	PaymentSuccessTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grape_payment_success_total",
		Help: "Total number of successful payments",
	})

	PaymentFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grape_payment_failed_total",
		Help: "Total number of failed payments",
	})

	PaymentGatewayLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "grape_payment_gateway_latency_seconds",
		Help:    "Latency of payment gateway calls",
		Buckets: prometheus.DefBuckets,
	})

	WebhookRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grape_payment_webhook_rejected_total",
		Help: "Total number of payment webhooks rejected",
	}, []string{"reason"})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grape_notifications_sent_total",
		Help: "Total number of notification emails by outcome",
	}, []string{"event_type", "result"})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grape_events_publish_failed_total",
		Help: "Total number of order events that could not be published",
	}, []string{"event_type"})

	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grape_rate_limited_total",
		Help: "Total number of requests rejected by rate limiting",
	}, []string{"scope"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
