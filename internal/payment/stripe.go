package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"grape-store/internal/util"

	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// StripeConfig configures the Stripe checkout client. BaseURL overrides the
// API host and is left empty in production.
type StripeConfig struct {
	BaseURL          string
	SecretKey        string
	WebhookSecret    string
	WebhookTolerance time.Duration
}

// StripeClient opens Stripe checkout sessions and verifies Stripe webhooks
type StripeClient struct {
	cfg      StripeConfig
	sessions *checkoutsession.Client
	logger   *zap.Logger
}

// NewStripeClient creates a new gateway client
func NewStripeClient(cfg StripeConfig) *StripeClient {
	if cfg.WebhookTolerance <= 0 {
		cfg.WebhookTolerance = 5 * time.Minute
	}
	logger := util.Named("stripe")

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 15 * time.Second},
		LeveledLogger:     logger.Sugar(),
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(cfg.BaseURL)
	}

	return &StripeClient{
		cfg: cfg,
		sessions: &checkoutsession.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: cfg.SecretKey,
		},
		logger: logger,
	}
}

// Name identifies the gateway on stored orders
func (c *StripeClient) Name() string {
	return "stripe"
}

// CreateCheckoutSession opens a hosted checkout session itemized by line item
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*Session, error) {
	ctx, span := util.StartSpan(ctx, "StripeClient.CreateCheckoutSession")
	defer span.End()

	orderID := strconv.FormatInt(req.OrderID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderCode),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"order_id": orderID, "order_code": req.OrderCode},
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", orderID)
	params.AddMetadata("order_code", req.OrderCode)
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	for _, item := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(req.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}

	s, err := c.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}

	c.logger.Info("Checkout session created",
		zap.String("order_code", req.OrderCode),
		zap.String("session_id", s.ID))
	return toSession(s), nil
}

// RetrieveSession fetches the current state of a checkout session
func (c *StripeClient) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	ctx, span := util.StartSpan(ctx, "StripeClient.RetrieveSession")
	defer span.End()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := c.sessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	return toSession(s), nil
}

// VerifyWebhook checks the Stripe-Signature header against the payload and
// decodes the event. The event's API version is not checked.
func (c *StripeClient) VerifyWebhook(payload []byte, signatureHeader string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, c.cfg.WebhookSecret,
		webhook.ConstructEventOptions{
			Tolerance:                c.cfg.WebhookTolerance,
			IgnoreAPIVersionMismatch: true,
		})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil && len(event.Data.Raw) > 0 {
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("failed to decode webhook object: %w", err)
		}
		out.Session = *toSession(&s)
	}
	return out, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

func toSession(s *stripe.CheckoutSession) *Session {
	return &Session{
		ID:                s.ID,
		URL:               s.URL,
		Status:            string(s.Status),
		PaymentStatus:     string(s.PaymentStatus),
		ClientReferenceID: s.ClientReferenceID,
		AmountTotal:       s.AmountTotal,
		Metadata:          s.Metadata,
	}
}
