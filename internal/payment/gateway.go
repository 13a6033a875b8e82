// Package payment talks to the hosted checkout gateway.
package payment

import (
	"context"
	"errors"
)

// ErrInvalidSignature is returned when a webhook signature does not verify.
var ErrInvalidSignature = errors.New("payment: invalid webhook signature")

// Gateway event types the order core reacts to
const (
	EventCheckoutCompleted          = "checkout.session.completed"
	EventCheckoutAsyncSucceeded     = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncFailed        = "checkout.session.async_payment_failed"
	EventCheckoutExpired            = "checkout.session.expired"
	EventPaymentIntentPaymentFailed = "payment_intent.payment_failed"
)

// Session payment states
const (
	SessionPaid   = "paid"
	SessionUnpaid = "unpaid"

	SessionStatusOpen     = "open"
	SessionStatusComplete = "complete"
	SessionStatusExpired  = "expired"
)

// LineItem is one itemized row on the hosted checkout page. Amounts are in
// minor currency units.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int
}

// CheckoutRequest describes the checkout session to open for an order
type CheckoutRequest struct {
	OrderID       int64
	OrderCode     string
	CustomerEmail string
	Currency      string
	LineItems     []LineItem
	SuccessURL    string
	CancelURL     string
}

// Session is the gateway's view of a checkout session
type Session struct {
	ID                string            `json:"id"`
	URL               string            `json:"url"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"`
	ClientReferenceID string            `json:"client_reference_id"`
	AmountTotal       int64             `json:"amount_total"`
	Metadata          map[string]string `json:"metadata"`
}

// OrderCode returns the order code the session was opened for.
func (s *Session) OrderCode() string {
	if code := s.Metadata["order_code"]; code != "" {
		return code
	}
	return s.ClientReferenceID
}

// Event is a verified webhook notification
type Event struct {
	ID      string
	Type    string
	Session Session
}

// Gateway creates checkout sessions and verifies their callbacks
type Gateway interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*Session, error)
	VerifyWebhook(payload []byte, signatureHeader string) (*Event, error)
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
}
