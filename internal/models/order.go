package models

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

// Order statuses
const (
	OrderStatusCreated          OrderStatus = "created"
	OrderStatusAwaitingPayment  OrderStatus = "awaiting_payment"
	OrderStatusPaymentCompleted OrderStatus = "payment_completed"
	OrderStatusSubmitted        OrderStatus = "submitted"
	OrderStatusApproved         OrderStatus = "approved"
	OrderStatusRejected         OrderStatus = "rejected"
	OrderStatusConfirmed        OrderStatus = "confirmed"
	OrderStatusDispatched       OrderStatus = "dispatched"
	OrderStatusDelivered        OrderStatus = "delivered"
	OrderStatusCompleted        OrderStatus = "completed"
	OrderStatusCancelled        OrderStatus = "cancelled"
)

// AllOrderStatuses lists every status in lifecycle order.
var AllOrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusAwaitingPayment,
	OrderStatusPaymentCompleted,
	OrderStatusSubmitted,
	OrderStatusApproved,
	OrderStatusRejected,
	OrderStatusConfirmed,
	OrderStatusDispatched,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// PaymentStatus tracks money movement independently of OrderStatus.
type PaymentStatus string

// Payment statuses
const (
	PaymentStatusInitiated PaymentStatus = "initiated"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// PaymentMethod is how the customer pays.
type PaymentMethod string

// Payment methods
const (
	PaymentMethodCOD  PaymentMethod = "cod"
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodUPI  PaymentMethod = "upi"
)

// IsValid reports whether m is a supported payment method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodCard, PaymentMethodUPI:
		return true
	}
	return false
}

// IsOnline reports whether m goes through the payment gateway.
func (m PaymentMethod) IsOnline() bool {
	return m == PaymentMethodCard || m == PaymentMethodUPI
}

// ApprovalStatus is the outcome of the admin review.
type ApprovalStatus string

// Approval statuses
const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// CancelledBy records who cancelled an order.
type CancelledBy string

const (
	CancelledByNone     CancelledBy = ""
	CancelledByCustomer CancelledBy = "customer"
	CancelledByAdmin    CancelledBy = "admin"
)

// Order is a placed order. Line items and pricing are frozen at creation.
type Order struct {
	ID        int64  `db:"id" json:"id"`
	OrderCode string `db:"order_code" json:"order_code"`
	UserID    int64  `db:"user_id" json:"user_id"`

	CustomerName   string `db:"customer_name" json:"customer_name"`
	CustomerMobile string `db:"customer_mobile" json:"customer_mobile"`
	CustomerEmail  string `db:"customer_email" json:"customer_email"`

	AddressLine string `db:"address_line" json:"address_line"`
	City        string `db:"city" json:"city"`
	State       string `db:"state" json:"state"`
	PostalCode  string `db:"postal_code" json:"postal_code"`

	ItemsTotal      int64 `db:"items_total" json:"items_total"`
	DeliveryCharges int64 `db:"delivery_charges" json:"delivery_charges"`
	Total           int64 `db:"total" json:"total"`

	PaymentMethod  PaymentMethod `db:"payment_method" json:"payment_method"`
	PaymentStatus  PaymentStatus `db:"payment_status" json:"payment_status"`
	TransactionID  string        `db:"transaction_id" json:"transaction_id,omitempty"`
	PaymentGateway string        `db:"payment_gateway" json:"payment_gateway,omitempty"`
	PaidAt         *time.Time    `db:"paid_at" json:"paid_at,omitempty"`

	Status         OrderStatus    `db:"status" json:"status"`
	ReviewedBy     *int64         `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time     `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNote     string         `db:"review_note" json:"review_note,omitempty"`
	ApprovalStatus ApprovalStatus `db:"approval_status" json:"approval_status"`
	IsLocked       bool           `db:"is_locked" json:"is_locked"`
	DeliveredAt    *time.Time     `db:"delivered_at" json:"delivered_at,omitempty"`
	CancelledBy    CancelledBy    `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelReason   string         `db:"cancel_reason" json:"cancel_reason,omitempty"`

	IdempotencyKey string    `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`

	Items   []OrderItem          `db:"-" json:"items,omitempty"`
	History []StatusHistoryEntry `db:"-" json:"status_history,omitempty"`
}

// OrderItem is an immutable line item snapshot.
type OrderItem struct {
	ID          int64  `db:"id" json:"id"`
	OrderID     int64  `db:"order_id" json:"order_id"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Quantity    int    `db:"quantity" json:"quantity"`
	UnitPrice   int64  `db:"unit_price" json:"unit_price"`
	Subtotal    int64  `db:"subtotal" json:"subtotal"`
}

// StatusHistoryEntry is one row of the append-only audit trail.
type StatusHistoryEntry struct {
	ID        int64       `db:"id" json:"-"`
	OrderID   int64       `db:"order_id" json:"-"`
	Status    OrderStatus `db:"status" json:"status"`
	Note      string      `db:"note" json:"note,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"timestamp"`
}

// OrderFact is the projection of an order that reporting needs.
type OrderFact struct {
	ID            int64         `db:"id"`
	UserID        int64         `db:"user_id"`
	Status        OrderStatus   `db:"status"`
	PaymentStatus PaymentStatus `db:"payment_status"`
	PaymentMethod PaymentMethod `db:"payment_method"`
	Total         int64         `db:"total"`
	CreatedAt     time.Time     `db:"created_at"`
}

// OrderItemFact is a line item joined with its order's reporting fields.
type OrderItemFact struct {
	ProductID     int64         `db:"product_id"`
	ProductName   string        `db:"product_name"`
	Quantity      int           `db:"quantity"`
	Subtotal      int64         `db:"subtotal"`
	Status        OrderStatus   `db:"status"`
	PaymentStatus PaymentStatus `db:"payment_status"`
	PaymentMethod PaymentMethod `db:"payment_method"`
}

// IsEffective reports whether an order with this status counts at all.
// Only cancelled and rejected orders are excluded.
func IsEffective(status OrderStatus) bool {
	return status != OrderStatusCancelled && status != OrderStatusRejected
}

// IsRevenueEligible reports whether an order's total counts as collected
// money: an effective order paid online, or a COD order handed over to the
// customer. For COD the stored payment status is not consulted.
func IsRevenueEligible(status OrderStatus, payment PaymentStatus, method PaymentMethod) bool {
	if !IsEffective(status) {
		return false
	}
	if payment == PaymentStatusSuccess {
		return true
	}
	return method == PaymentMethodCOD &&
		(status == OrderStatusDelivered || status == OrderStatusCompleted)
}

// Effective applies IsEffective to the order.
func (o *Order) Effective() bool { return IsEffective(o.Status) }

// RevenueEligible applies IsRevenueEligible to the order.
func (o *Order) RevenueEligible() bool {
	return IsRevenueEligible(o.Status, o.PaymentStatus, o.PaymentMethod)
}

// Fact projects the order for reporting.
func (o *Order) Fact() OrderFact {
	return OrderFact{
		ID:            o.ID,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
		Total:         o.Total,
		CreatedAt:     o.CreatedAt,
	}
}

// Effective applies IsEffective to the fact.
func (f OrderFact) Effective() bool { return IsEffective(f.Status) }

// RevenueEligible applies IsRevenueEligible to the fact.
func (f OrderFact) RevenueEligible() bool {
	return IsRevenueEligible(f.Status, f.PaymentStatus, f.PaymentMethod)
}

var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated:          {OrderStatusAwaitingPayment, OrderStatusSubmitted, OrderStatusCancelled},
	OrderStatusAwaitingPayment:  {OrderStatusPaymentCompleted, OrderStatusCancelled},
	OrderStatusPaymentCompleted: {OrderStatusSubmitted, OrderStatusCancelled},
	OrderStatusSubmitted:        {OrderStatusApproved, OrderStatusRejected, OrderStatusCancelled},
	OrderStatusApproved:         {OrderStatusConfirmed, OrderStatusDispatched, OrderStatusCancelled},
	OrderStatusConfirmed:        {OrderStatusDispatched, OrderStatusCancelled},
	OrderStatusDispatched:       {OrderStatusDelivered},
	OrderStatusDelivered:        {OrderStatusCompleted},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable in one step from s.
func NextStatuses(s OrderStatus) []OrderStatus {
	next := transitions[s]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether no further transition is possible.
func IsTerminal(s OrderStatus) bool {
	return len(transitions[s]) == 0
}

// ParseOrderStatus validates a status string.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, status := range AllOrderStatuses {
		if string(status) == s {
			return status, true
		}
	}
	return "", false
}

// NewOrderCode builds a human-readable order code from the timestamp suffix
// and four random digits, e.g. GRP845120934821.
func NewOrderCode(now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ts) > 8 {
		ts = ts[len(ts)-8:]
	}
	return fmt.Sprintf("GRP%s%04d", ts, rand.Intn(10000))
}
