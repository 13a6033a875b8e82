package models

import (
	"encoding/json"
	"time"
)

// Product represents a grape product in the catalog
type Product struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Category    string    `db:"category" json:"category"`
	Grade       string    `db:"grade" json:"grade"`
	Unit        string    `db:"unit" json:"unit"`
	Price       int64     `db:"price" json:"price"`
	Stock       int       `db:"stock" json:"stock"`
	ImageURL    string    `db:"image_url" json:"image_url"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// User roles
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User represents a customer or admin account
type User struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Mobile       string    `db:"mobile" json:"mobile"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Cart is the per-user shopping cart
type Cart struct {
	ID        int64      `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	Items     []CartItem `db:"-" json:"items"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Total sums the item subtotals at their last refreshed price.
func (c *Cart) Total() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Subtotal
	}
	return total
}

// CartItem is a product line in a cart. Price is not locked.
type CartItem struct {
	ID          int64  `db:"id" json:"id"`
	CartID      int64  `db:"cart_id" json:"cart_id"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Quantity    int    `db:"quantity" json:"quantity"`
	Price       int64  `db:"price" json:"price"`
	Subtotal    int64  `db:"subtotal" json:"subtotal"`
}

// Dealer request statuses
const (
	DealerStatusPending  = "pending"
	DealerStatusReviewed = "reviewed"
	DealerStatusApproved = "approved"
	DealerStatusRejected = "rejected"
)

// DealerRequest is a prospective dealer signing up through the storefront
type DealerRequest struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	BusinessName string    `db:"business_name" json:"business_name"`
	Email        string    `db:"email" json:"email"`
	Mobile       string    `db:"mobile" json:"mobile"`
	City         string    `db:"city" json:"city"`
	Message      string    `db:"message" json:"message"`
	Status       string    `db:"status" json:"status"`
	AdminNote    string    `db:"admin_note" json:"admin_note"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// IsValidDealerStatus reports whether s is a known dealer request status.
func IsValidDealerStatus(s string) bool {
	switch s {
	case DealerStatusPending, DealerStatusReviewed, DealerStatusApproved, DealerStatusRejected:
		return true
	}
	return false
}

// Setting is a persisted key/value configuration entry
type Setting struct {
	Key       string          `db:"key" json:"key"`
	Value     json.RawMessage `db:"value" json:"value"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
