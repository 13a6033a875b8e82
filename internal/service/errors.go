package service

import (
	"errors"
	"fmt"
	"strings"

	"grape-store/internal/store"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = store.ErrNotFound
	ErrConflict         = errors.New("conflict")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrExternal         = errors.New("external service failure")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// CartViolation describes why one cart line cannot be ordered.
type CartViolation struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Reason      string `json:"reason"`
}

// CartValidationError lists every violating cart line. It matches
// ErrValidation under errors.Is.
type CartValidationError struct {
	Violations []CartViolation
}

func (e *CartValidationError) Error() string {
	reasons := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		reasons = append(reasons, fmt.Sprintf("%s: %s", v.ProductName, v.Reason))
	}
	return "cart validation failed: " + strings.Join(reasons, "; ")
}

func (e *CartValidationError) Unwrap() error {
	return ErrValidation
}
