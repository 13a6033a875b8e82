package service

import (
	"context"
	"fmt"
	"strings"

	"grape-store/internal/models"
	"grape-store/internal/util"

	"go.uber.org/zap"
)

// DealerService handles dealer signup requests
type DealerService struct {
	store  DealerStore
	logger *zap.Logger
}

// NewDealerService creates a new dealer service
func NewDealerService(store DealerStore) *DealerService {
	return &DealerService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// DealerRequestInput is the public signup form
type DealerRequestInput struct {
	Name         string `json:"name" binding:"required"`
	BusinessName string `json:"business_name"`
	Email        string `json:"email"`
	Mobile       string `json:"mobile" binding:"required"`
	City         string `json:"city"`
	Message      string `json:"message"`
}

// Submit records a new dealer request
func (s *DealerService) Submit(ctx context.Context, in *DealerRequestInput) (*models.DealerRequest, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Mobile) == "" {
		return nil, fmt.Errorf("%w: name and mobile are required", ErrValidation)
	}

	req := &models.DealerRequest{
		Name:         strings.TrimSpace(in.Name),
		BusinessName: strings.TrimSpace(in.BusinessName),
		Email:        strings.TrimSpace(in.Email),
		Mobile:       strings.TrimSpace(in.Mobile),
		City:         strings.TrimSpace(in.City),
		Message:      in.Message,
		Status:       models.DealerStatusPending,
	}
	if err := s.store.CreateDealerRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save dealer request: %w", err)
	}

	s.logger.Info("Dealer request received", zap.Int64("dealer_request_id", req.ID))
	return req, nil
}

// List lists dealer requests, optionally by status
func (s *DealerService) List(ctx context.Context, status string, limit, offset int) ([]models.DealerRequest, error) {
	if status != "" && !models.IsValidDealerStatus(status) {
		return nil, fmt.Errorf("%w: unknown dealer status %q", ErrValidation, status)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListDealerRequests(ctx, status, limit, offset)
}

// Get retrieves a dealer request
func (s *DealerService) Get(ctx context.Context, id int64) (*models.DealerRequest, error) {
	return s.store.GetDealerRequest(ctx, id)
}

// UpdateStatus records the admin's decision on a dealer request
func (s *DealerService) UpdateStatus(ctx context.Context, id int64, status, note string) (*models.DealerRequest, error) {
	if !models.IsValidDealerStatus(status) {
		return nil, fmt.Errorf("%w: unknown dealer status %q", ErrValidation, status)
	}
	if err := s.store.UpdateDealerRequestStatus(ctx, id, status, strings.TrimSpace(note)); err != nil {
		return nil, err
	}
	return s.store.GetDealerRequest(ctx, id)
}
