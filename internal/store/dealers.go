package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"grape-store/internal/models"
)

// CreateDealerRequest inserts a new dealer request
func (s *Store) CreateDealerRequest(ctx context.Context, d *models.DealerRequest) error {
	query := `
		INSERT INTO dealer_requests (name, business_name, email, mobile, city, message, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		d.Name, d.BusinessName, d.Email, d.Mobile, d.City, d.Message, d.Status,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

// GetDealerRequest retrieves a dealer request by ID
func (s *Store) GetDealerRequest(ctx context.Context, id int64) (*models.DealerRequest, error) {
	var d models.DealerRequest
	err := s.db.GetContext(ctx, &d, "SELECT * FROM dealer_requests WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: dealer request %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDealerRequests retrieves dealer requests, optionally by status
func (s *Store) ListDealerRequests(ctx context.Context, status string, limit, offset int) ([]models.DealerRequest, error) {
	requests := []models.DealerRequest{}
	if status == "" {
		err := s.db.SelectContext(ctx, &requests,
			"SELECT * FROM dealer_requests ORDER BY created_at DESC LIMIT $1 OFFSET $2", limit, offset)
		return requests, err
	}
	err := s.db.SelectContext(ctx, &requests,
		"SELECT * FROM dealer_requests WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		status, limit, offset)
	return requests, err
}

// UpdateDealerRequestStatus sets the review status and note
func (s *Store) UpdateDealerRequestStatus(ctx context.Context, id int64, status, note string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE dealer_requests SET status = $1, admin_note = $2, updated_at = NOW() WHERE id = $3",
		status, note, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: dealer request %d", ErrNotFound, id)
	}
	return nil
}

// CountDealerRequests counts dealer requests with the given status
func (s *Store) CountDealerRequests(ctx context.Context, status string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM dealer_requests WHERE status = $1", status)
	return count, err
}
