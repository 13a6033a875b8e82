package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"grape-store/internal/models"
)

// GetSetting retrieves the stored value for key
func (s *Store) GetSetting(ctx context.Context, key string) (json.RawMessage, error) {
	var value []byte
	err := s.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: setting %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(value), nil
}

// ListSettings retrieves every stored setting
func (s *Store) ListSettings(ctx context.Context) ([]models.Setting, error) {
	settings := []models.Setting{}
	err := s.db.SelectContext(ctx, &settings, "SELECT key, value, updated_at FROM settings ORDER BY key")
	return settings, err
}

// UpsertSetting writes the value for key
func (s *Store) UpsertSetting(ctx context.Context, key string, value json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, string(value))
	return err
}
