package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"grape-store/internal/util"

	"go.uber.org/zap"
)

// Setting keys
const (
	SettingDeliveryCharge         = "delivery_charge"
	SettingCancellationWindow     = "cancellation_window_hours"
	SettingCompanyName            = "company_name"
	SettingCompanyEmail           = "company_email"
	SettingCompanyPhone           = "company_phone"
	SettingCompanyAddress         = "company_address"
	SettingAdminNotificationEmail = "admin_notification_email"
	SettingCurrency               = "currency"
)

type settingKind int

const (
	kindInt settingKind = iota
	kindString
)

type settingDefault struct {
	kind   settingKind
	value  interface{}
	public bool
}

// settingDefaults is the only place fallback values live.
var settingDefaults = map[string]settingDefault{
	SettingDeliveryCharge:         {kind: kindInt, value: int64(5000), public: true},
	SettingCancellationWindow:     {kind: kindInt, value: int64(24), public: true},
	SettingCompanyName:            {kind: kindString, value: "Grape Store", public: true},
	SettingCompanyEmail:           {kind: kindString, value: "support@grapestore.local", public: true},
	SettingCompanyPhone:           {kind: kindString, value: "", public: true},
	SettingCompanyAddress:         {kind: kindString, value: "", public: true},
	SettingAdminNotificationEmail: {kind: kindString, value: "admin@grapestore.local"},
	SettingCurrency:               {kind: kindString, value: "inr", public: true},
}

// SettingsService resolves configuration from the settings store with a
// static default table behind it.
type SettingsService struct {
	store  SettingStore
	logger *zap.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(store SettingStore) *SettingsService {
	return &SettingsService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// Resolve returns the stored value for key, or its default when the key was
// never written.
func (s *SettingsService) Resolve(ctx context.Context, key string) (json.RawMessage, error) {
	value, err := s.store.GetSetting(ctx, key)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to load setting %s: %w", key, err)
	}

	def, ok := settingDefaults[key]
	if !ok {
		return nil, fmt.Errorf("%w: setting %s", ErrNotFound, key)
	}
	return json.Marshal(def.value)
}

// Int64 resolves an integer setting
func (s *SettingsService) Int64(ctx context.Context, key string) (int64, error) {
	raw, err := s.Resolve(ctx, key)
	if err != nil {
		return 0, err
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("setting %s is not an integer: %w", key, err)
	}
	return v, nil
}

// String resolves a string setting
func (s *SettingsService) String(ctx context.Context, key string) (string, error) {
	raw, err := s.Resolve(ctx, key)
	if err != nil {
		return "", err
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("setting %s is not a string: %w", key, err)
	}
	return v, nil
}

// All returns every known setting with stored values over defaults, plus any
// extra keys that were stored.
func (s *SettingsService) All(ctx context.Context) (map[string]json.RawMessage, error) {
	stored, err := s.store.ListSettings(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]json.RawMessage, len(settingDefaults)+len(stored))
	for key, def := range settingDefaults {
		raw, _ := json.Marshal(def.value)
		out[key] = raw
	}
	for _, setting := range stored {
		out[setting.Key] = setting.Value
	}
	return out, nil
}

// Public returns the settings the storefront may see
func (s *SettingsService) Public(ctx context.Context) (map[string]json.RawMessage, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage)
	for key, def := range settingDefaults {
		if def.public {
			out[key] = all[key]
		}
	}
	return out, nil
}

// Update validates and stores the given settings. Known keys must match
// their declared kind; integers must not be negative.
func (s *SettingsService) Update(ctx context.Context, values map[string]json.RawMessage) error {
	ctx, span := util.StartSpan(ctx, "SettingsService.Update")
	defer span.End()

	if len(values) == 0 {
		return fmt.Errorf("%w: no settings given", ErrValidation)
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := validateSetting(key, values[key]); err != nil {
			return err
		}
	}

	for _, key := range keys {
		if err := s.store.UpsertSetting(ctx, key, values[key]); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}
	}

	s.logger.Info("Settings updated", zap.Strings("keys", keys))
	return nil
}

func validateSetting(key string, raw json.RawMessage) error {
	def, ok := settingDefaults[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %s", ErrValidation, key)
	}

	switch def.kind {
	case kindInt:
		var v int64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%w: %s must be an integer", ErrValidation, key)
		}
		if v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrValidation, key)
		}
	case kindString:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%w: %s must be a string", ErrValidation, key)
		}
	}
	return nil
}
