// Package settings reads and validates admin setting changes.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/aimd54/component-directory/internal/models"
	"github.com/aimd54/component-directory/internal/repository"
	"github.com/aimd54/component-directory/pkg/logger"
)

// ErrInvalidSetting is wrapped by every validation failure.
var ErrInvalidSetting = errors.New("invalid setting")

// Store persists settings.
type Store interface {
	Load(ctx context.Context) (models.AdminSettings, error)
	Set(ctx context.Context, values map[string]any, updatedBy string) error
}

// Service validates and applies setting updates.
type Service struct {
	store Store
	log   *logger.Logger
}

// NewService creates a settings service.
func NewService(store *repository.SettingsRepository, log *logger.Logger) *Service {
	return NewServiceWithStore(store, log)
}

// NewServiceWithStore creates a settings service over any store (for testing).
func NewServiceWithStore(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// Get returns the current settings snapshot.
func (s *Service) Get(ctx context.Context) (models.AdminSettings, error) {
	return s.store.Load(ctx)
}

// Update validates every value and writes them together. Unknown keys, wrong types and
// an interval below one day are rejected before anything is written.
func (s *Service) Update(ctx context.Context, raw map[string]json.RawMessage, updatedBy string) (models.AdminSettings, error) {
	if len(raw) == 0 {
		return models.AdminSettings{}, fmt.Errorf("%w: no settings given", ErrInvalidSetting)
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := make(map[string]any, len(raw))
	for _, key := range keys {
		value, err := decodeValue(key, raw[key])
		if err != nil {
			return models.AdminSettings{}, err
		}
		values[key] = value
	}

	if err := s.store.Set(ctx, values, updatedBy); err != nil {
		return models.AdminSettings{}, err
	}

	s.log.Info().Strs("keys", keys).Str("updated_by", updatedBy).Msg("Admin settings updated")
	return s.store.Load(ctx)
}

func decodeValue(key string, raw json.RawMessage) (any, error) {
	switch key {
	case models.SettingAutoApproveOnPass, models.SettingAutoRejectOnFail, models.SettingAutoRefreshEnabled:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("%w: %s must be a boolean", ErrInvalidSetting, key)
		}
		return b, nil
	case models.SettingRefreshIntervalDays:
		var days int
		if err := json.Unmarshal(raw, &days); err != nil {
			return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidSetting, key)
		}
		if days < 1 || days > models.MaxRefreshIntervalDays {
			return nil, fmt.Errorf("%w: %s must be between 1 and %d", ErrInvalidSetting, key, models.MaxRefreshIntervalDays)
		}
		return days, nil
	default:
		return nil, fmt.Errorf("%w: unknown key %q", ErrInvalidSetting, key)
	}
}
