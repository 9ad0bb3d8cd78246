package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aimd54/component-directory/internal/models"
)

// SettingsRepository handles admin setting rows.
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetAll returns every stored setting row.
func (r *SettingsRepository) GetAll(ctx context.Context) ([]models.AdminSetting, error) {
	var settings []models.AdminSetting
	if err := r.db.WithContext(ctx).Order("key ASC").Find(&settings).Error; err != nil {
		return nil, wrap("get settings", err)
	}
	return settings, nil
}

// Load reads all rows into a typed snapshot, falling back to defaults for missing or
// undecodable keys.
func (r *SettingsRepository) Load(ctx context.Context) (models.AdminSettings, error) {
	snapshot := models.DefaultAdminSettings()

	rows, err := r.GetAll(ctx)
	if err != nil {
		return snapshot, err
	}

	for _, row := range rows {
		switch row.Key {
		case models.SettingAutoApproveOnPass:
			_ = json.Unmarshal(row.Value, &snapshot.AutoApproveOnPass)
		case models.SettingAutoRejectOnFail:
			_ = json.Unmarshal(row.Value, &snapshot.AutoRejectOnFail)
		case models.SettingAutoRefreshEnabled:
			_ = json.Unmarshal(row.Value, &snapshot.AutoRefreshEnabled)
		case models.SettingRefreshIntervalDays:
			var days int
			if json.Unmarshal(row.Value, &days) == nil && days >= 1 && days <= models.MaxRefreshIntervalDays {
				snapshot.RefreshIntervalDays = days
			}
		}
	}
	return snapshot, nil
}

// Set upserts the given key/value pairs in one transaction.
func (r *SettingsRepository) Set(ctx context.Context, values map[string]any, updatedBy string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			raw, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("failed to encode setting %s: %w", key, err)
			}
			row := models.AdminSetting{
				Key:       key,
				Value:     raw,
				UpdatedBy: updatedBy,
				UpdatedAt: now,
			}
			err = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return wrap("save setting "+key, err)
			}
		}
		return nil
	})
}
