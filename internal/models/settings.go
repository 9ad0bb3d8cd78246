package models

import (
	"encoding/json"
	"time"
)

// AdminSetting is one persisted admin setting, stored as a JSON value under a unique key.
type AdminSetting struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Key       string          `gorm:"uniqueIndex;not null;size:100" json:"key"`
	Value     json.RawMessage `gorm:"type:jsonb;not null" json:"value"`
	UpdatedBy string          `gorm:"size:255" json:"updatedBy,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// TableName specifies the table name for AdminSetting model.
func (AdminSetting) TableName() string {
	return "admin_settings"
}

// Setting keys.
const (
	SettingAutoApproveOnPass   = "autoApproveOnPass"
	SettingAutoRejectOnFail    = "autoRejectOnFail"
	SettingAutoRefreshEnabled  = "autoRefreshEnabled"
	SettingRefreshIntervalDays = "refreshIntervalDays"
)

// MaxRefreshIntervalDays bounds refreshIntervalDays.
const MaxRefreshIntervalDays = 3650

// AdminSettings is the typed snapshot of all admin settings, read once before an
// automated decision and passed explicitly to the code that makes it.
type AdminSettings struct {
	AutoApproveOnPass   bool `json:"autoApproveOnPass"`
	AutoRejectOnFail    bool `json:"autoRejectOnFail"`
	AutoRefreshEnabled  bool `json:"autoRefreshEnabled"`
	RefreshIntervalDays int  `json:"refreshIntervalDays"`
}

// DefaultAdminSettings returns the values used for keys that were never written.
func DefaultAdminSettings() AdminSettings {
	return AdminSettings{
		AutoApproveOnPass:   false,
		AutoRejectOnFail:    false,
		AutoRefreshEnabled:  true,
		RefreshIntervalDays: 7,
	}
}

// RefreshInterval returns the staleness window.
func (s AdminSettings) RefreshInterval() time.Duration {
	return time.Duration(s.RefreshIntervalDays) * 24 * time.Hour
}
