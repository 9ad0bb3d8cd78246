package models

import (
	"time"

	"gorm.io/datatypes"
)

// RefreshLog records one refresh run, scheduled or manual.
type RefreshLog struct {
	ID                uint                              `gorm:"primaryKey" json:"id"`
	RunID             string                            `gorm:"size:36;uniqueIndex;not null" json:"runId"`
	StartedAt         time.Time                         `gorm:"not null;index" json:"startedAt"`
	CompletedAt       *time.Time                        `json:"completedAt,omitempty"`
	Status            string                            `gorm:"size:20;index;not null" json:"status"`
	PackagesProcessed int                               `gorm:"not null;default:0" json:"packagesProcessed"`
	PackagesSucceeded int                               `gorm:"not null;default:0" json:"packagesSucceeded"`
	PackagesFailed    int                               `gorm:"not null;default:0" json:"packagesFailed"`
	Errors            datatypes.JSONSlice[RefreshError] `gorm:"type:jsonb" json:"errors"`
	IsManual          bool                              `gorm:"not null;default:false" json:"isManual"`
}

// TableName specifies the table name for RefreshLog model.
func (RefreshLog) TableName() string {
	return "refresh_logs"
}

// RefreshError is the failure of a single package within a run.
type RefreshError struct {
	PackageID   uint   `json:"packageId"`
	PackageName string `json:"packageName"`
	Error       string `json:"error"`
}

// Refresh run status constants.
const (
	RefreshStatusRunning   = "running"
	RefreshStatusCompleted = "completed"
	RefreshStatusFailed    = "failed"
)
