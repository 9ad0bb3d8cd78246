package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aimd54/component-directory/internal/models"
)

// RefreshLogRepository handles refresh run records.
type RefreshLogRepository struct {
	db *DB
}

// NewRefreshLogRepository creates a new refresh log repository.
func NewRefreshLogRepository(db *DB) *RefreshLogRepository {
	return &RefreshLogRepository{db: db}
}

// Create inserts a new run record.
func (r *RefreshLogRepository) Create(ctx context.Context, log *models.RefreshLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return wrap("create refresh log", err)
	}
	return nil
}

// Save writes the full record, including counts and errors.
func (r *RefreshLogRepository) Save(ctx context.Context, log *models.RefreshLog) error {
	if err := r.db.WithContext(ctx).Save(log).Error; err != nil {
		return wrap(fmt.Sprintf("save refresh log %s", log.RunID), err)
	}
	return nil
}

// GetByID retrieves a run record by ID.
func (r *RefreshLogRepository) GetByID(ctx context.Context, id uint) (*models.RefreshLog, error) {
	var log models.RefreshLog
	if err := r.db.WithContext(ctx).First(&log, id).Error; err != nil {
		return nil, wrap(fmt.Sprintf("get refresh log %d", id), err)
	}
	return &log, nil
}

// List returns the most recent run records, newest first.
func (r *RefreshLogRepository) List(ctx context.Context, limit, offset int) ([]models.RefreshLog, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.RefreshLog{}).Count(&total).Error; err != nil {
		return nil, 0, wrap("count refresh logs", err)
	}

	query := r.db.WithContext(ctx).Order("started_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var logs []models.RefreshLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, 0, wrap("list refresh logs", err)
	}
	return logs, total, nil
}

// HasRunningSince reports whether a running record started after the given time exists.
func (r *RefreshLogRepository) HasRunningSince(ctx context.Context, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RefreshLog{}).
		Where("status = ? AND started_at > ?", models.RefreshStatusRunning, since).
		Count(&count).Error
	if err != nil {
		return false, wrap("check running refresh logs", err)
	}
	return count > 0, nil
}

// FailOrphaned finalizes running records started at or before the cutoff as failed and
// returns how many were changed.
func (r *RefreshLogRepository) FailOrphaned(ctx context.Context, cutoff, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.RefreshLog{}).
		Where("status = ? AND started_at <= ?", models.RefreshStatusRunning, cutoff).
		Updates(map[string]any{
			"status":       models.RefreshStatusFailed,
			"completed_at": now,
		})
	if result.Error != nil {
		return 0, wrap("fail orphaned refresh logs", result.Error)
	}
	return result.RowsAffected, nil
}
