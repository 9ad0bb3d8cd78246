package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aimd54/component-directory/internal/models"
)

// PackageFilter narrows a package listing. Zero values mean "any".
type PackageFilter struct {
	ReviewStatus   string
	Visibility     string
	AIReviewStatus string
	Featured       *bool
	ListedOnly     bool
	Search         string
	Sort           string // "name", "downloads" or "submitted" (default)
	Limit          int
	Offset         int
}

// PackageStats holds package counts grouped by state.
type PackageStats struct {
	Total          int64            `json:"total"`
	Listed         int64            `json:"listed"`
	Featured       int64            `json:"featured"`
	ByReviewStatus map[string]int64 `json:"byReviewStatus"`
	ByAIStatus     map[string]int64 `json:"byAiReviewStatus"`
	ByVisibility   map[string]int64 `json:"byVisibility"`
}

// PackageRepository handles package database operations.
type PackageRepository struct {
	db *DB
}

// NewPackageRepository creates a new package repository.
func NewPackageRepository(db *DB) *PackageRepository {
	return &PackageRepository{db: db}
}

// Create inserts a new package.
func (r *PackageRepository) Create(ctx context.Context, pkg *models.Package) error {
	if err := r.db.WithContext(ctx).Create(pkg).Error; err != nil {
		return wrap("create package", err)
	}
	return nil
}

// GetByID retrieves a package by ID.
func (r *PackageRepository) GetByID(ctx context.Context, id uint) (*models.Package, error) {
	var pkg models.Package
	if err := r.db.WithContext(ctx).First(&pkg, id).Error; err != nil {
		return nil, wrap(fmt.Sprintf("get package %d", id), err)
	}
	return &pkg, nil
}

// GetByName retrieves a package by its npm name.
func (r *PackageRepository) GetByName(ctx context.Context, name string) (*models.Package, error) {
	var pkg models.Package
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&pkg).Error; err != nil {
		return nil, wrap(fmt.Sprintf("get package %q", name), err)
	}
	return &pkg, nil
}

// List returns a page of packages matching the filter and the total match count.
func (r *PackageRepository) List(ctx context.Context, filter PackageFilter) ([]models.Package, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Package{})

	if filter.ListedOnly {
		query = query.Where("review_status = ? AND visibility = ?", models.ReviewStatusApproved, models.VisibilityVisible)
	}
	if filter.ReviewStatus != "" {
		query = query.Where("review_status = ?", filter.ReviewStatus)
	}
	if filter.Visibility != "" {
		query = query.Where("visibility = ?", filter.Visibility)
	}
	if filter.AIReviewStatus != "" {
		query = query.Where("ai_review_status = ?", filter.AIReviewStatus)
	}
	if filter.Featured != nil {
		query = query.Where("featured = ?", *filter.Featured)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrap("count packages", err)
	}

	switch filter.Sort {
	case "name":
		query = query.Order("name ASC")
	case "downloads":
		query = query.Order("weekly_downloads DESC").Order("name ASC")
	default:
		query = query.Order("submitted_at DESC").Order("id DESC")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var packages []models.Package
	if err := query.Find(&packages).Error; err != nil {
		return nil, 0, wrap("list packages", err)
	}
	return packages, total, nil
}

// ListListed returns every listed package (approved and visible), ordered by name.
func (r *PackageRepository) ListListed(ctx context.Context) ([]models.Package, error) {
	var packages []models.Package
	err := r.db.WithContext(ctx).
		Where("review_status = ? AND visibility = ?", models.ReviewStatusApproved, models.VisibilityVisible).
		Order("name ASC").
		Find(&packages).Error
	if err != nil {
		return nil, wrap("list listed packages", err)
	}
	return packages, nil
}

// ListRefreshCandidates returns non-archived packages ordered by ID. When staleBefore is
// non-zero only packages never refreshed or last refreshed at or before it are returned.
func (r *PackageRepository) ListRefreshCandidates(ctx context.Context, staleBefore time.Time) ([]models.Package, error) {
	query := r.db.WithContext(ctx).Where("visibility <> ?", models.VisibilityArchived)
	if !staleBefore.IsZero() {
		query = query.Where("last_refreshed_at IS NULL OR last_refreshed_at <= ?", staleBefore)
	}

	var packages []models.Package
	if err := query.Order("id ASC").Find(&packages).Error; err != nil {
		return nil, wrap("list refresh candidates", err)
	}
	return packages, nil
}

// Updates applies a field-level patch and bumps updated_at.
func (r *PackageRepository) Updates(ctx context.Context, id uint, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&models.Package{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return wrap(fmt.Sprintf("update package %d", id), result.Error)
	}
	if result.RowsAffected == 0 {
		return wrap(fmt.Sprintf("update package %d", id), ErrNotFound)
	}
	return nil
}

// UpdateColumns applies a field-level patch without touching updated_at. Refresh uses it
// so that re-fetching unchanged upstream data only moves last_refreshed_at.
func (r *PackageRepository) UpdateColumns(ctx context.Context, id uint, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&models.Package{}).Where("id = ?", id).UpdateColumns(fields)
	if result.Error != nil {
		return wrap(fmt.Sprintf("update package %d", id), result.Error)
	}
	if result.RowsAffected == 0 {
		return wrap(fmt.Sprintf("update package %d", id), ErrNotFound)
	}
	return nil
}

// ClaimReview marks the package as being AI-reviewed as of now. It returns false without
// error when another review claimed it after staleBefore; older claims are taken over.
func (r *PackageRepository) ClaimReview(ctx context.Context, id uint, now, staleBefore time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Package{}).
		Where("id = ?", id).
		Where("ai_review_status <> ? OR ai_review_started_at IS NULL OR ai_review_started_at <= ?",
			models.AIReviewReviewing, staleBefore).
		UpdateColumns(map[string]any{
			"ai_review_status":     models.AIReviewReviewing,
			"ai_review_error":      "",
			"ai_review_started_at": now,
		})
	if result.Error != nil {
		return false, wrap(fmt.Sprintf("claim review for package %d", id), result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// UpdatesIfStatus applies the patch only while the package still has the given review
// status. It reports whether the row was written.
func (r *PackageRepository) UpdatesIfStatus(ctx context.Context, id uint, status string, fields map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Package{}).
		Where("id = ? AND review_status = ?", id, status).
		Updates(fields)
	if result.Error != nil {
		return false, wrap(fmt.Sprintf("update package %d", id), result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Delete hard-deletes a package.
func (r *PackageRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Package{}, id)
	if result.Error != nil {
		return wrap(fmt.Sprintf("delete package %d", id), result.Error)
	}
	if result.RowsAffected == 0 {
		return wrap(fmt.Sprintf("delete package %d", id), ErrNotFound)
	}
	return nil
}

// Stats counts packages by review status, AI review status and visibility.
func (r *PackageRepository) Stats(ctx context.Context) (*PackageStats, error) {
	stats := &PackageStats{
		ByReviewStatus: map[string]int64{},
		ByAIStatus:     map[string]int64{},
		ByVisibility:   map[string]int64{},
	}

	db := r.db.WithContext(ctx).Model(&models.Package{})
	if err := db.Count(&stats.Total).Error; err != nil {
		return nil, wrap("count packages", err)
	}

	groups := []struct {
		column string
		into   map[string]int64
	}{
		{"review_status", stats.ByReviewStatus},
		{"ai_review_status", stats.ByAIStatus},
		{"visibility", stats.ByVisibility},
	}
	for _, g := range groups {
		var rows []struct {
			Value string
			Count int64
		}
		err := r.db.WithContext(ctx).Model(&models.Package{}).
			Select(g.column + " AS value, COUNT(*) AS count").
			Group(g.column).
			Scan(&rows).Error
		if err != nil {
			return nil, wrap("group packages by "+g.column, err)
		}
		for _, row := range rows {
			g.into[row.Value] = row.Count
		}
	}

	err := r.db.WithContext(ctx).Model(&models.Package{}).
		Where("review_status = ? AND visibility = ?", models.ReviewStatusApproved, models.VisibilityVisible).
		Count(&stats.Listed).Error
	if err != nil {
		return nil, wrap("count listed packages", err)
	}
	if err := r.db.WithContext(ctx).Model(&models.Package{}).Where("featured = ?", true).Count(&stats.Featured).Error; err != nil {
		return nil, wrap("count featured packages", err)
	}

	return stats, nil
}
