// Package models defines domain models for the component package directory.
package models

import (
	"time"

	"gorm.io/datatypes"
)

// Package is an npm package submitted for listing in the directory.
type Package struct {
	ID              uint                        `gorm:"primaryKey" json:"id"`
	Name            string                      `gorm:"uniqueIndex;not null;size:214" json:"name"`
	Description     string                      `gorm:"type:text" json:"description"`
	Version         string                      `gorm:"size:100" json:"version"`
	License         string                      `gorm:"size:100" json:"license"`
	RepositoryURL   string                      `gorm:"column:repository_url;size:500" json:"repositoryUrl"`
	HomepageURL     string                      `gorm:"column:homepage_url;size:500" json:"homepageUrl"`
	NpmURL          string                      `gorm:"column:npm_url;size:500" json:"npmUrl"`
	InstallCommand  string                      `gorm:"size:300" json:"installCommand"`
	Collaborators   datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"collaborators"`
	UnpackedSize    int64                       `gorm:"default:0" json:"unpackedSize"`
	TotalFiles      int                         `gorm:"default:0" json:"totalFiles"`
	WeeklyDownloads int64                       `gorm:"default:0" json:"weeklyDownloads"`
	LastPublish     *time.Time                  `json:"lastPublish"`
	SubmittedAt     time.Time                   `gorm:"not null" json:"submittedAt"`
	SubmitterEmail  string                      `gorm:"size:255" json:"submitterEmail,omitempty"`

	ReviewStatus string     `gorm:"size:50;index;not null;default:pending" json:"reviewStatus"`
	Visibility   string     `gorm:"size:50;index;not null;default:visible" json:"visibility"`
	Featured     bool       `gorm:"not null;default:false" json:"featured"`
	ReviewedBy   string     `gorm:"size:255" json:"reviewedBy,omitempty"`
	ReviewedAt   *time.Time `json:"reviewedAt,omitempty"`
	ReviewNotes  string     `gorm:"type:text" json:"reviewNotes,omitempty"`

	AIReviewStatus   string                               `gorm:"column:ai_review_status;size:50;index;not null;default:not_reviewed" json:"aiReviewStatus"`
	AIReviewSummary  string                               `gorm:"column:ai_review_summary;type:text" json:"aiReviewSummary,omitempty"`
	AIReviewCriteria datatypes.JSONSlice[ReviewCriterion] `gorm:"column:ai_review_criteria;type:jsonb" json:"aiReviewCriteria"`
	AIReviewedAt     *time.Time                           `gorm:"column:ai_reviewed_at" json:"aiReviewedAt,omitempty"`
	AIReviewStarted  *time.Time                           `gorm:"column:ai_review_started_at" json:"aiReviewStartedAt,omitempty"`
	AIReviewError    string                               `gorm:"column:ai_review_error;type:text" json:"aiReviewError,omitempty"`
	AIReviewProvider string                               `gorm:"column:ai_review_provider;size:50" json:"aiReviewProvider,omitempty"`
	AIReviewModel    string                               `gorm:"column:ai_review_model;size:100" json:"aiReviewModel,omitempty"`

	LastRefreshedAt *time.Time `gorm:"index" json:"lastRefreshedAt,omitempty"`
	RefreshError    string     `gorm:"type:text" json:"refreshError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Package model.
func (Package) TableName() string {
	return "packages"
}

// IsListed reports whether the package appears on the public directory.
func (p *Package) IsListed() bool {
	return p.ReviewStatus == ReviewStatusApproved && p.Visibility == VisibilityVisible
}

// ReviewCriterion is one rubric check produced by an AI review.
type ReviewCriterion struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Notes  string `json:"notes"`
}

// Review status constants.
const (
	ReviewStatusPending          = "pending"
	ReviewStatusInReview         = "in_review"
	ReviewStatusApproved         = "approved"
	ReviewStatusChangesRequested = "changes_requested"
	ReviewStatusRejected         = "rejected"
)

// Visibility constants.
const (
	VisibilityVisible  = "visible"
	VisibilityHidden   = "hidden"
	VisibilityArchived = "archived"
)

// AI review status constants.
const (
	AIReviewNotReviewed = "not_reviewed"
	AIReviewReviewing   = "reviewing"
	AIReviewPassed      = "passed"
	AIReviewFailed      = "failed"
	AIReviewPartial     = "partial"
	AIReviewError       = "error"
)

// AutomationReviewer is recorded as reviewedBy when policy, not a human, changes a status.
const AutomationReviewer = "AI Review"

// ValidReviewStatus reports whether s is a known review status.
func ValidReviewStatus(s string) bool {
	switch s {
	case ReviewStatusPending, ReviewStatusInReview, ReviewStatusApproved,
		ReviewStatusChangesRequested, ReviewStatusRejected:
		return true
	}
	return false
}

// ValidVisibility reports whether s is a known visibility.
func ValidVisibility(s string) bool {
	switch s {
	case VisibilityVisible, VisibilityHidden, VisibilityArchived:
		return true
	}
	return false
}
