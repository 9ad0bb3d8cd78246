// Package policy decides automated review status changes after an AI review.
package policy

import (
	"time"

	"github.com/aimd54/component-directory/internal/models"
)

// Decision is the outcome of applying admin settings to a verdict.
type Decision struct {
	Changed    bool
	From       string
	To         string
	ReviewedBy string
	ReviewedAt time.Time
	Reason     string
}

// Decide returns the review status change, if any, for a package currently in
// currentStatus that received an AI review with aiStatus. Only a passed or failed verdict
// with the matching setting enabled changes anything, and never while a human holds the
// package in in_review or changes_requested.
func Decide(currentStatus, aiStatus string, settings models.AdminSettings, now time.Time) Decision {
	d := Decision{From: currentStatus, To: currentStatus}

	switch currentStatus {
	case models.ReviewStatusInReview, models.ReviewStatusChangesRequested:
		d.Reason = "held for human review"
		return d
	}

	var target string
	switch {
	case aiStatus == models.AIReviewPassed && settings.AutoApproveOnPass:
		target = models.ReviewStatusApproved
	case aiStatus == models.AIReviewFailed && settings.AutoRejectOnFail:
		target = models.ReviewStatusRejected
	default:
		d.Reason = "automation not enabled for verdict " + aiStatus
		return d
	}

	if target == currentStatus {
		d.Reason = "already " + target
		return d
	}

	d.Changed = true
	d.To = target
	d.ReviewedBy = models.AutomationReviewer
	d.ReviewedAt = now
	d.Reason = "auto-" + target + " on " + aiStatus + " verdict"
	return d
}

// Fields returns the column patch for the decision, or nil when nothing changes.
// Leaving approved always clears featured.
func (d Decision) Fields() map[string]any {
	if !d.Changed {
		return nil
	}
	fields := map[string]any{
		"review_status": d.To,
		"reviewed_by":   d.ReviewedBy,
		"reviewed_at":   d.ReviewedAt,
	}
	if d.To != models.ReviewStatusApproved {
		fields["featured"] = false
	}
	return fields
}
