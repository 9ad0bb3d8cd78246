// Package review runs AI reviews of submitted packages against the authoring rubric.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/aimd54/component-directory/internal/ai"
	"github.com/aimd54/component-directory/internal/metrics"
	"github.com/aimd54/component-directory/internal/models"
	"github.com/aimd54/component-directory/internal/repository"
	"github.com/aimd54/component-directory/internal/service/policy"
	"github.com/aimd54/component-directory/internal/source"
	"github.com/aimd54/component-directory/pkg/logger"
)

var (
	// ErrReviewInProgress is returned when the package already has a review running.
	ErrReviewInProgress = errors.New("an AI review is already running for this package")
	// ErrNoRepositoryURL is returned for packages without a repository to review.
	ErrNoRepositoryURL = errors.New("package has no repository URL")
)

// DefaultClaimTimeout is how long a review claim blocks other reviews of the same package.
const DefaultClaimTimeout = 30 * time.Minute

// PackageStore is the package persistence the review pipeline needs.
type PackageStore interface {
	GetByID(ctx context.Context, id uint) (*models.Package, error)
	ClaimReview(ctx context.Context, id uint, now, staleBefore time.Time) (bool, error)
	Updates(ctx context.Context, id uint, fields map[string]any) error
	UpdatesIfStatus(ctx context.Context, id uint, status string, fields map[string]any) (bool, error)
}

// SettingsStore loads the admin settings snapshot.
type SettingsStore interface {
	Load(ctx context.Context) (models.AdminSettings, error)
}

// SourceFetcher reads a repository snapshot.
type SourceFetcher interface {
	Fetch(ctx context.Context, repoURL string) (*source.Snapshot, error)
}

// Generator produces model output for a prompt.
type Generator interface {
	Generate(ctx context.Context, req ai.Request) (*ai.Result, error)
}

// Notifier is told about finished reviews.
type Notifier interface {
	NotifyReview(pkg *models.Package, decision policy.Decision) error
}

// Options selects the provider for one review. Empty fields use configured defaults.
type Options struct {
	Provider string
	Model    string
	APIKey   string
}

// Outcome is the result of a successful review.
type Outcome struct {
	Package  *models.Package
	Verdict  *Verdict
	Decision policy.Decision
}

// Service runs the review pipeline.
type Service struct {
	packages  PackageStore
	settings  SettingsStore
	fetcher   SourceFetcher
	generator Generator
	notifier  Notifier
	rubric    *Rubric
	log       *logger.Logger
	now       func() time.Time

	claimTimeout time.Duration
}

// NewService creates a review service from concrete dependencies.
func NewService(
	packages *repository.PackageRepository,
	settings *repository.SettingsRepository,
	fetcher *source.Fetcher,
	adapter *ai.Adapter,
	claimTimeout time.Duration,
	notifier Notifier,
	log *logger.Logger,
) *Service {
	s := NewServiceWithInterfaces(packages, settings, fetcher, adapter, notifier, DefaultRubric(), log)
	if claimTimeout > 0 {
		s.claimTimeout = claimTimeout
	}
	return s
}

// NewServiceWithInterfaces creates a review service over interfaces (for testing).
func NewServiceWithInterfaces(
	packages PackageStore,
	settings SettingsStore,
	fetcher SourceFetcher,
	generator Generator,
	notifier Notifier,
	rubric *Rubric,
	log *logger.Logger,
) *Service {
	return &Service{
		packages:  packages,
		settings:  settings,
		fetcher:   fetcher,
		generator: generator,
		notifier:  notifier,
		rubric:    rubric,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },

		claimTimeout: DefaultClaimTimeout,
	}
}

// Review runs one AI review of the package. On success the AI fields and any policy
// transition are written together. On any failure after the claim the package is left
// with aiReviewStatus=error and the message in aiReviewError; its review status is not
// touched.
func (s *Service) Review(ctx context.Context, packageID uint, opts Options) (*Outcome, error) {
	pkg, err := s.packages.GetByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg.RepositoryURL == "" {
		return nil, ErrNoRepositoryURL
	}

	now := s.now()
	claimed, err := s.packages.ClaimReview(ctx, packageID, now, now.Add(-s.claimTimeout))
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrReviewInProgress
	}

	log := s.log.With().Uint("package_id", packageID).Str("package", pkg.Name).Logger()
	log.Info().Str("provider", opts.Provider).Msg("Starting AI review")

	outcome, err := s.run(ctx, pkg, opts)
	if err != nil {
		log.Warn().Err(err).Msg("AI review failed")
		metrics.RecordAIReview(providerLabel(opts.Provider), models.AIReviewError)
		return nil, s.recordFailure(ctx, packageID, err)
	}

	log.Info().
		Str("ai_status", outcome.Verdict.Status).
		Str("review_status", outcome.Package.ReviewStatus).
		Bool("transitioned", outcome.Decision.Changed).
		Msg("AI review completed")

	if s.notifier != nil {
		if err := s.notifier.NotifyReview(outcome.Package, outcome.Decision); err != nil {
			log.Warn().Err(err).Msg("Failed to send review notification")
		}
	}

	return outcome, nil
}

func (s *Service) run(ctx context.Context, pkg *models.Package, opts Options) (*Outcome, error) {
	snapshot, err := s.fetcher.Fetch(ctx, pkg.RepositoryURL)
	if err != nil {
		return nil, err
	}

	result, err := s.generator.Generate(ctx, ai.Request{
		Provider: opts.Provider,
		APIKey:   opts.APIKey,
		Model:    opts.Model,
		Prompt:   BuildPrompt(pkg, snapshot, s.rubric),
	})
	if err != nil {
		return nil, err
	}

	verdict, err := ParseVerdict(result.Text, s.rubric)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	// Decide against the status as it is now; an admin may have moved it while the
	// provider was running.
	current, err := s.packages.GetByID(ctx, pkg.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	decision := policy.Decide(current.ReviewStatus, verdict.Status, settings, now)

	fields := map[string]any{
		"ai_review_status":     verdict.Status,
		"ai_review_summary":    verdict.Summary,
		"ai_review_criteria":   datatypes.JSONSlice[models.ReviewCriterion](verdict.Criteria),
		"ai_reviewed_at":       now,
		"ai_review_started_at": nil,
		"ai_review_error":      "",
		"ai_review_provider":   result.Provider,
		"ai_review_model":      result.Model,
	}

	if decision.Changed {
		patch := decision.Fields()
		for k, v := range fields {
			patch[k] = v
		}
		// The transition only applies while the status is still the one it was decided on.
		applied, err := s.packages.UpdatesIfStatus(ctx, pkg.ID, decision.From, patch)
		if err != nil {
			return nil, err
		}
		if !applied {
			s.log.Info().
				Uint("package_id", pkg.ID).
				Str("decided_from", decision.From).
				Msg("Review status changed during AI review, keeping it")
			decision = policy.Decision{From: decision.From, To: decision.From, Reason: "review status changed during review"}
		}
	}
	if !decision.Changed {
		if err := s.packages.Updates(ctx, pkg.ID, fields); err != nil {
			return nil, err
		}
	}

	metrics.RecordAIReview(result.Provider, verdict.Status)
	if decision.Changed {
		metrics.RecordPolicyTransition(decision.From, decision.To)
	}

	updated, err := s.packages.GetByID(ctx, pkg.ID)
	if err != nil {
		return nil, err
	}

	return &Outcome{Package: updated, Verdict: verdict, Decision: decision}, nil
}

func (s *Service) recordFailure(ctx context.Context, packageID uint, cause error) error {
	// The failure must be recorded even when ctx was cancelled, or the claim would stick.
	err := s.packages.Updates(context.WithoutCancel(ctx), packageID, map[string]any{
		"ai_review_status":     models.AIReviewError,
		"ai_review_error":      cause.Error(),
		"ai_reviewed_at":       s.now(),
		"ai_review_started_at": nil,
	})
	if err != nil {
		s.log.Error().Err(err).Uint("package_id", packageID).Msg("Failed to record AI review failure")
		return errors.Join(cause, fmt.Errorf("failed to record review failure: %w", err))
	}
	return cause
}

func providerLabel(name string) string {
	if name == "" {
		return "default"
	}
	return name
}
