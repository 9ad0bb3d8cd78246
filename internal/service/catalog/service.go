// Package catalog manages package submission and moderation.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/aimd54/component-directory/internal/metrics"
	"github.com/aimd54/component-directory/internal/models"
	"github.com/aimd54/component-directory/internal/npm"
	"github.com/aimd54/component-directory/internal/repository"
	"github.com/aimd54/component-directory/pkg/logger"
)

// PackageStore is the package persistence the catalog needs.
type PackageStore interface {
	Create(ctx context.Context, pkg *models.Package) error
	GetByID(ctx context.Context, id uint) (*models.Package, error)
	GetByName(ctx context.Context, name string) (*models.Package, error)
	List(ctx context.Context, filter repository.PackageFilter) ([]models.Package, int64, error)
	ListListed(ctx context.Context) ([]models.Package, error)
	Updates(ctx context.Context, id uint, fields map[string]any) error
	Delete(ctx context.Context, id uint) error
	Stats(ctx context.Context) (*repository.PackageStats, error)
}

// NPMClient fetches registry metadata.
type NPMClient interface {
	Fetch(ctx context.Context, name string) (*npm.PackageInfo, error)
}

// SubmitRequest is a public package submission.
type SubmitRequest struct {
	Name           string `json:"name" binding:"required"`
	SubmitterEmail string `json:"submitterEmail"`
	RepositoryURL  string `json:"repositoryUrl"`
}

// Service implements submission and moderation.
type Service struct {
	packages PackageStore
	npm      NPMClient
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a catalog service from concrete dependencies.
func NewService(packages *repository.PackageRepository, npmClient *npm.Client, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(packages, npmClient, log)
}

// NewServiceWithInterfaces creates a catalog service over interfaces (for testing).
func NewServiceWithInterfaces(packages PackageStore, npmClient NPMClient, log *logger.Logger) *Service {
	return &Service{
		packages: packages,
		npm:      npmClient,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Submit creates a pending package prefilled from the npm registry. The submitted
// repository URL is only used when npm does not carry one.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.Package, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || strings.ContainsAny(name, " \t\n") || len(name) > 214 {
		return nil, ErrInvalidName
	}

	if _, err := s.packages.GetByName(ctx, name); err == nil {
		return nil, ErrDuplicatePackage
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	info, err := s.npm.Fetch(ctx, name)
	if err != nil {
		var fetchErr *npm.FetchError
		if errors.As(err, &fetchErr) {
			metrics.RecordNPMFetchFailure(string(fetchErr.Kind))
			if fetchErr.IsNotFound() {
				return nil, fmt.Errorf("%w: %s", ErrUnknownPackage, name)
			}
		}
		return nil, err
	}

	now := s.now()
	pkg := &models.Package{
		Name:            name,
		Description:     info.Description,
		Version:         info.Version,
		License:         info.License,
		RepositoryURL:   info.RepositoryURL,
		HomepageURL:     info.HomepageURL,
		NpmURL:          info.NpmURL,
		InstallCommand:  info.InstallCommand,
		Collaborators:   datatypes.JSONSlice[string](info.Collaborators),
		UnpackedSize:    info.UnpackedSize,
		TotalFiles:      info.TotalFiles,
		WeeklyDownloads: info.WeeklyDownloads,
		LastPublish:     info.LastPublish,
		SubmittedAt:     now,
		SubmitterEmail:  strings.TrimSpace(req.SubmitterEmail),
		ReviewStatus:    models.ReviewStatusPending,
		Visibility:      models.VisibilityVisible,
		AIReviewStatus:  models.AIReviewNotReviewed,
		LastRefreshedAt: &now,
	}
	if pkg.RepositoryURL == "" {
		pkg.RepositoryURL = npm.NormalizeRepositoryURL(req.RepositoryURL)
	}

	if err := s.packages.Create(ctx, pkg); err != nil {
		return nil, err
	}

	s.log.Info().Uint("package_id", pkg.ID).Str("package", pkg.Name).Msg("Package submitted")
	return pkg, nil
}

// List returns a filtered page of packages and the total match count.
func (s *Service) List(ctx context.Context, filter repository.PackageFilter) ([]models.Package, int64, error) {
	return s.packages.List(ctx, filter)
}

// ListListed returns every package on the public directory.
func (s *Service) ListListed(ctx context.Context) ([]models.Package, error) {
	return s.packages.ListListed(ctx)
}

// Get returns a package by ID.
func (s *Service) Get(ctx context.Context, id uint) (*models.Package, error) {
	return s.packages.GetByID(ctx, id)
}

// GetListed returns a package only if it is on the public directory.
func (s *Service) GetListed(ctx context.Context, id uint) (*models.Package, error) {
	pkg, err := s.packages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !pkg.IsListed() {
		return nil, repository.ErrNotFound
	}
	return pkg, nil
}

// SetStatus records a human moderation decision. Leaving approved clears featured.
func (s *Service) SetStatus(ctx context.Context, id uint, status, reviewer, notes string) (*models.Package, error) {
	if !models.ValidReviewStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	fields := map[string]any{
		"review_status": status,
		"reviewed_by":   reviewer,
		"reviewed_at":   s.now(),
		"review_notes":  notes,
	}
	if status != models.ReviewStatusApproved {
		fields["featured"] = false
	}
	if err := s.packages.Updates(ctx, id, fields); err != nil {
		return nil, err
	}

	s.log.Info().Uint("package_id", id).Str("status", status).Str("reviewer", reviewer).Msg("Review status set")
	return s.packages.GetByID(ctx, id)
}

// SetFeatured toggles the featured flag. Only listed packages can be featured.
func (s *Service) SetFeatured(ctx context.Context, id uint, featured bool) (*models.Package, error) {
	pkg, err := s.packages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if featured && !pkg.IsListed() {
		return nil, ErrNotFeaturable
	}
	if err := s.packages.Updates(ctx, id, map[string]any{"featured": featured}); err != nil {
		return nil, err
	}
	return s.packages.GetByID(ctx, id)
}

// SetVisibility changes visibility. Anything but visible clears featured.
func (s *Service) SetVisibility(ctx context.Context, id uint, visibility string) (*models.Package, error) {
	if !models.ValidVisibility(visibility) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVisibility, visibility)
	}

	fields := map[string]any{"visibility": visibility}
	if visibility != models.VisibilityVisible {
		fields["featured"] = false
	}
	if err := s.packages.Updates(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.packages.GetByID(ctx, id)
}

// Delete removes a package.
func (s *Service) Delete(ctx context.Context, id uint) error {
	if err := s.packages.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Uint("package_id", id).Msg("Package deleted")
	return nil
}

// Stats returns package counts and refreshes the review status gauge.
func (s *Service) Stats(ctx context.Context) (*repository.PackageStats, error) {
	stats, err := s.packages.Stats(ctx)
	if err != nil {
		return nil, err
	}
	for _, status := range []string{
		models.ReviewStatusPending,
		models.ReviewStatusInReview,
		models.ReviewStatusApproved,
		models.ReviewStatusChangesRequested,
		models.ReviewStatusRejected,
	} {
		metrics.SetPackagesByReviewStatus(status, stats.ByReviewStatus[status])
	}
	return stats, nil
}
