// Package refresh re-fetches npm metadata for stored packages and records each run.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/aimd54/component-directory/internal/config"
	"github.com/aimd54/component-directory/internal/metrics"
	"github.com/aimd54/component-directory/internal/models"
	"github.com/aimd54/component-directory/internal/npm"
	"github.com/aimd54/component-directory/internal/repository"
	"github.com/aimd54/component-directory/pkg/logger"
)

const lockKey = "refresh:run-lock"

// ErrRunInProgress is returned when another refresh run holds the lock or is still
// recorded as running.
var ErrRunInProgress = errors.New("a refresh run is already in progress")

// PackageStore is the package persistence refresh needs.
type PackageStore interface {
	GetByID(ctx context.Context, id uint) (*models.Package, error)
	ListRefreshCandidates(ctx context.Context, staleBefore time.Time) ([]models.Package, error)
	UpdateColumns(ctx context.Context, id uint, fields map[string]any) error
}

// LogStore persists run records.
type LogStore interface {
	Create(ctx context.Context, log *models.RefreshLog) error
	Save(ctx context.Context, log *models.RefreshLog) error
	HasRunningSince(ctx context.Context, since time.Time) (bool, error)
	FailOrphaned(ctx context.Context, cutoff, now time.Time) (int64, error)
}

// SettingsStore loads the admin settings snapshot.
type SettingsStore interface {
	Load(ctx context.Context) (models.AdminSettings, error)
}

// NPMClient fetches registry metadata.
type NPMClient interface {
	Fetch(ctx context.Context, name string) (*npm.PackageInfo, error)
}

// Locker provides a cross-process mutual exclusion lock.
type Locker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
}

// Notifier is told about finished runs.
type Notifier interface {
	NotifyRefreshRun(log *models.RefreshLog) error
}

// RunOptions selects the trigger semantics of a run.
type RunOptions struct {
	IsManual        bool
	BypassStaleness bool
}

// Service orchestrates refresh runs.
type Service struct {
	packages    PackageStore
	logs        LogStore
	settings    SettingsStore
	npm         NPMClient
	locker      Locker
	notifier    Notifier
	concurrency int
	lockTTL     time.Duration
	orphanAfter time.Duration
	log         *logger.Logger
	now         func() time.Time
}

// NewService creates a refresh service from concrete dependencies.
func NewService(
	cfg *config.RefreshConfig,
	packages *repository.PackageRepository,
	logs *repository.RefreshLogRepository,
	settings *repository.SettingsRepository,
	npmClient *npm.Client,
	locker Locker,
	notifier Notifier,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(cfg, packages, logs, settings, npmClient, locker, notifier, log)
}

// NewServiceWithInterfaces creates a refresh service over interfaces (for testing).
func NewServiceWithInterfaces(
	cfg *config.RefreshConfig,
	packages PackageStore,
	logs LogStore,
	settings SettingsStore,
	npmClient NPMClient,
	locker Locker,
	notifier Notifier,
	log *logger.Logger,
) *Service {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * time.Hour
	}
	orphanAfter := cfg.OrphanAfter
	if orphanAfter <= 0 {
		orphanAfter = 6 * time.Hour
	}
	return &Service{
		packages:    packages,
		logs:        logs,
		settings:    settings,
		npm:         npmClient,
		locker:      locker,
		notifier:    notifier,
		concurrency: concurrency,
		lockTTL:     lockTTL,
		orphanAfter: orphanAfter,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RunScheduled refreshes stale packages if automatic refresh is enabled.
func (s *Service) RunScheduled(ctx context.Context) (*models.RefreshLog, error) {
	return s.Run(ctx, RunOptions{})
}

// RunManual refreshes every non-archived package.
func (s *Service) RunManual(ctx context.Context) (*models.RefreshLog, error) {
	return s.Run(ctx, RunOptions{IsManual: true, BypassStaleness: true})
}

// Run executes one refresh run and returns its finalized log. A scheduled run that is
// disabled or finds nothing stale returns (nil, nil) and records nothing. Package
// failures are isolated: they are recorded and the run continues.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*models.RefreshLog, error) {
	// Runs are not cancellable once started.
	ctx = context.WithoutCancel(ctx)
	trigger := triggerLabel(opts.IsManual)

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !opts.IsManual && !settings.AutoRefreshEnabled {
		s.log.Info().Msg("Automatic refresh disabled, skipping scheduled run")
		return nil, nil
	}

	runID := uuid.NewString()
	acquired, err := s.locker.AcquireLock(ctx, lockKey, runID, s.lockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrRunInProgress
	}
	defer func() {
		if _, err := s.locker.ReleaseLock(ctx, lockKey, runID); err != nil {
			s.log.Warn().Err(err).Str("run_id", runID).Msg("Failed to release refresh lock")
		}
	}()

	start := s.now()
	running, err := s.logs.HasRunningSince(ctx, start.Add(-s.orphanAfter))
	if err != nil {
		return nil, err
	}
	if running {
		return nil, ErrRunInProgress
	}

	var staleBefore time.Time
	if !opts.BypassStaleness {
		staleBefore = start.Add(-settings.RefreshInterval())
	}
	candidates, err := s.packages.ListRefreshCandidates(ctx, staleBefore)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 && !opts.IsManual {
		s.log.Info().Msg("No stale packages, skipping scheduled run")
		return nil, nil
	}

	runLog := &models.RefreshLog{
		RunID:     runID,
		StartedAt: start,
		Status:    models.RefreshStatusRunning,
		IsManual:  opts.IsManual,
		Errors:    datatypes.JSONSlice[models.RefreshError]{},
	}
	if err := s.logs.Create(ctx, runLog); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("run_id", runID).
		Str("trigger", trigger).
		Int("packages", len(candidates)).
		Int("concurrency", s.concurrency).
		Msg("Starting refresh run")

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i := range candidates {
		pkg := candidates[i]
		g.Go(func() error {
			refreshErr := s.refreshOne(ctx, &pkg)

			mu.Lock()
			defer mu.Unlock()

			runLog.PackagesProcessed++
			if refreshErr != nil {
				runLog.PackagesFailed++
				runLog.Errors = append(runLog.Errors, models.RefreshError{
					PackageID:   pkg.ID,
					PackageName: pkg.Name,
					Error:       refreshErr.Error(),
				})
			} else {
				runLog.PackagesSucceeded++
			}
			if err := s.logs.Save(ctx, runLog); err != nil {
				s.log.Warn().Err(err).Str("run_id", runID).Msg("Failed to persist refresh progress")
			}
			return nil
		})
	}
	_ = g.Wait()

	completed := s.now()
	runLog.CompletedAt = &completed
	runLog.Status = models.RefreshStatusCompleted
	if runLog.PackagesProcessed > 0 && runLog.PackagesFailed == runLog.PackagesProcessed {
		runLog.Status = models.RefreshStatusFailed
	}
	if err := s.logs.Save(ctx, runLog); err != nil {
		return nil, err
	}

	duration := completed.Sub(start)
	metrics.RecordRefreshRun(trigger, runLog.Status)
	metrics.ObserveRefreshRunDuration(trigger, duration.Seconds())

	s.log.Info().
		Str("run_id", runID).
		Str("status", runLog.Status).
		Int("processed", runLog.PackagesProcessed).
		Int("succeeded", runLog.PackagesSucceeded).
		Int("failed", runLog.PackagesFailed).
		Dur("duration", duration).
		Msg("Refresh run finished")

	if s.notifier != nil && runLog.PackagesFailed > 0 {
		if err := s.notifier.NotifyRefreshRun(runLog); err != nil {
			s.log.Warn().Err(err).Msg("Failed to send refresh notification")
		}
	}

	return runLog, nil
}

// RefreshPackage refreshes a single package outside of any run.
func (s *Service) RefreshPackage(ctx context.Context, id uint) (*models.Package, error) {
	ctx = context.WithoutCancel(ctx)

	pkg, err := s.packages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if refreshErr := s.refreshOne(ctx, pkg); refreshErr != nil {
		return nil, refreshErr
	}
	return s.packages.GetByID(ctx, id)
}

// CleanupOrphaned marks runs that have been running longer than the orphan window as
// failed.
func (s *Service) CleanupOrphaned(ctx context.Context) (int64, error) {
	now := s.now()
	n, err := s.logs.FailOrphaned(ctx, now.Add(-s.orphanAfter), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Warn().Int64("runs", n).Msg("Marked orphaned refresh runs as failed")
	}
	return n, nil
}

// refreshOne fetches and stores fresh npm data for pkg. On failure the error is stored
// on the package and returned.
func (s *Service) refreshOne(ctx context.Context, pkg *models.Package) error {
	info, err := s.npm.Fetch(ctx, pkg.Name)
	if err != nil {
		var fetchErr *npm.FetchError
		if errors.As(err, &fetchErr) {
			metrics.RecordNPMFetchFailure(string(fetchErr.Kind))
		}
		metrics.RecordRefreshPackage("failed")

		if updateErr := s.packages.UpdateColumns(ctx, pkg.ID, map[string]any{"refresh_error": err.Error()}); updateErr != nil {
			s.log.Error().Err(updateErr).Uint("package_id", pkg.ID).Msg("Failed to record refresh error")
		}
		s.log.Warn().Err(err).Uint("package_id", pkg.ID).Str("package", pkg.Name).Msg("Package refresh failed")
		return err
	}

	if err := s.packages.UpdateColumns(ctx, pkg.ID, patchFields(info, s.now())); err != nil {
		metrics.RecordRefreshPackage("failed")
		return err
	}

	metrics.RecordRefreshPackage("succeeded")
	s.log.Debug().Uint("package_id", pkg.ID).Str("package", pkg.Name).Str("version", info.Version).Msg("Package refreshed")
	return nil
}

// patchFields maps registry data onto package columns. The name is the lookup key and is
// never rewritten.
func patchFields(info *npm.PackageInfo, now time.Time) map[string]any {
	collaborators := info.Collaborators
	if collaborators == nil {
		collaborators = []string{}
	}
	return map[string]any{
		"description":       info.Description,
		"version":           info.Version,
		"license":           info.License,
		"repository_url":    info.RepositoryURL,
		"homepage_url":      info.HomepageURL,
		"npm_url":           info.NpmURL,
		"install_command":   info.InstallCommand,
		"collaborators":     datatypes.JSONSlice[string](collaborators),
		"unpacked_size":     info.UnpackedSize,
		"total_files":       info.TotalFiles,
		"weekly_downloads":  info.WeeklyDownloads,
		"last_publish":      info.LastPublish,
		"last_refreshed_at": now,
		"refresh_error":     "",
	}
}

func triggerLabel(manual bool) string {
	if manual {
		return "manual"
	}
	return "scheduled"
}
