// Package scheduler runs the daily stale-package refresh and the weekly cleanup of
// orphaned refresh runs.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aimd54/component-directory/internal/config"
	prommetrics "github.com/aimd54/component-directory/internal/metrics"
	"github.com/aimd54/component-directory/internal/models"
	"github.com/aimd54/component-directory/pkg/logger"
)

// Job names used in logs and metrics.
const (
	JobRefresh = "refresh"
	JobCleanup = "cleanup"
)

// Refresher is the part of the refresh service the scheduler drives.
type Refresher interface {
	RunScheduled(ctx context.Context) (*models.RefreshLog, error)
	CleanupOrphaned(ctx context.Context) (int64, error)
}

// Service handles cron scheduling of background jobs.
type Service struct {
	config    *config.SchedulerConfig
	refresher Refresher
	log       *logger.Logger
	cron      *cron.Cron
}

// NewService creates a new scheduler service.
func NewService(cfg *config.SchedulerConfig, refresher Refresher, log *logger.Logger) *Service {
	return &Service{
		config:    cfg,
		refresher: refresher,
		log:       log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	refreshExpr, err := s.buildCronExpression()
	if err != nil {
		return fmt.Errorf("failed to build cron expression: %w", err)
	}

	_, err = s.cron.AddFunc(refreshExpr, func() {
		s.runRefresh(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to register refresh job: %w", err)
	}

	if s.config.CleanupSchedule != "" {
		_, err = s.cron.AddFunc(s.config.CleanupSchedule, func() {
			s.runCleanup(context.Background())
		})
		if err != nil {
			return fmt.Errorf("failed to register cleanup job: %w", err)
		}
		s.log.Info().
			Str("schedule", s.config.CleanupSchedule).
			Msg("Orphaned run cleanup job registered")
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("schedule", refreshExpr).
		Str("timezone", s.config.Timezone).
		Str("time", s.config.RefreshTime).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler, waiting for running jobs.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// buildCronExpression turns the "HH:MM" refresh time into a daily cron expression.
func (s *Service) buildCronExpression() (string, error) {
	parts := strings.Split(s.config.RefreshTime, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", s.config.RefreshTime)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	// minute hour day month weekday
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// runRefresh executes the daily refresh job.
func (s *Service) runRefresh(ctx context.Context) {
	start := time.Now()

	defer func() {
		prommetrics.ObserveSchedulerJobDuration(JobRefresh, time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun(JobRefresh)
	}()

	s.log.Info().Msg("Running scheduled refresh job")

	runLog, err := s.refresher.RunScheduled(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Scheduled refresh failed")
		prommetrics.RecordSchedulerJobRun(JobRefresh, "error")
		return
	}

	if runLog == nil {
		s.log.Info().Msg("Scheduled refresh skipped")
		prommetrics.RecordSchedulerJobRun(JobRefresh, "skipped")
		return
	}

	prommetrics.RecordSchedulerJobRun(JobRefresh, "success")
	s.log.Info().
		Str("run_id", runLog.RunID).
		Str("status", runLog.Status).
		Int("processed", runLog.PackagesProcessed).
		Int("failed", runLog.PackagesFailed).
		Dur("total_duration", time.Since(start)).
		Msg("Scheduled refresh finished")
}

// runCleanup executes the weekly orphaned run cleanup.
func (s *Service) runCleanup(ctx context.Context) {
	start := time.Now()

	defer func() {
		prommetrics.ObserveSchedulerJobDuration(JobCleanup, time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun(JobCleanup)
	}()

	s.log.Info().Msg("Running orphaned run cleanup job")

	n, err := s.refresher.CleanupOrphaned(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to clean up orphaned refresh runs")
		prommetrics.RecordSchedulerJobRun(JobCleanup, "error")
		return
	}

	prommetrics.RecordSchedulerJobRun(JobCleanup, "success")
	s.log.Info().Int64("runs", n).Msg("Orphaned run cleanup finished")
}
