package refresh

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/component-directory/internal/config"
	"github.com/aimd54/component-directory/internal/models"
	"github.com/aimd54/component-directory/internal/npm"
	"github.com/aimd54/component-directory/internal/repository"
	"github.com/aimd54/component-directory/pkg/logger"
	"github.com/aimd54/component-directory/test/mocks"
)

var publishedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type refreshFixture struct {
	service  *Service
	packages *repository.PackageRepository
	logs     *repository.RefreshLogRepository
	settings *repository.SettingsRepository
	npm      *mocks.MockNPMClient
	cache    *mocks.MockCache
	notifier *mocks.MockNotifier
}

func newRefreshFixture(t *testing.T, concurrency int) *refreshFixture {
	t.Helper()

	db := mocks.NewTestDB(t)
	f := &refreshFixture{
		packages: repository.NewPackageRepository(db),
		logs:     repository.NewRefreshLogRepository(db),
		settings: repository.NewSettingsRepository(db),
		npm: &mocks.MockNPMClient{
			FetchFunc: func(_ context.Context, name string) (*npm.PackageInfo, error) {
				return &npm.PackageInfo{
					Name:            name,
					Description:     "fresh description",
					Version:         "2.0.0",
					License:         "MIT",
					Collaborators:   []string{"alice"},
					WeeklyDownloads: 1234,
					LastPublish:     &publishedAt,
				}, nil
			},
		},
		cache:    mocks.NewMockCache(),
		notifier: &mocks.MockNotifier{},
	}
	cfg := &config.RefreshConfig{Concurrency: concurrency, LockTTL: time.Hour, OrphanAfter: time.Hour}
	f.service = NewServiceWithInterfaces(cfg, f.packages, f.logs, f.settings, f.npm, f.cache, f.notifier, logger.Nop())
	return f
}

func (f *refreshFixture) createPackage(t *testing.T, name string, mutate func(*models.Package)) *models.Package {
	t.Helper()

	pkg := &models.Package{
		Name:           name,
		Version:        "1.0.0",
		SubmittedAt:    time.Now().UTC(),
		ReviewStatus:   models.ReviewStatusApproved,
		Visibility:     models.VisibilityVisible,
		AIReviewStatus: models.AIReviewNotReviewed,
	}
	if mutate != nil {
		mutate(pkg)
	}
	require.NoError(t, f.packages.Create(context.Background(), pkg))
	return pkg
}

func (f *refreshFixture) failFor(names ...string) {
	failing := make(map[string]bool, len(names))
	for _, n := range names {
		failing[n] = true
	}
	next := f.npm.FetchFunc
	f.npm.FetchFunc = func(ctx context.Context, name string) (*npm.PackageInfo, error) {
		if failing[name] {
			return nil, &npm.FetchError{Kind: npm.KindNotFound, Package: name, StatusCode: 404}
		}
		return next(ctx, name)
	}
}

func TestRun_PartialFailureCompletes(t *testing.T) {
	f := newRefreshFixture(t, 2)
	ctx := context.Background()

	ok1 := f.createPackage(t, "ok-one", nil)
	broken := f.createPackage(t, "broken", nil)
	ok2 := f.createPackage(t, "ok-two", nil)
	f.failFor("broken")

	runLog, err := f.service.RunManual(ctx)
	require.NoError(t, err)
	require.NotNil(t, runLog)

	assert.Equal(t, models.RefreshStatusCompleted, runLog.Status)
	assert.True(t, runLog.IsManual)
	assert.NotNil(t, runLog.CompletedAt)
	assert.Equal(t, 3, runLog.PackagesProcessed)
	assert.Equal(t, 2, runLog.PackagesSucceeded)
	assert.Equal(t, 1, runLog.PackagesFailed)
	require.Len(t, runLog.Errors, 1)
	assert.Equal(t, broken.ID, runLog.Errors[0].PackageID)
	assert.Equal(t, `npm package "broken" not found`, runLog.Errors[0].Error)

	for _, id := range []uint{ok1.ID, ok2.ID} {
		pkg, err := f.packages.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "2.0.0", pkg.Version)
		assert.Equal(t, int64(1234), pkg.WeeklyDownloads)
		assert.NotNil(t, pkg.LastRefreshedAt)
		assert.Empty(t, pkg.RefreshError)
	}

	failed, err := f.packages.GetByID(ctx, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", failed.Version)
	assert.Nil(t, failed.LastRefreshedAt)
	assert.Contains(t, failed.RefreshError, "not found")

	stored, err := f.logs.GetByID(ctx, runLog.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RefreshStatusCompleted, stored.Status)
	assert.Equal(t, 3, stored.PackagesProcessed)

	require.Len(t, f.notifier.Runs, 1)
	assert.Equal(t, 1, f.notifier.Runs[0].PackagesFailed)
}

func TestRun_AllFailuresMarkRunFailed(t *testing.T) {
	f := newRefreshFixture(t, 3)

	names := []string{"a", "b", "c", "d"}
	for _, n := range names {
		f.createPackage(t, n, nil)
	}
	f.failFor(names...)

	runLog, err := f.service.RunManual(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RefreshStatusFailed, runLog.Status)
	assert.Equal(t, 4, runLog.PackagesProcessed)
	assert.Equal(t, 0, runLog.PackagesSucceeded)
	assert.Equal(t, 4, runLog.PackagesFailed)
	assert.Len(t, runLog.Errors, 4)
}

func TestRun_CountsAddUpUnderConcurrency(t *testing.T) {
	f := newRefreshFixture(t, 4)

	var failing []string
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("pkg-%02d", i)
		f.createPackage(t, name, nil)
		if i%3 == 0 {
			failing = append(failing, name)
		}
	}
	f.failFor(failing...)

	runLog, err := f.service.RunManual(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, runLog.PackagesProcessed)
	assert.Equal(t, 8, runLog.PackagesSucceeded)
	assert.Equal(t, 4, runLog.PackagesFailed)
	assert.Equal(t, runLog.PackagesProcessed, runLog.PackagesSucceeded+runLog.PackagesFailed)
	assert.Equal(t, models.RefreshStatusCompleted, runLog.Status)
	assert.Len(t, f.npm.Calls(), 12)
}

func TestRun_ScheduledDisabledCreatesNoLog(t *testing.T) {
	f := newRefreshFixture(t, 1)
	ctx := context.Background()

	f.createPackage(t, "pkg", nil)
	require.NoError(t, f.settings.Set(ctx, map[string]any{models.SettingAutoRefreshEnabled: false}, "admin"))

	runLog, err := f.service.RunScheduled(ctx)
	require.NoError(t, err)
	assert.Nil(t, runLog)
	assert.Empty(t, f.npm.Calls())

	_, total, err := f.logs.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	// Manual runs ignore the toggle.
	runLog, err = f.service.RunManual(ctx)
	require.NoError(t, err)
	require.NotNil(t, runLog)
	assert.Equal(t, 1, runLog.PackagesProcessed)
}

func TestRun_ScheduledOnlyRefreshesStalePackages(t *testing.T) {
	f := newRefreshFixture(t, 1)
	ctx := context.Background()

	recent := time.Now().UTC().Add(-time.Hour)
	old := time.Now().UTC().Add(-30 * 24 * time.Hour)
	f.createPackage(t, "recent", func(p *models.Package) { p.LastRefreshedAt = &recent })
	f.createPackage(t, "old", func(p *models.Package) { p.LastRefreshedAt = &old })
	f.createPackage(t, "never", nil)
	f.createPackage(t, "archived", func(p *models.Package) { p.Visibility = models.VisibilityArchived })

	runLog, err := f.service.RunScheduled(ctx)
	require.NoError(t, err)
	require.NotNil(t, runLog)
	assert.False(t, runLog.IsManual)
	assert.Equal(t, 2, runLog.PackagesProcessed)
	assert.ElementsMatch(t, []string{"old", "never"}, f.npm.Calls())

	// Everything is fresh now, so the next scheduled run has nothing to do.
	runLog, err = f.service.RunScheduled(ctx)
	require.NoError(t, err)
	assert.Nil(t, runLog)
}

func TestRun_LongestIntervalKeepsRecentPackagesFresh(t *testing.T) {
	f := newRefreshFixture(t, 1)
	ctx := context.Background()

	recent := time.Now().UTC().Add(-time.Hour)
	f.createPackage(t, "recent", func(p *models.Package) { p.LastRefreshedAt = &recent })
	require.NoError(t, f.settings.Set(ctx, map[string]any{
		models.SettingRefreshIntervalDays: models.MaxRefreshIntervalDays,
	}, "admin"))

	runLog, err := f.service.RunScheduled(ctx)
	require.NoError(t, err)
	assert.Nil(t, runLog)
	assert.Empty(t, f.npm.Calls())
}

func TestRun_ManualWithNoPackagesCompletes(t *testing.T) {
	f := newRefreshFixture(t, 1)

	runLog, err := f.service.RunManual(context.Background())
	require.NoError(t, err)
	require.NotNil(t, runLog)
	assert.Equal(t, models.RefreshStatusCompleted, runLog.Status)
	assert.Equal(t, 0, runLog.PackagesProcessed)
	assert.Empty(t, f.notifier.Runs)
}

func TestRun_RejectsConcurrentRun(t *testing.T) {
	t.Run("lock held", func(t *testing.T) {
		f := newRefreshFixture(t, 1)
		ctx := context.Background()
		f.createPackage(t, "pkg", nil)

		acquired, err := f.cache.AcquireLock(ctx, lockKey, "other-run", time.Hour)
		require.NoError(t, err)
		require.True(t, acquired)

		_, err = f.service.RunManual(ctx)
		assert.ErrorIs(t, err, ErrRunInProgress)
		assert.Empty(t, f.npm.Calls())

		value, _ := f.cache.Get(ctx, lockKey)
		assert.Equal(t, "other-run", value, "foreign lock must not be released")
	})

	t.Run("running log recorded", func(t *testing.T) {
		f := newRefreshFixture(t, 1)
		ctx := context.Background()
		f.createPackage(t, "pkg", nil)

		require.NoError(t, f.logs.Create(ctx, &models.RefreshLog{
			RunID:     "in-flight",
			StartedAt: time.Now().UTC().Add(-time.Minute),
			Status:    models.RefreshStatusRunning,
		}))

		_, err := f.service.RunManual(ctx)
		assert.ErrorIs(t, err, ErrRunInProgress)

		value, _ := f.cache.Get(ctx, lockKey)
		assert.Empty(t, value, "lock is released after rejection")
	})

	t.Run("orphaned log does not block", func(t *testing.T) {
		f := newRefreshFixture(t, 1)
		ctx := context.Background()
		f.createPackage(t, "pkg", nil)

		require.NoError(t, f.logs.Create(ctx, &models.RefreshLog{
			RunID:     "orphan",
			StartedAt: time.Now().UTC().Add(-3 * time.Hour),
			Status:    models.RefreshStatusRunning,
		}))

		runLog, err := f.service.RunManual(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.RefreshStatusCompleted, runLog.Status)
	})
}

func TestRun_RefreshIsIdempotent(t *testing.T) {
	f := newRefreshFixture(t, 1)
	ctx := context.Background()
	pkg := f.createPackage(t, "pkg", nil)

	_, err := f.service.RunManual(ctx)
	require.NoError(t, err)
	first, err := f.packages.GetByID(ctx, pkg.ID)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = f.service.RunManual(ctx)
	require.NoError(t, err)
	second, err := f.packages.GetByID(ctx, pkg.ID)
	require.NoError(t, err)

	require.NotNil(t, first.LastRefreshedAt)
	require.NotNil(t, second.LastRefreshedAt)
	assert.True(t, second.LastRefreshedAt.After(*first.LastRefreshedAt))

	assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt))
	assert.Equal(t, first.Description, second.Description)
	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, first.License, second.License)
	assert.Equal(t, first.WeeklyDownloads, second.WeeklyDownloads)
	assert.Equal(t, []string(first.Collaborators), []string(second.Collaborators))
	require.NotNil(t, second.LastPublish)
	assert.True(t, first.LastPublish.Equal(*second.LastPublish))
	assert.Equal(t, first.ReviewStatus, second.ReviewStatus)
}

func TestRefreshPackage(t *testing.T) {
	f := newRefreshFixture(t, 1)
	ctx := context.Background()
	pkg := f.createPackage(t, "single", nil)

	updated, err := f.service.RefreshPackage(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", updated.Version)
	assert.NotNil(t, updated.LastRefreshedAt)

	f.failFor("single")
	_, err = f.service.RefreshPackage(ctx, pkg.ID)
	var fetchErr *npm.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.True(t, fetchErr.IsNotFound())

	_, err = f.service.RefreshPackage(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCleanupOrphaned(t *testing.T) {
	f := newRefreshFixture(t, 1)
	ctx := context.Background()

	require.NoError(t, f.logs.Create(ctx, &models.RefreshLog{
		RunID:     "stuck",
		StartedAt: time.Now().UTC().Add(-2 * time.Hour),
		Status:    models.RefreshStatusRunning,
	}))

	n, err := f.service.CleanupOrphaned(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.service.CleanupOrphaned(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
