package main

import (
	"context"
	"fmt"

	"github.com/aimd54/component-directory/internal/ai"
	"github.com/aimd54/component-directory/internal/cache"
	"github.com/aimd54/component-directory/internal/config"
	"github.com/aimd54/component-directory/internal/notify"
	"github.com/aimd54/component-directory/internal/npm"
	"github.com/aimd54/component-directory/internal/repository"
	"github.com/aimd54/component-directory/internal/service/catalog"
	"github.com/aimd54/component-directory/internal/service/refresh"
	"github.com/aimd54/component-directory/internal/service/review"
	"github.com/aimd54/component-directory/internal/service/settings"
	"github.com/aimd54/component-directory/internal/source"
	"github.com/aimd54/component-directory/pkg/logger"
)

// app holds the wired services shared by every command.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *repository.DB
	cache *cache.Cache

	packages    *repository.PackageRepository
	refreshLogs *repository.RefreshLogRepository
	settingsRep *repository.SettingsRepository

	catalog  *catalog.Service
	review   *review.Service
	refresh  *refresh.Service
	settings *settings.Service
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	return cfg, logger.Get(), nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if cfg.Database.Postgres.MigrateOnStart {
		if err := repository.Migrate(cfg.Database.Postgres.URL(), log); err != nil {
			return nil, err
		}
	}

	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		return nil, err
	}

	redisCache, err := cache.NewCache(&cfg.Database.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	fetcher, err := source.NewFetcher(ctx, &cfg.RepositoryHosts, log.Named("source"))
	if err != nil {
		_ = db.Close()
		_ = redisCache.Close()
		return nil, fmt.Errorf("failed to create repository fetcher: %w", err)
	}

	a := &app{
		cfg:         cfg,
		log:         log,
		db:          db,
		cache:       redisCache,
		packages:    repository.NewPackageRepository(db),
		refreshLogs: repository.NewRefreshLogRepository(db),
		settingsRep: repository.NewSettingsRepository(db),
	}

	npmClient := npm.NewClient(&cfg.NPM)
	notifier := notify.NewClient(&cfg.Notifications.Mattermost, log.Named("notify"))
	adapter := ai.NewAdapter(&cfg.AI, log.Named("ai"))

	a.catalog = catalog.NewService(a.packages, npmClient, log.Named("catalog"))
	a.review = review.NewService(a.packages, a.settingsRep, fetcher, adapter, cfg.AI.ClaimTimeout, notifier, log.Named("review"))
	a.refresh = refresh.NewService(&cfg.Refresh, a.packages, a.refreshLogs, a.settingsRep, npmClient, redisCache, notifier, log.Named("refresh"))
	a.settings = settings.NewService(a.settingsRep, log.Named("settings"))

	return a, nil
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close Redis connection")
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close database connection")
	}
}
