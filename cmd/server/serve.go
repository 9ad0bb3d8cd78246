package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aimd54/component-directory/internal/api/admin"
	"github.com/aimd54/component-directory/internal/api/public"
	"github.com/aimd54/component-directory/internal/server"
	"github.com/aimd54/component-directory/internal/service/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the scheduler",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		sched := scheduler.NewService(&a.cfg.Scheduler, a.refresh, a.log.Named("scheduler"))
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()

		router := server.NewRouter(a.cfg, server.Dependencies{
			Public:   public.NewHandler(a.catalog, a.log.Named("public")),
			Admin:    admin.NewHandler(a.catalog, a.review, a.refresh, a.refreshLogs, a.settings, a.log.Named("admin")),
			Database: a.db,
			Cache:    a.cache,
		}, a.log)
		srv := server.New(a.cfg.Server.Port, router, a.log)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			a.log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		case err := <-errCh:
			if err != nil {
				return err
			}
		}

		return srv.Stop()
	},
}
