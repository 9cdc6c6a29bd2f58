// Package main is the entry point for the alerting daemon.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/speculare-cloud/alertsd/internal/application/bootstrap"
	"github.com/speculare-cloud/alertsd/internal/infrastructure/cdc"
	"github.com/speculare-cloud/alertsd/internal/infrastructure/config"
	"github.com/speculare-cloud/alertsd/internal/infrastructure/logger"
)

var (
	configPath string
	verbosity  int
)

func main() {
	root := &cobra.Command{
		Use:   "alertsd",
		Short: "Stateful alerting daemon for the metrics store",
		RunE:  runDaemon,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the TOML config file")
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")

	root.AddCommand(&cobra.Command{
		Use:   "dryrun",
		Short: "verify SMTP and, in Files mode, compile and run every alert once",
		RunE:  runDryRun,
	})

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("alertsd: fatal error")
		os.Exit(1)
	}
}

func loadConfigAndLogger() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	switch {
	case verbosity >= 2:
		level = zerolog.TraceLevel.String()
	case verbosity == 1:
		level = zerolog.DebugLevel.String()
	}

	logger.Setup(logger.Config{
		Level:  level,
		Format: cfg.Logging.Format,
		Caller: !cfg.App.IsProduction(),
	})

	return cfg, nil
}

// runDaemon primes the scheduler from the authoritative alert source, starts
// the ambient health/metrics server, and blocks in the CDC reconcile loop
// until the process is signalled to stop or the reconnect ceiling (spec §7)
// is exhausted.
func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigAndLogger()
	if err != nil {
		log.Fatal().Err(err).Msg("alertsd: failed to load configuration")
	}

	log.Info().Str("app", cfg.App.Name).Str("env", cfg.App.Env).Str("alerts_source", string(cfg.Alerts.Source)).Msg("alertsd: starting")

	app, err := bootstrap.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("alertsd: bootstrap failed")
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error().Err(err).Msg("alertsd: error closing database connection")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Prime(ctx); err != nil {
		log.Fatal().Err(err).Msg("alertsd: priming scheduler failed")
	}

	srv := app.Server()
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Error().Err(err).Msg("alertsd: health/metrics server stopped")
		}
	}()

	reconcileErr := make(chan error, 1)
	go func() {
		reconcileErr <- app.Reconcile(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("alertsd: signal received, shutting down")
		cancel()
		<-reconcileErr

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil

	case err := <-reconcileErr:
		cancel()
		if err == nil || err == context.Canceled {
			return nil
		}
		log.Error().Err(err).Msg("alertsd: reconcile loop exited")
		if err == cdc.ErrBootLoop {
			os.Exit(1)
		}
		return err
	}
}

func runDryRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigAndLogger()
	if err != nil {
		log.Fatal().Err(err).Msg("alertsd: failed to load configuration")
	}

	if err := bootstrap.DryRun(cfg); err != nil {
		log.Error().Err(err).Msg("dryrun: failed")
		os.Exit(1)
	}

	log.Info().Msg("dryrun: ok")
	return nil
}
