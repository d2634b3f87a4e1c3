package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aula-hub/gradebook/internal/infrastructure/scheduler"
	"github.com/aula-hub/gradebook/internal/infrastructure/scheduler/jobs"
	api "github.com/aula-hub/gradebook/internal/interface/http"
	"github.com/aula-hub/gradebook/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard API",
	Long: `Run the HTTP API. Sessions live in the configured store (memory, redis or
postgres) and expire after session.ttl; a background job removes expired
sessions from stores that need it.

Examples:
  # Local run with defaults
  gradebook serve

  # Redis-backed sessions
  GRADEBOOK_SESSION_STORE=redis GRADEBOOK_REDIS_ADDR=redis:6379 gradebook serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg).With(logger.String("app", cfg.App.Name), logger.String("env", string(cfg.App.Env)))
	defer func() { _ = log.Sync() }()

	log.Info("starting gradebook",
		logger.String("version", version),
		logger.String("session_store", cfg.Session.Store),
		logger.String("feedback_provider", cfg.Feedback.Provider),
	)

	if cfg.IsProduction() && cfg.App.Debug {
		log.Warn("debug mode is enabled in production; error details reach API clients")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// ══════════════════════════════════════════════════════════════════════════
	// COMPONENTS
	// ══════════════════════════════════════════════════════════════════════════

	a, err := newApp(ctx, cfg, log, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	health := api.NewHealthChecker(version)
	health.AddCheck("sessions", api.PingCheck(a.store))

	// ══════════════════════════════════════════════════════════════════════════
	// SCHEDULER
	// ══════════════════════════════════════════════════════════════════════════

	sched := scheduler.New(scheduler.Config{Logger: log})
	sched.OnJobComplete(func(r scheduler.JobResult) {
		if !r.Success() {
			log.Error("job failed", logger.String("job", r.JobName), logger.Err(r.Err))
		}
	})
	if purger, ok := a.store.(jobs.Purger); ok {
		job := jobs.NewPurgeSessionsJob(purger, 30*time.Second, log)
		if a.metrics != nil {
			job.OnPurged = a.metrics.ObservePurged
		}
		if err := sched.Register(job, scheduler.Every(cfg.Session.PurgeInterval)); err != nil {
			return fmt.Errorf("failed to register purge job: %w", err)
		}
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ══════════════════════════════════════════════════════════════════════════
	// HTTP SERVER
	// ══════════════════════════════════════════════════════════════════════════

	srv := api.NewServer(api.Config{
		Addr:           cfg.HTTP.Addr(),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		RateLimit:      cfg.HTTP.RateLimit,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		Version:        version,
		Debug:          cfg.App.Debug,
	}, a.dependencies(health))
	errCh := srv.StartAsync()

	// ══════════════════════════════════════════════════════════════════════════
	// GRACEFUL SHUTDOWN
	// ══════════════════════════════════════════════════════════════════════════

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var serveErr error
	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Error("HTTP server failed", logger.Err(serveErr))
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", logger.Err(err))
	}
	cancel()
	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop failed", logger.Err(err))
	}

	log.Info("gradebook stopped")
	return serveErr
}
