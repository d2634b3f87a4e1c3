package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aula-hub/gradebook/config"
	"github.com/aula-hub/gradebook/internal/application/command"
	"github.com/aula-hub/gradebook/internal/application/query"
	"github.com/aula-hub/gradebook/internal/domain/feedback"
	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/session"
	"github.com/aula-hub/gradebook/internal/infrastructure/export"
	"github.com/aula-hub/gradebook/internal/infrastructure/external/llm"
	"github.com/aula-hub/gradebook/internal/infrastructure/ingest"
	"github.com/aula-hub/gradebook/internal/infrastructure/messaging"
	"github.com/aula-hub/gradebook/internal/infrastructure/metrics"
	"github.com/aula-hub/gradebook/internal/infrastructure/persistence/memory"
	"github.com/aula-hub/gradebook/internal/infrastructure/persistence/postgres"
	"github.com/aula-hub/gradebook/internal/infrastructure/persistence/redis"
	api "github.com/aula-hub/gradebook/internal/interface/http"
	"github.com/aula-hub/gradebook/pkg/logger"
	"github.com/aula-hub/gradebook/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION WIRING
// ══════════════════════════════════════════════════════════════════════════════

// app holds every component built from the configuration.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	store   session.Store
	bus     *messaging.InMemoryEventBus
	metrics *metrics.Metrics
	scale   grading.Scale

	createSession   *command.CreateSessionHandler
	updateSettings  *command.UpdateSettingsHandler
	loadDataset     *command.LoadDatasetHandler
	deleteSession   *command.DeleteSessionHandler
	requestFeedback *command.RequestFeedbackHandler
	exportReport    *command.ExportReportHandler

	getSession  *query.GetSessionHandler
	getRecords  *query.GetRecordsHandler
	getSummary  *query.GetSummaryHandler
	getCharts   *query.GetChartsHandler
	getClusters *query.GetClustersHandler
	getStudent  *query.GetStudentHandler

	closers []func()
}

// appOptions adjusts wiring for offline subcommands.
type appOptions struct {
	// offline forces the in-memory store and disables metrics.
	offline bool
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    cfg.Observability.LogFormat,
		AddCaller: cfg.App.Debug || cfg.IsDevelopment(),
	})
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, log: log, scale: grading.DefaultScale()}

	// ─────────────────────────────────────────────────────────────────────────
	// Session store
	// ─────────────────────────────────────────────────────────────────────────
	storeKind := cfg.Session.Store
	if opts.offline {
		storeKind = "memory"
	}
	store, closeStore, err := openStore(ctx, storeKind, cfg, log)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	// ─────────────────────────────────────────────────────────────────────────
	// Metrics & events
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Observability.MetricsEnabled && !opts.offline {
		a.metrics = metrics.New()
	}

	a.bus = messaging.NewInMemoryEventBus(messaging.Config{
		AsyncMode:      !opts.offline,
		WorkerPoolSize: 4,
		Logger:         log,
	})
	if err := a.bus.SubscribeAll(messaging.AuditLog(log)); err != nil {
		a.Close()
		return nil, fmt.Errorf("subscribe audit log: %w", err)
	}
	if a.metrics != nil {
		if err := a.bus.SubscribeAll(a.metrics.EventHandler()); err != nil {
			a.Close()
			return nil, fmt.Errorf("subscribe metrics: %w", err)
		}
	}
	a.closers = append(a.closers, func() {
		if err := a.bus.Close(); err != nil {
			log.Warn("event bus close failed", logger.Err(err))
		}
	})

	// ─────────────────────────────────────────────────────────────────────────
	// Feedback providers
	// ─────────────────────────────────────────────────────────────────────────
	fc := cfg.Feedback
	llmCfg := llm.DefaultConfig()
	llmCfg.AnthropicBaseURL = fc.AnthropicBaseURL
	llmCfg.HuggingFaceBaseURL = fc.HuggingFaceBaseURL
	llmCfg.GeminiBaseURL = fc.GeminiBaseURL
	llmCfg.Timeout = fc.Timeout
	llmCfg.RatePerMinute = fc.RatePerMinute
	llmCfg.Burst = fc.Burst
	llmCfg.BreakerFailures = fc.BreakerFailures
	llmCfg.BreakerCoolDown = fc.BreakerCoolDown
	llmCfg.Logger = log
	if a.metrics != nil {
		llmCfg.Observer = a.metrics
	}
	requester := llm.NewClient(llmCfg)

	chain := func(next feedback.Requester, fallbacks ...feedback.ProviderConfig) feedback.Requester {
		return llm.NewChain(next, fallbacks...)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Commands & queries
	// ─────────────────────────────────────────────────────────────────────────
	defaults := session.Settings{
		Thresholds: cfg.Grading.Thresholds(),
		Feedback: session.FeedbackSettings{
			Provider:         feedback.Provider(fc.Provider),
			Model:            fc.Model,
			FallbackProvider: feedback.Provider(fc.FallbackProvider),
			FallbackModel:    fc.FallbackModel,
		},
	}
	ttl := cfg.Session.TTL
	if cfg.Features == nil {
		cfg.Features = config.LoadFeatureFlags()
	}
	features := cfg.Features
	pdfOpts := export.DefaultPDFOptions()

	a.createSession = command.NewCreateSessionHandler(store, a.bus, command.CreateSessionConfig{
		Defaults: defaults,
		TTL:      ttl,
		Logger:   log,
	})
	a.updateSettings = command.NewUpdateSettingsHandler(store, a.bus, command.UpdateSettingsConfig{TTL: ttl, Logger: log})
	a.loadDataset = command.NewLoadDatasetHandler(store, command.TableReaderFunc(ingest.Read), a.bus,
		command.LoadDatasetConfig{TTL: ttl, Logger: log})
	a.deleteSession = command.NewDeleteSessionHandler(store, a.bus, log)
	a.requestFeedback = command.NewRequestFeedbackHandler(store, requester, a.bus, command.RequestFeedbackConfig{
		Scale:     a.scale,
		Timeout:   fc.Timeout,
		ServerKey: fc.APIKey,
		Chain:     chain,
		Features:  features,
		TTL:       ttl,
		Logger:    log,
	})
	a.exportReport = command.NewExportReportHandler(store, a.bus, command.ExportReportConfig{
		Scale: a.scale,
		CSV:   export.WriteCSV,
		PDF: func(w io.Writer, aggs []grading.AggregatedRecord) error {
			return export.WritePDF(w, aggs, a.scale, pdfOpts)
		},
		Features: features,
		Logger:   log,
	})

	a.getSession = query.NewGetSessionHandler(store)
	a.getRecords = query.NewGetRecordsHandler(store, a.scale)
	a.getSummary = query.NewGetSummaryHandler(store, a.scale, cfg.Grading.TopN, log)
	a.getCharts = query.NewGetChartsHandler(store, a.scale, features)
	a.getClusters = query.NewGetClustersHandler(store, a.scale, cfg.Grading.Clusters, features)
	a.getStudent = query.NewGetStudentHandler(store, a.scale)

	return a, nil
}

// dependencies returns the handler set of the HTTP server.
func (a *app) dependencies(health *api.HealthChecker) api.Dependencies {
	deps := api.Dependencies{
		CreateSession:   a.createSession,
		UpdateSettings:  a.updateSettings,
		LoadDataset:     a.loadDataset,
		DeleteSession:   a.deleteSession,
		RequestFeedback: a.requestFeedback,
		ExportReport:    a.exportReport,

		GetSession:  a.getSession,
		GetRecords:  a.getRecords,
		GetSummary:  a.getSummary,
		GetCharts:   a.getCharts,
		GetClusters: a.getClusters,
		GetStudent:  a.getStudent,

		Health: health,
		Logger: a.log,
	}
	if a.metrics != nil {
		deps.Metrics = a.metrics
	}
	return deps
}

// Close releases resources in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION STORES
// ══════════════════════════════════════════════════════════════════════════════

func openStore(ctx context.Context, kind string, cfg *config.Config, log *logger.Logger) (session.Store, func(), error) {
	switch kind {
	case "", "memory":
		log.Info("using in-memory session store")
		return memory.NewSessionStore(), func() {}, nil

	case "redis":
		rc := redis.DefaultConfig()
		rc.Addr = cfg.Redis.Addr
		rc.Password = cfg.Redis.Password
		rc.DB = cfg.Redis.DB
		rc.PoolSize = cfg.Redis.PoolSize
		rc.DialTimeout = cfg.Redis.DialTimeout
		rc.ReadTimeout = cfg.Redis.ReadTimeout
		rc.WriteTimeout = cfg.Redis.WriteTimeout

		cache, err := retry.DoWithData(ctx, connectRetrier(log, "redis"), func(context.Context) (*redis.Cache, error) {
			return redis.NewCache(rc)
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("connected to redis", logger.String("addr", rc.Addr))
		return redis.NewSessionStore(cache), func() {
			if err := cache.Close(); err != nil {
				log.Warn("redis close failed", logger.Err(err))
			}
		}, nil

	case "postgres":
		conn, err := openPostgres(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Database.MigrateOnStart {
			applied, err := postgres.NewMigrator(conn).Migrate(ctx)
			if err != nil {
				conn.Close()
				return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("migrations complete", logger.Any("applied", applied))
		}
		return postgres.NewSessionStore(conn), conn.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown session store %q", kind)
}

func openPostgres(ctx context.Context, cfg *config.Config, log *logger.Logger) (*postgres.Connection, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required for the postgres store")
	}
	pc := postgres.DefaultConfig()
	pc.URL = cfg.Database.URL
	pc.MaxConns = cfg.Database.MaxConns

	conn, err := retry.DoWithData(ctx, connectRetrier(log, "postgres"), func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, pc)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("connected to PostgreSQL")
	return conn, nil
}

func connectRetrier(log *logger.Logger, backend string) *retry.Retrier {
	return retry.Connect(func(attempt int, err error, delay time.Duration) {
		log.Warn("backend not ready, retrying",
			logger.String("backend", backend),
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	})
}
