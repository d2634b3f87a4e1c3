// Package http exposes the gradebook dashboard as a JSON API. Sessions are
// addressed by ID; every derived view is recomputed from the session's
// stored records and current settings.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/aula-hub/gradebook/internal/application/command"
	"github.com/aula-hub/gradebook/internal/application/query"
	"github.com/aula-hub/gradebook/internal/infrastructure/ingest"
	"github.com/aula-hub/gradebook/pkg/logger"
)

const apiVersion = "v1"

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// CORSOrigins lists allowed origins; empty disables CORS headers.
	CORSOrigins []string

	// RateLimit is requests per second per client IP (0 = disabled).
	RateLimit float64
	RateBurst int

	// MaxUploadBytes bounds dataset uploads.
	MaxUploadBytes int64

	Version string
	Debug   bool
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    60 * time.Second,
		RateLimit:      20,
		MaxUploadBytes: ingest.DefaultMaxBytes,
		Version:        "dev",
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// HTTPObserver records request metrics.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// MetricsExporter serves the metrics scrape endpoint.
type MetricsExporter interface {
	HTTPObserver
	Handler() http.Handler
}

// Dependencies contains everything the handlers call.
type Dependencies struct {
	// Commands
	CreateSession   *command.CreateSessionHandler
	UpdateSettings  *command.UpdateSettingsHandler
	LoadDataset     *command.LoadDatasetHandler
	DeleteSession   *command.DeleteSessionHandler
	RequestFeedback *command.RequestFeedbackHandler
	ExportReport    *command.ExportReportHandler

	// Queries
	GetSession  *query.GetSessionHandler
	GetRecords  *query.GetRecordsHandler
	GetSummary  *query.GetSummaryHandler
	GetCharts   *query.GetChartsHandler
	GetClusters *query.GetClustersHandler
	GetStudent  *query.GetStudentHandler

	Health  *HealthChecker
	Metrics MetricsExporter
	Logger  *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	app        *echo.Echo
	httpServer *http.Server
	logger     *logger.Logger

	mu      sync.RWMutex
	running bool
}

// requestValidator plugs go-playground/validator into echo.
type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}

// NewServer creates the server and registers every route.
func NewServer(config Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}
	if deps.Health == nil {
		deps.Health = NewHealthChecker(config.Version)
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}

	s := &Server{
		config: config,
		deps:   deps,
		app:    echo.New(),
		logger: deps.Logger.With(logger.Component("http")),
	}
	s.setup()

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.app,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.HidePort = true
	s.app.Debug = s.config.Debug
	s.app.Validator = &requestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
	s.app.HTTPErrorHandler = newErrorHandler(s.logger)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	s.app.Use(recoverer(s.logger))
	s.app.Use(requestLogger(s.logger))
	if s.deps.Metrics != nil {
		s.app.Use(observe(s.deps.Metrics))
	}
	if len(s.config.CORSOrigins) > 0 {
		s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  s.config.CORSOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderXRequestID, headerProviderKey, headerFallbackProviderKey},
			ExposeHeaders: []string{echo.HeaderXRequestID, echo.HeaderContentDisposition},
			MaxAge:        86400,
		}))
	}

	s.setupRoutes()
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status
	// ─────────────────────────────────────────────────────────────────────────
	s.app.GET("/health", s.handleHealth)
	s.app.GET("/ready", s.handleReady)
	if s.deps.Metrics != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// API v1
	// ─────────────────────────────────────────────────────────────────────────
	v1 := s.app.Group("/api/" + apiVersion)
	if s.config.RateLimit > 0 {
		v1.Use(newIPRateLimiter(s.config.RateLimit, s.config.RateBurst).middleware())
	}

	v1.POST("/sessions", s.handleCreateSession)
	v1.GET("/sessions/:id", s.handleGetSession)
	v1.DELETE("/sessions/:id", s.handleDeleteSession)
	v1.PUT("/sessions/:id/settings", s.handleUpdateSettings)
	v1.POST("/sessions/:id/dataset", s.handleLoadDataset)

	v1.GET("/sessions/:id/records", s.handleGetRecords)
	v1.GET("/sessions/:id/students/:student", s.handleGetStudent)
	v1.GET("/sessions/:id/summary", s.handleGetSummary)
	v1.GET("/sessions/:id/charts", s.handleGetCharts)
	v1.GET("/sessions/:id/clusters", s.handleGetClusters)

	v1.POST("/sessions/:id/feedback", s.handleRequestFeedback)
	v1.GET("/sessions/:id/export.csv", s.handleExportCSV)
	v1.GET("/sessions/:id/export.pdf", s.handleExportPDF)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Addr))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP lets tests drive the router directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}
