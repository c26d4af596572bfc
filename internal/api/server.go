// Package api serves the screening workflow over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/screening-server/internal/domain"
	"github.com/screening-server/internal/middleware"
	"github.com/screening-server/internal/report"
	"github.com/screening-server/internal/service"
)

// Dependencies are the collaborators the HTTP server needs. Records and
// Gatherer are optional.
type Dependencies struct {
	Config      *domain.Config
	Logger      *logrus.Logger
	Catalog     domain.InstrumentCatalog
	Sessions    domain.SessionRepository
	Machine     *service.SessionMachine
	Submissions *service.SubmissionService
	Records     domain.RecordStore
	Reports     *report.Renderer
	Gatherer    prometheus.Gatherer
	Health      func(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	deps   Dependencies
	logger *logrus.Logger
	router *gin.Engine
	server *http.Server
	locks  *sessionLocks
}

// NewServer creates a new HTTP server instance
func NewServer(deps Dependencies) (*Server, error) {
	if deps.Config == nil || deps.Catalog == nil || deps.Sessions == nil || deps.Machine == nil || deps.Submissions == nil {
		return nil, errors.New("api: config, catalog, sessions, machine and submissions are required")
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Reports == nil {
		deps.Reports = report.NewRenderer(nil)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AccessLog(deps.Logger))

	if rl := deps.Config.RateLimit; rl.Enabled {
		limiter, err := middleware.NewRateLimiter(rl)
		if err != nil {
			return nil, fmt.Errorf("creating rate limiter: %w", err)
		}
		router.Use(limiter.Middleware())
	}

	s := &Server{
		deps:   deps,
		logger: deps.Logger,
		router: router,
		locks:  newSessionLocks(),
	}
	s.setupRoutes()
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.deps.Config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.deps.Gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/instruments", s.handleListInstruments)
		v1.GET("/instruments/:id", s.handleGetInstrument)
		v1.GET("/instruments/:id/header", s.handleInstrumentHeader)
		v1.POST("/instruments/:id/score", s.handleScore)

		sessions := v1.Group("/sessions")
		sessions.POST("", s.handleCreateSession)
		sessions.GET("/:id", s.handleGetSession)
		sessions.DELETE("/:id", s.handleDeleteSession)
		sessions.PUT("/:id/consent", s.handleConsent)
		sessions.PUT("/:id/identity", s.handleIdentity)
		sessions.PUT("/:id/answers/:ordinal", s.handleAnswer)
		sessions.DELETE("/:id/answers/:ordinal", s.handleClearAnswer)
		sessions.PUT("/:id/annotations/:ordinal", s.handleAnnotate)
		sessions.PUT("/:id/supplementary/:key", s.handleSupplementary)
		sessions.POST("/:id/next", s.handleNext)
		sessions.POST("/:id/back", s.handleBack)
		sessions.POST("/:id/reset", s.handleReset)
		sessions.GET("/:id/result", s.handleResult)
		sessions.GET("/:id/export", s.handleExport)
		sessions.GET("/:id/report", s.handleReport)

		if s.deps.Records != nil {
			v1.GET("/submissions/:id", s.handleGetSubmission)
			v1.GET("/instruments/:id/submissions", s.handleListSubmissions)
		}
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if s.deps.Health != nil {
		if err := s.deps.Health(c.Request.Context()); err != nil {
			s.logger.WithError(err).Warn("Health check failed")
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{
		"status":      status,
		"timestamp":   time.Now().UTC(),
		"persistence": s.deps.Submissions.Enabled(),
	})
}
