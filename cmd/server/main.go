// Package main is the entry point of the screening HTTP service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/screening-server/internal/api"
	"github.com/screening-server/internal/config"
	"github.com/screening-server/internal/database"
	"github.com/screening-server/internal/domain"
	"github.com/screening-server/internal/instrument"
	"github.com/screening-server/internal/metrics"
	"github.com/screening-server/internal/report"
	"github.com/screening-server/internal/repository"
	"github.com/screening-server/internal/service"
	"github.com/screening-server/internal/sink"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	loc, err := configManager.Location()
	if err != nil {
		logger.WithError(err).Fatal("Invalid timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Error("Server failed")
		os.Exit(1)
	}
	logger.WithField("timezone", loc.String()).Info("Server stopped")
}

func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()
	loc, _ := configManager.Location()

	catalog, err := instrument.Load(cfg.App.InstrumentDir)
	if err != nil {
		return err
	}
	logger.WithField("instruments", catalog.IDs()).Info("Instruments loaded")

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(promReg)

	sessions, closeSessions, err := sessionRepository(ctx, cfg, promReg, logger)
	if err != nil {
		return err
	}
	defer closeSessions()

	var (
		appender domain.RowAppender = sink.Disabled{}
		records  domain.RecordStore
		health   func(context.Context) error
	)
	if cfg.Persistence.Enabled {
		a, closer, err := sink.New(&cfg.Persistence, logger)
		if err != nil {
			return err
		}
		defer closer.Close()
		appender = a
	}

	if cfg.Persistence.RecordStore || cfg.Database.AutoMigrate {
		dbConfig := database.ConfigFrom(&cfg.Database)
		if cfg.Database.AutoMigrate {
			runner, err := database.NewMigrationRunner(dbConfig.URL(), cfg.Database.MigrationsPath, logger)
			if err != nil {
				return err
			}
			err = runner.Up(ctx)
			runner.Close()
			if err != nil {
				return err
			}
		}
		if cfg.Persistence.RecordStore {
			db, err := database.NewConnection(ctx, dbConfig, logger)
			if err != nil {
				return err
			}
			defer db.Close()
			records = repository.NewSubmissionRepository(db.Pool, logger)
			health = db.Health
		}
	}

	logger.WithFields(logrus.Fields{
		"persistence": cfg.Persistence.Enabled,
		"target":      appender.Name(),
		"records":     records != nil,
	}).Info("Persistence configured")

	machine := service.NewSessionMachine(catalog, logger,
		service.WithLocation(loc),
		service.WithMetrics(mt),
	)
	submissions := service.NewSubmissionService(catalog, logger, service.SubmissionConfig{
		Enabled:  cfg.Persistence.Enabled,
		Appender: appender,
		Records:  records,
		Metrics:  mt,
	})

	server, err := api.NewServer(api.Dependencies{
		Config:      cfg,
		Logger:      logger,
		Catalog:     catalog,
		Sessions:    sessions,
		Machine:     machine,
		Submissions: submissions,
		Records:     records,
		Reports:     report.NewRenderer(loc),
		Gatherer:    promReg,
		Health:      health,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	return g.Wait()
}

func sessionRepository(ctx context.Context, cfg *domain.Config, reg prometheus.Registerer, logger *logrus.Logger) (domain.SessionRepository, func(), error) {
	if cfg.Session.Store != "redis" {
		mem := repository.NewMemorySessionRepository(cfg.Session.MaxSessions, cfg.Session.TTL)
		promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
			Name: "screening_sessions_active",
			Help: "Sessions held by the in-memory store",
		}, func() float64 { return float64(mem.Len()) })
		return mem, func() {}, nil
	}

	client, err := repository.NewRedisClient(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Using redis session store")
	return repository.NewRedisSessionRepository(client, cfg.Session.TTL, logger), func() { client.Close() }, nil
}
