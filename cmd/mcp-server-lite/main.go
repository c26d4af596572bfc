// Package main provides the stdio MCP entry point of the screening service.
// It needs no database: submissions go to a CSV file when persistence is
// switched on.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/screening-server/internal/config"
	"github.com/screening-server/internal/instrument"
	"github.com/screening-server/internal/mcp"
	"github.com/screening-server/internal/service"
	"github.com/screening-server/internal/sink"
)

func main() {
	cfg := config.LoadLiteConfig()

	logger, err := config.NewLogger(cfg.Logging())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("MCP server failed")
	}
	logger.Info("MCP server stopped")
}

func run(ctx context.Context, cfg *config.LiteConfig, logger *logrus.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	catalog, err := instrument.Load(cfg.InstrumentDir)
	if err != nil {
		return err
	}

	appender, closer, err := sink.New(cfg.Persistence(), logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	logger.WithFields(logrus.Fields{
		"instruments": catalog.IDs(),
		"persistence": cfg.PersistenceEnabled,
		"csv_path":    cfg.CSVPath,
		"timezone":    loc.String(),
	}).Info("Starting screening MCP server")

	server, err := mcp.NewServer(mcp.Options{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
		Catalog: catalog,
		Machine: service.NewSessionMachine(catalog, logger, service.WithLocation(loc)),
		Submissions: service.NewSubmissionService(catalog, logger, service.SubmissionConfig{
			Enabled:  cfg.PersistenceEnabled,
			Appender: appender,
		}),
		Logger: logger,
	})
	if err != nil {
		return err
	}
	return server.Run(ctx)
}
