// Package sink holds the row appenders a submission can be persisted to.
package sink

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/screening-server/internal/domain"
)

// Target names accepted by persistence.target.
const (
	TargetDisabled = "disabled"
	TargetCSV      = "csv"
	TargetSQLite   = "sqlite"
	TargetPostgres = "postgres"
)

// Disabled accepts every row and stores nothing.
type Disabled struct{}

func (Disabled) AppendRow(context.Context, domain.WideRow) error { return nil }

func (Disabled) Name() string { return TargetDisabled }

// New builds the appender named by cfg.Target wrapped in a circuit breaker.
// The returned closer releases the target's resources.
func New(cfg *domain.PersistenceConfig, logger *logrus.Logger) (domain.RowAppender, io.Closer, error) {
	var (
		appender domain.RowAppender
		closer   io.Closer = nopCloser{}
	)

	switch strings.ToLower(cfg.Target) {
	case "", TargetDisabled:
		return Disabled{}, closer, nil
	case TargetCSV:
		appender = NewCSVAppender(cfg.CSVPath)
	case TargetSQLite:
		s, err := NewSQLiteAppender(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		appender, closer = s, s
	case TargetPostgres:
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		appender, closer = NewPostgresAppender(db), db
	default:
		return nil, nil, &domain.ConfigurationError{Reason: fmt.Sprintf("unknown persistence target %q", cfg.Target)}
	}

	return NewResilient(appender, ResilientConfig{
		Timeout:     cfg.Timeout,
		OpenTimeout: cfg.BreakerTimeout,
		MaxFailures: cfg.MaxFailures,
	}, logger), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
