// Package config loads the service configuration: a viper-backed Manager for
// the HTTP server and an environment-only LiteConfig for the stdio MCP server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/screening-server/internal/domain"
)

// LiteConfig configures the stdio MCP server. It needs no external services.
type LiteConfig struct {
	InstrumentDir string // Extra instrument definitions; empty uses the bundled set
	Timezone      string

	// PersistenceEnabled and CSVPath let scored submissions be appended
	// to a local CSV file.
	PersistenceEnabled bool
	CSVPath            string

	ServerName    string
	ServerVersion string

	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	return &LiteConfig{
		Timezone:      "Asia/Seoul",
		CSVPath:       "data/submissions.csv",
		ServerName:    "screening-server",
		ServerVersion: "1.0.0",
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("SCREENING_INSTRUMENT_DIR"); v != "" {
		cfg.InstrumentDir = v
	}
	if v := os.Getenv("SCREENING_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}

	if v := os.Getenv(EnablePersistenceEnv); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PersistenceEnabled = b
		}
	}
	if v := os.Getenv("SCREENING_CSV_PATH"); v != "" {
		cfg.CSVPath = v
	}

	if v := os.Getenv("SCREENING_MCP_SERVER_NAME"); v != "" {
		cfg.ServerName = v
	}
	if v := os.Getenv("SCREENING_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SCREENING_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// Logging returns the logging settings for NewLogger. MCP stdio owns
// stdout, so logs always go to stderr.
func (c *LiteConfig) Logging() domain.LoggingConfig {
	return domain.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat, Output: "stderr"}
}

// Persistence maps the lite settings onto a CSV persistence config.
func (c *LiteConfig) Persistence() *domain.PersistenceConfig {
	return &domain.PersistenceConfig{
		Enabled: c.PersistenceEnabled,
		Target:  "csv",
		CSVPath: c.CSVPath,
	}
}

// Location resolves the configured timezone.
func (c *LiteConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
