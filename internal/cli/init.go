// Package cli holds the startup steps shared by cmd/sfinapp and
// cmd/sfinapp-worker.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sfinapp/internal/backend"
	"sfinapp/internal/config"
	applog "sfinapp/internal/log"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// NewLogger builds the process logger from cfg and installs it as the slog
// default. An unknown level falls back to info; Validate reports it.
func NewLogger(cfg *config.Config, component string, out io.Writer) *applog.Logger {
	level, _ := applog.ParseLevel(cfg.LogLevel)
	logger := applog.New(applog.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    out,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadConfig loads .env and the environment, sets up logging and validates.
// It exits the process when the configuration is invalid.
func LoadConfig(component string) (*config.Config, *applog.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := NewLogger(cfg, component, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.LogError(context.Background(), "Configuration validation failed", err, applog.ErrorTypeConfiguration, "startup")
		os.Exit(1)
	}
	return cfg, logger
}

// OpenBackend creates the backend described by cfg or exits the process.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *applog.Logger) *backend.Backend {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.LogError(ctx, "Invalid backend configuration", err, applog.ErrorTypeConfiguration, "startup")
		os.Exit(1)
	}
	b, err := backend.NewFactory(logger.WithComponent(applog.ComponentStorage).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.LogError(ctx, "Failed to initialize backend", err, applog.ErrorTypeDatabase, "startup")
		os.Exit(1)
	}
	return b
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
