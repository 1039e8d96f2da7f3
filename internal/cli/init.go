// Package cli holds the startup steps shared by cmd/taschengeld and
// cmd/taschengeld-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"taschengeld/internal/config"
	"taschengeld/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and runs validate on it.
// It exits the process on validation failure.
func LoadAndValidateConfig(validate func(*config.Config) error) (*config.Config, *log.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg)
	if err := validate(cfg); err != nil {
		Fatal(logger, "Configuration validation failed", err)
	}
	return cfg, logger
}

// Fatal logs err and exits with status 1.
func Fatal(logger *log.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append([]any{log.FieldError, err}, args...)...)
	os.Exit(1)
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
