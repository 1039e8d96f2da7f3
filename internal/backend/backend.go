// Package backend picks and opens the storage backend named in the configuration.
package backend

import (
	"context"
	"fmt"

	"taschengeld/internal/config"
	"taschengeld/internal/log"
	"taschengeld/internal/storage"
	"taschengeld/internal/storage/memory"
)

// BackendType names a storage implementation.
type BackendType string

const (
	SQLiteBackend BackendType = config.BackendSQLite
	MemoryBackend BackendType = config.BackendMemory
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

type Config struct {
	Type         BackendType
	SQLiteDBPath string
}

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	cfg := Config{
		Type:         BackendType(appConfig.DataBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	return nil
}

type CleanupFunc func() error

// BackendResult holds the opened repository and the function that releases it.
type BackendResult struct {
	Repository storage.Repository
	Cleanup    CleanupFunc
}

type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Factory{logger: logger.WithComponent(log.ComponentBackend)}
}

func (f *Factory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return &BackendResult{Repository: repo, Cleanup: repo.Close}, nil
	case MemoryBackend:
		store := memory.New()
		f.logger.WarnContext(ctx, "Initialized memory backend, data is lost on restart")
		return &BackendResult{Repository: store, Cleanup: store.Close}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}
