package backend

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"taschengeld/internal/config"
	"taschengeld/internal/log"
	"taschengeld/internal/storage"
	"taschengeld/internal/storage/memory"
)

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		wantErr bool
	}{
		{"nil config", nil, true},
		{"memory", &config.Config{DataBackend: "memory"}, false},
		{"sqlite", &config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", &config.Config{DataBackend: "sqlite"}, true},
		{"sheets is gone", &config.Config{DataBackend: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromAppConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromAppConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(log.New(log.Config{Output: &bytes.Buffer{}}))

	res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, ok := res.Repository.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", res.Repository)
	}

	res, err = f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "t.db")})
	if err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}
	if _, ok := res.Repository.(*storage.SQLiteRepository); !ok {
		t.Fatalf("expected sqlite repository, got %T", res.Repository)
	}
	if err := res.Repository.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := res.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if _, err := f.CreateBackend(ctx, Config{Type: "postgres"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
