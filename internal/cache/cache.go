// Package cache holds small in-process caches and their cleanup loop.
package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache is the subset of LRUCache the services depend on.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, data V)
	Delete(key K)
	Size() int
}

var _ Cache[int64, string] = (*LRUCache[int64, string])(nil)

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically cleans every registered cache.
type Manager struct {
	caches []Cleaner
	logger *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Register adds a cache. It must be called before Run.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// Run cleans all caches every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanAll(); n > 0 {
				m.logger.DebugContext(ctx, "Expired cache entries removed", "count", n)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// CleanAll runs one cleanup pass and returns the number of removed entries.
func (m *Manager) CleanAll() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}
