// Package memory is an in-process storage backend for development and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"taschengeld/internal/core"
	"taschengeld/internal/storage"
)

type syncState struct {
	status   string
	attempts int
}

type Store struct {
	mu       sync.Mutex
	children map[int64]core.Child
	txs      []core.Transaction
	syncs    map[int64]*syncState
	nextID   int64
	nextTxID int64
	now      func() time.Time
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		children: make(map[int64]core.Child),
		syncs:    make(map[int64]*syncState),
		now:      time.Now,
	}
}

func (s *Store) ListChildren(_ context.Context) ([]core.Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Child, 0, len(s.children))
	for _, c := range s.children {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b core.Child) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) GetChild(_ context.Context, id int64) (core.Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.children[id]
	if !ok {
		return core.Child{}, fmt.Errorf("child %d: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) CreateChild(_ context.Context, c core.Child) (core.Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	s.children[c.ID] = c
	return c, nil
}

func (s *Store) UpdateChild(_ context.Context, c core.Child) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.children[c.ID]; !ok {
		return fmt.Errorf("child %d: %w", c.ID, storage.ErrNotFound)
	}
	s.children[c.ID] = c
	return nil
}

func (s *Store) ListTransactions(_ context.Context, childID int64) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.txs {
		if t.ChildID == childID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) ListAllTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.txs), nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txs {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, storage.ErrNotFound)
}

// InsertTransaction appends t. Transactions stay ordered by creation time,
// ties broken by id.
func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.children[t.ChildID]; !ok {
		return core.Transaction{}, fmt.Errorf("child %d: %w", t.ChildID, storage.ErrNotFound)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	t.CreatedAt = t.CreatedAt.UTC()
	s.nextTxID++
	t.ID = s.nextTxID
	s.txs = append(s.txs, t)
	slices.SortStableFunc(s.txs, func(a, b core.Transaction) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	s.syncs[t.ID] = &syncState{status: storage.SyncPending}
	return t, nil
}

func (s *Store) PendingSync(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.txs {
		if len(out) >= limit {
			break
		}
		st := s.syncs[t.ID]
		if st.status != storage.SyncDone && st.attempts < storage.MaxSyncAttempts {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.syncs[id]
	if !ok {
		return fmt.Errorf("transaction %d: %w", id, storage.ErrNotFound)
	}
	st.status = storage.SyncDone
	return nil
}

func (s *Store) MarkSyncError(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.syncs[id]
	if !ok {
		return fmt.Errorf("transaction %d: %w", id, storage.ErrNotFound)
	}
	st.status = storage.SyncFailed
	st.attempts++
	return nil
}

func (s *Store) SyncStatus(_ context.Context, id int64) (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.syncs[id]
	if !ok {
		return "", 0, fmt.Errorf("transaction %d: %w", id, storage.ErrNotFound)
	}
	return st.status, st.attempts, nil
}

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }
