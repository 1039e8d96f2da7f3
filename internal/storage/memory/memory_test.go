package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"taschengeld/internal/core"
	"taschengeld/internal/storage"
)

func TestMemoryStoreChildren(t *testing.T) {
	ctx := context.Background()
	s := New()

	ben, err := s.CreateChild(ctx, core.Child{Name: "ben", StartDate: core.NewDate(2024, 1, 1)})
	if err != nil || ben.ID != 1 {
		t.Fatalf("unexpected create: %+v err=%v", ben, err)
	}
	if _, err := s.CreateChild(ctx, core.Child{Name: "Anna", StartDate: core.NewDate(2024, 1, 1)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, _ := s.ListChildren(ctx)
	if len(list) != 2 || list[0].Name != "Anna" || list[1].Name != "ben" {
		t.Fatalf("expected case-insensitive name order, got %+v", list)
	}

	ben.WeeklyRate = core.Money{Cents: 300}
	if err := s.UpdateChild(ctx, ben); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.GetChild(ctx, ben.ID)
	if got.WeeklyRate.Cents != 300 {
		t.Fatalf("update not applied: %+v", got)
	}

	if _, err := s.GetChild(ctx, 99); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateChild(ctx, core.Child{ID: 99}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestMemoryStoreLedgerAndSync(t *testing.T) {
	ctx := context.Background()
	s := New()
	c, _ := s.CreateChild(ctx, core.Child{Name: "Mia", StartDate: core.NewDate(2024, 1, 1)})

	late := time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC)
	early := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	t1, _ := s.InsertTransaction(ctx, core.Transaction{ChildID: c.ID, Amount: core.Money{Cents: -200}, CreatedAt: late})
	t2, _ := s.InsertTransaction(ctx, core.Transaction{ChildID: c.ID, Amount: core.Money{Cents: 500}, CreatedAt: early})

	txs, _ := s.ListTransactions(ctx, c.ID)
	if len(txs) != 2 || txs[0].ID != t2.ID || txs[1].ID != t1.ID {
		t.Fatalf("expected oldest first, got %+v", txs)
	}

	if _, err := s.InsertTransaction(ctx, core.Transaction{ChildID: 42, Amount: core.Money{Cents: 1}}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown child, got %v", err)
	}

	pending, _ := s.PendingSync(ctx, 10)
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	if err := s.MarkSynced(ctx, t2.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	for i := 0; i < storage.MaxSyncAttempts; i++ {
		if err := s.MarkSyncError(ctx, t1.ID); err != nil {
			t.Fatalf("mark sync error: %v", err)
		}
	}
	pending, _ = s.PendingSync(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected nothing pending after retries exhausted, got %+v", pending)
	}

	if status, _, err := s.SyncStatus(ctx, t2.ID); err != nil || status != storage.SyncDone {
		t.Fatalf("sync status of t2: %q %v", status, err)
	}
	if status, attempts, _ := s.SyncStatus(ctx, t1.ID); status != storage.SyncFailed || attempts != storage.MaxSyncAttempts {
		t.Fatalf("sync status of t1: %q %d", status, attempts)
	}
	if _, _, err := s.SyncStatus(ctx, 99); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
