package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"taschengeld/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteChildren(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	in := core.Child{
		Name:         "Mia",
		WeeklyRate:   core.Money{Cents: 500},
		StartDate:    core.NewDate(2024, 1, 1),
		StartBalance: core.Money{Cents: 250},
		PayoutDay:    time.Friday,
	}
	created, err := repo.CreateChild(ctx, in)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}

	got, err := repo.GetChild(ctx, created.ID)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if got != created {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, created)
	}

	got.Name = "Mia Sophie"
	got.PayoutDay = time.Sunday
	if err := repo.UpdateChild(ctx, got); err != nil {
		t.Fatalf("update child: %v", err)
	}
	list, err := repo.ListChildren(ctx)
	if err != nil || len(list) != 1 || list[0].Name != "Mia Sophie" || list[0].PayoutDay != time.Sunday {
		t.Fatalf("unexpected list: %+v err=%v", list, err)
	}

	if _, err := repo.GetChild(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.UpdateChild(ctx, core.Child{ID: 999, Name: "x", StartDate: core.NewDate(2024, 1, 1)}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestSQLiteLedger(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	child, err := repo.CreateChild(ctx, core.Child{Name: "Ben", StartDate: core.NewDate(2024, 1, 1), PayoutDay: time.Monday})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	berlin := time.FixedZone("CET", 3600)
	first, err := repo.InsertTransaction(ctx, core.Transaction{
		ChildID:   child.ID,
		Amount:    core.Money{Cents: 1500},
		Note:      "Geburtstag",
		CreatedAt: time.Date(2024, 1, 3, 10, 0, 0, 123, berlin),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	second, err := repo.InsertTransaction(ctx, core.Transaction{
		ChildID:   child.ID,
		Amount:    core.Money{Cents: -800},
		CreatedAt: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	txs, err := repo.ListTransactions(ctx, child.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 2 || txs[0].ID != second.ID || txs[1].ID != first.ID {
		t.Fatalf("expected oldest first, got %+v", txs)
	}
	if !txs[1].CreatedAt.Equal(first.CreatedAt) || txs[1].Note != "Geburtstag" {
		t.Fatalf("round trip mismatch: %+v vs %+v", txs[1], first)
	}
	if got := core.SumAmounts(txs); got.Cents != 700 {
		t.Fatalf("expected sum 700, got %d", got.Cents)
	}

	if _, err := repo.InsertTransaction(ctx, core.Transaction{ChildID: 999, Amount: core.Money{Cents: 1}}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown child, got %v", err)
	}
	if _, err := repo.GetTransaction(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	all, _ := repo.ListAllTransactions(ctx)
	if len(all) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(all))
	}
}

func TestSQLiteLedgerIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	child, _ := repo.CreateChild(ctx, core.Child{Name: "Ben", StartDate: core.NewDate(2024, 1, 1)})
	tx, err := repo.InsertTransaction(ctx, core.Transaction{ChildID: child.ID, Amount: core.Money{Cents: 100}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := repo.db.ExecContext(ctx, `UPDATE transactions SET amount_cents = 5 WHERE id = ?`, tx.ID); err == nil {
		t.Fatalf("expected update to be rejected")
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, tx.ID); err == nil {
		t.Fatalf("expected delete to be rejected")
	}
}

func TestSQLiteSyncQueue(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	child, _ := repo.CreateChild(ctx, core.Child{Name: "Ben", StartDate: core.NewDate(2024, 1, 1)})
	a, _ := repo.InsertTransaction(ctx, core.Transaction{ChildID: child.ID, Amount: core.Money{Cents: 100}})
	b, _ := repo.InsertTransaction(ctx, core.Transaction{ChildID: child.ID, Amount: core.Money{Cents: 200}})

	pending, err := repo.PendingSync(ctx, 10)
	if err != nil || len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d err=%v", len(pending), err)
	}
	if limited, _ := repo.PendingSync(ctx, 1); len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	if err := repo.MarkSynced(ctx, a.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := repo.MarkSyncError(ctx, b.ID); err != nil {
		t.Fatalf("mark sync error: %v", err)
	}
	pending, _ = repo.PendingSync(ctx, 10)
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Fatalf("expected failed transaction to be retried, got %+v", pending)
	}
	if status, attempts, err := repo.SyncStatus(ctx, a.ID); err != nil || status != SyncDone || attempts != 0 {
		t.Fatalf("sync status of a: %q %d %v", status, attempts, err)
	}
	if status, attempts, err := repo.SyncStatus(ctx, b.ID); err != nil || status != SyncFailed || attempts != 1 {
		t.Fatalf("sync status of b: %q %d %v", status, attempts, err)
	}
	if _, _, err := repo.SyncStatus(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for i := 1; i < MaxSyncAttempts; i++ {
		_ = repo.MarkSyncError(ctx, b.ID)
	}
	pending, _ = repo.PendingSync(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected retries to be exhausted, got %+v", pending)
	}

	if err := repo.MarkSynced(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	if err := RunMigrations(dsn(path)); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(dsn(path)); err != nil {
		t.Fatalf("second run: %v", err)
	}
}
