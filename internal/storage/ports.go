// Package storage persists children and their ledgers.
package storage

import (
	"context"
	"errors"

	"taschengeld/internal/core"
)

// ErrNotFound is returned when a child or transaction does not exist.
var ErrNotFound = errors.New("not found")

// MaxSyncAttempts is how often a transaction is offered for export before it
// is left alone.
const MaxSyncAttempts = 5

// Sync states of a stored transaction.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncFailed  = "error"
)

// Children stores allowance accounts.
type Children interface {
	ListChildren(ctx context.Context) ([]core.Child, error)
	GetChild(ctx context.Context, id int64) (core.Child, error)
	CreateChild(ctx context.Context, c core.Child) (core.Child, error)
	UpdateChild(ctx context.Context, c core.Child) error
}

// Ledger is the append-only transaction log. There is no way to change or
// remove a stored transaction.
type Ledger interface {
	// ListTransactions returns the transactions of one child, oldest first.
	ListTransactions(ctx context.Context, childID int64) ([]core.Transaction, error)
	ListAllTransactions(ctx context.Context) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
}

// SyncQueue tracks which transactions still need to be exported.
type SyncQueue interface {
	// PendingSync returns up to limit transactions that are not yet exported
	// and have failed fewer than MaxSyncAttempts times, oldest first.
	PendingSync(ctx context.Context, limit int) ([]core.Transaction, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
	// SyncStatus returns the export state of a transaction and how often
	// exporting it has failed.
	SyncStatus(ctx context.Context, id int64) (status string, attempts int, err error)
}

// Repository is everything the application needs from a storage backend.
type Repository interface {
	Children
	Ledger
	SyncQueue
	Ping(ctx context.Context) error
	Close() error
}
