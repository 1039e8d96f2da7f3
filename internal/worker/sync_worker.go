// Package worker exports recorded transactions to the spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"taschengeld/internal/accrual"
	"taschengeld/internal/amqp"
	"taschengeld/internal/core"
	"taschengeld/internal/log"
	"taschengeld/internal/sheets"
	"taschengeld/internal/storage"
)

// Consumer delivers TransactionRecorded messages until ctx is cancelled.
type Consumer interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

type Config struct {
	BatchSize int
	// Interval between sweeps for transactions whose message was lost.
	Interval time.Duration
	Location *time.Location
}

// SyncWorker appends one sheet row per transaction, including the balance
// right after the transaction, and records the outcome in storage.
type SyncWorker struct {
	repo      storage.Repository
	sheets    sheets.LedgerWriter
	batchSize int
	interval  time.Duration
	loc       *time.Location
	logger    *log.Logger

	// Serializes exports so a message and the sweep never append the same row twice.
	mu sync.Mutex
}

func NewSyncWorker(repo storage.Repository, writer sheets.LedgerWriter, cfg Config, logger *log.Logger) *SyncWorker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{
		repo:      repo,
		sheets:    writer,
		batchSize: cfg.BatchSize,
		interval:  cfg.Interval,
		loc:       cfg.Location,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleMessage processes one message from the queue.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	w.logger.InfoContext(ctx, "Processing transaction message",
		log.FieldMessageID, msg.MessageID,
		log.FieldTransactionID, msg.TransactionID)
	return w.Export(ctx, msg.TransactionID)
}

// Export writes the transaction's row unless it was exported already or has
// used up its attempts. Unknown transactions are skipped.
func (w *SyncWorker) Export(ctx context.Context, id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	status, attempts, err := w.repo.SyncStatus(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Skipping unknown transaction", log.FieldTransactionID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get sync status: %w", err)
	}
	if status == storage.SyncDone {
		w.logger.DebugContext(ctx, "Transaction already exported", log.FieldTransactionID, id)
		return nil
	}
	if attempts >= storage.MaxSyncAttempts {
		w.logger.WarnContext(ctx, "Giving up on transaction export",
			log.FieldTransactionID, id,
			"attempts", attempts)
		return nil
	}

	row, err := w.buildRow(ctx, id)
	if err != nil {
		w.markError(ctx, id)
		return err
	}

	ref, err := w.sheets.AppendRow(ctx, row)
	if err != nil {
		w.markError(ctx, id)
		return fmt.Errorf("append to sheets: %w", err)
	}

	// The row is written; a failure here only means it may be exported again.
	if err := w.repo.MarkSynced(ctx, id); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark as synced", log.FieldTransactionID, id, log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Transaction exported",
		log.FieldTransactionID, id,
		log.FieldAmountCents, row.Amount.Cents,
		log.FieldBalanceCents, row.BalanceAfter.Cents,
		"sheets_ref", ref)
	return nil
}

func (w *SyncWorker) buildRow(ctx context.Context, id int64) (sheets.LedgerRow, error) {
	tx, err := w.repo.GetTransaction(ctx, id)
	if err != nil {
		return sheets.LedgerRow{}, fmt.Errorf("get transaction: %w", err)
	}
	child, err := w.repo.GetChild(ctx, tx.ChildID)
	if err != nil {
		return sheets.LedgerRow{}, fmt.Errorf("get child %d: %w", tx.ChildID, err)
	}
	ledger, err := w.repo.ListTransactions(ctx, tx.ChildID)
	if err != nil {
		return sheets.LedgerRow{}, fmt.Errorf("list transactions of child %d: %w", tx.ChildID, err)
	}

	return sheets.LedgerRow{
		TransactionID: tx.ID,
		At:            tx.CreatedAt,
		Child:         child.Name,
		Amount:        tx.Amount,
		Note:          tx.Note,
		BalanceAfter:  accrual.BalanceAt(accrual.ProfileOf(child), ledgerUpTo(ledger, tx), tx.CreatedAt, w.loc),
	}, nil
}

// ledgerUpTo keeps the entries booked before tx and tx itself. Entries with
// the same timestamp are ordered by id.
func ledgerUpTo(ledger []core.Transaction, tx core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(ledger))
	for _, t := range ledger {
		if t.CreatedAt.Before(tx.CreatedAt) || (t.CreatedAt.Equal(tx.CreatedAt) && t.ID <= tx.ID) {
			out = append(out, t)
		}
	}
	return out
}

func (w *SyncWorker) markError(ctx context.Context, id int64) {
	if err := w.repo.MarkSyncError(ctx, id); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark sync error", log.FieldTransactionID, id, log.FieldError, err)
	}
}

// ProcessPending exports one batch of transactions that are still pending.
// It is the fallback for messages that never arrived.
func (w *SyncWorker) ProcessPending(ctx context.Context) (synced, failed int, err error) {
	pending, err := w.repo.PendingSync(ctx, w.batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending transactions", "count", len(pending))
	for _, t := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if err := w.Export(ctx, t.ID); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export transaction", log.FieldTransactionID, t.ID, log.FieldError, err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

// Run consumes messages (when consumer is not nil) and sweeps pending
// transactions on start and every interval, until ctx is cancelled.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer) error {
	g, gctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			return consumer.Consume(gctx, w.HandleMessage)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			if _, _, err := w.ProcessPending(gctx); err != nil && gctx.Err() == nil {
				w.logger.ErrorContext(gctx, "Pending sweep failed", log.FieldError, err)
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
