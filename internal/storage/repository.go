package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"taschengeld/internal/core"

	_ "modernc.org/sqlite"
)

// Fixed width so that stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

func dsn(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dsn(dbPath)); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const childColumns = `id, name, weekly_rate_cents, start_date, start_balance_cents, payout_day`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChild(s rowScanner) (core.Child, error) {
	var (
		c         core.Child
		startDate string
		payoutDay int64
	)
	if err := s.Scan(&c.ID, &c.Name, &c.WeeklyRate.Cents, &startDate, &c.StartBalance.Cents, &payoutDay); err != nil {
		return core.Child{}, err
	}
	d, err := core.ParseDate(startDate)
	if err != nil {
		return core.Child{}, fmt.Errorf("child %d: start date %q: %w", c.ID, startDate, err)
	}
	c.StartDate = d
	c.PayoutDay = time.Weekday(payoutDay)
	return c, nil
}

func (r *SQLiteRepository) ListChildren(ctx context.Context) ([]core.Child, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+childColumns+` FROM children ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var children []core.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, c)
	}
	return children, rows.Err()
}

func (r *SQLiteRepository) GetChild(ctx context.Context, id int64) (core.Child, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+childColumns+` FROM children WHERE id = ?`, id)
	c, err := scanChild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Child{}, fmt.Errorf("child %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Child{}, fmt.Errorf("get child %d: %w", id, err)
	}
	return c, nil
}

func (r *SQLiteRepository) CreateChild(ctx context.Context, c core.Child) (core.Child, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO children (name, weekly_rate_cents, start_date, start_balance_cents, payout_day, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, c.WeeklyRate.Cents, c.StartDate.String(), c.StartBalance.Cents, int64(c.PayoutDay),
		time.Now().UTC().Format(timestampLayout))
	if err != nil {
		return core.Child{}, fmt.Errorf("create child: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Child{}, fmt.Errorf("create child: last insert id: %w", err)
	}
	c.ID = id

	slog.InfoContext(ctx, "Child saved to SQLite", "child_id", id, "weekly_rate_cents", c.WeeklyRate.Cents)
	return c, nil
}

func (r *SQLiteRepository) UpdateChild(ctx context.Context, c core.Child) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE children
		 SET name = ?, weekly_rate_cents = ?, start_date = ?, start_balance_cents = ?, payout_day = ?
		 WHERE id = ?`,
		c.Name, c.WeeklyRate.Cents, c.StartDate.String(), c.StartBalance.Cents, int64(c.PayoutDay), c.ID)
	if err != nil {
		return fmt.Errorf("update child %d: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update child %d: rows affected: %w", c.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("child %d: %w", c.ID, ErrNotFound)
	}

	slog.InfoContext(ctx, "Child updated", "child_id", c.ID)
	return nil
}

const transactionColumns = `id, child_id, amount_cents, note, created_at`

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t         core.Transaction
		createdAt string
	)
	if err := s.Scan(&t.ID, &t.ChildID, &t.Amount.Cents, &t.Note, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	at, err := time.Parse(timestampLayout, createdAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: created_at %q: %w", t.ID, createdAt, err)
	}
	t.CreatedAt = at
	return t, nil
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, childID int64) ([]core.Transaction, error) {
	txs, err := r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE child_id = ? ORDER BY created_at, id`, childID)
	if err != nil {
		return nil, fmt.Errorf("list transactions of child %d: %w", childID, err)
	}
	return txs, nil
}

func (r *SQLiteRepository) ListAllTransactions(ctx context.Context) ([]core.Transaction, error) {
	txs, err := r.queryTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// InsertTransaction appends t to the ledger. A zero CreatedAt is set to now.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.CreatedAt = t.CreatedAt.UTC()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (child_id, amount_cents, note, created_at) VALUES (?, ?, ?, ?)`,
		t.ChildID, t.Amount.Cents, t.Note, t.CreatedAt.Format(timestampLayout))
	if err != nil {
		if _, getErr := r.GetChild(ctx, t.ChildID); errors.Is(getErr, ErrNotFound) {
			return core.Transaction{}, getErr
		}
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: last insert id: %w", err)
	}
	t.ID = id

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"transaction_id", t.ID,
		"child_id", t.ChildID,
		"amount_cents", t.Amount.Cents)
	return t, nil
}

func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]core.Transaction, error) {
	txs, err := r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE sync_status IN (?, ?) AND sync_attempts < ?
		 ORDER BY created_at, id
		 LIMIT ?`,
		SyncPending, SyncFailed, MaxSyncAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	return txs, nil
}

// MarkSynced marks a transaction as successfully exported
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ?, synced_at = ? WHERE id = ?`,
		SyncDone, time.Now().UTC().Format(timestampLayout), id)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}

	slog.InfoContext(ctx, "Transaction marked as synced", "transaction_id", id)
	return nil
}

func (r *SQLiteRepository) SyncStatus(ctx context.Context, id int64) (string, int, error) {
	var (
		status   string
		attempts int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT sync_status, sync_attempts FROM transactions WHERE id = ?`, id).
		Scan(&status, &attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", 0, fmt.Errorf("get sync status: %w", err)
	}
	return status, attempts, nil
}

// MarkSyncError records a failed export attempt
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ?, sync_attempts = sync_attempts + 1 WHERE id = ?`,
		SyncFailed, id)
	if err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}

	slog.WarnContext(ctx, "Transaction marked with sync error", "transaction_id", id)
	return nil
}
