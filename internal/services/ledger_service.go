// Package services holds the application's use cases on top of storage and
// the accrual engine.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"taschengeld/internal/accrual"
	"taschengeld/internal/cache"
	"taschengeld/internal/core"
	"taschengeld/internal/log"
	"taschengeld/internal/storage"
)

// ErrInsufficientFunds is returned when a withdrawal exceeds the current balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

const (
	defaultLedgerCacheSize = 64
	defaultLedgerCacheTTL  = 5 * time.Minute
	overviewConcurrency    = 4

	// maxStartLeadYears bounds how far in the future an account may start.
	maxStartLeadYears = 5
)

// Publisher announces new ledger entries to other processes.
type Publisher interface {
	PublishTransactionRecorded(ctx context.Context, transactionID, childID int64) error
}

// Account is everything the detail page shows for one child.
type Account struct {
	Child   core.Child
	Balance core.Money
	Today   core.Date
	// History holds stored transactions and weekly credits, newest first.
	History []core.HistoryEntry
}

// LedgerService records deposits and withdrawals and derives balances from
// the stored ledger and the accrual profile.
type LedgerService struct {
	repo      storage.Repository
	publisher Publisher
	ledgers   cache.Cache[int64, []core.Transaction]
	now       func() time.Time
	loc       *time.Location
	logger    *log.Logger
	events    *log.StructuredLogger

	mapMu sync.Mutex
	muMap map[int64]*sync.Mutex
}

// Option configures a LedgerService.
type Option func(*LedgerService)

// WithClock replaces time.Now as the source of the evaluation instant.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// WithLocation sets the zone that decides which calendar day it is.
func WithLocation(loc *time.Location) Option {
	return func(s *LedgerService) { s.loc = loc }
}

// WithPublisher announces every stored transaction through p.
func WithPublisher(p Publisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

// WithLogger sets the logger; the default writes to stdout.
func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) { s.logger = l }
}

// WithLedgerCache shares a ledger cache, e.g. one registered with a cache.Manager.
func WithLedgerCache(c cache.Cache[int64, []core.Transaction]) Option {
	return func(s *LedgerService) { s.ledgers = c }
}

// NewLedgerService creates the service on top of repo.
func NewLedgerService(repo storage.Repository, opts ...Option) *LedgerService {
	s := &LedgerService{
		repo:  repo,
		now:   time.Now,
		loc:   time.UTC,
		muMap: make(map[int64]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ledgers == nil {
		s.ledgers = cache.NewLRUCache[int64, []core.Transaction](defaultLedgerCacheSize, defaultLedgerCacheTTL)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger)
	}
	s.events = log.NewStructuredLogger(s.logger)
	return s
}

// Today returns the current calendar day in the household zone.
func (s *LedgerService) Today() core.Date {
	return core.Today(s.now(), s.loc)
}

// Location returns the household zone.
func (s *LedgerService) Location() *time.Location {
	return s.loc
}

// accountLock returns the mutex of one child. Entries are never removed; a
// household has a handful of children, so the map stays small.
func (s *LedgerService) accountLock(childID int64) *sync.Mutex {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	if _, exists := s.muMap[childID]; !exists {
		s.muMap[childID] = &sync.Mutex{}
	}
	return s.muMap[childID]
}

// loadLedger must be called with the child's account lock held.
func (s *LedgerService) loadLedger(ctx context.Context, childID int64) ([]core.Transaction, error) {
	if txs, ok := s.ledgers.Get(childID); ok {
		return txs, nil
	}
	txs, err := s.repo.ListTransactions(ctx, childID)
	if err != nil {
		return nil, err
	}
	s.ledgers.Set(childID, txs)
	return txs, nil
}

func (s *LedgerService) ledger(ctx context.Context, childID int64) ([]core.Transaction, error) {
	mu := s.accountLock(childID)
	mu.Lock()
	defer mu.Unlock()
	return s.loadLedger(ctx, childID)
}

// ListChildren returns all accounts ordered by name.
func (s *LedgerService) ListChildren(ctx context.Context) ([]core.Child, error) {
	return s.repo.ListChildren(ctx)
}

// GetChild returns one account or storage.ErrNotFound.
func (s *LedgerService) GetChild(ctx context.Context, id int64) (core.Child, error) {
	return s.repo.GetChild(ctx, id)
}

// Overview returns every child with its current balance.
func (s *LedgerService) Overview(ctx context.Context) ([]core.ChildSummary, error) {
	children, err := s.repo.ListChildren(ctx)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}

	today := s.Today()
	out := make([]core.ChildSummary, len(children))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewConcurrency)
	for i, c := range children {
		g.Go(func() error {
			txs, err := s.ledger(gctx, c.ID)
			if err != nil {
				return fmt.Errorf("load ledger of child %d: %w", c.ID, err)
			}
			out[i] = core.ChildSummary{
				Child:   c,
				Balance: accrual.Balance(accrual.ProfileOf(c), txs, today),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Account returns one child with balance and merged history.
func (s *LedgerService) Account(ctx context.Context, id int64) (Account, error) {
	child, err := s.repo.GetChild(ctx, id)
	if err != nil {
		return Account{}, err
	}
	txs, err := s.ledger(ctx, id)
	if err != nil {
		return Account{}, fmt.Errorf("load ledger of child %d: %w", id, err)
	}

	today := s.Today()
	p := accrual.ProfileOf(child)
	return Account{
		Child:   child,
		Balance: accrual.Balance(p, txs, today),
		Today:   today,
		History: core.MergeHistory(txs, accrual.CollectRateEntries(p, today), s.loc),
	}, nil
}

// Balance returns the current balance of one child.
func (s *LedgerService) Balance(ctx context.Context, id int64) (core.Money, error) {
	child, err := s.repo.GetChild(ctx, id)
	if err != nil {
		return core.Money{}, err
	}
	txs, err := s.ledger(ctx, id)
	if err != nil {
		return core.Money{}, fmt.Errorf("load ledger of child %d: %w", id, err)
	}
	return accrual.Balance(accrual.ProfileOf(child), txs, s.Today()), nil
}

// Deposit appends a positive entry to the child's ledger. It returns
// core.ErrAmountTooLarge when the balance would exceed core.MaxCents.
func (s *LedgerService) Deposit(ctx context.Context, id int64, amount core.Money, note string) (core.Transaction, error) {
	if err := amount.Validate(); err != nil {
		return core.Transaction{}, err
	}

	mu := s.accountLock(id)
	mu.Lock()
	defer mu.Unlock()

	child, err := s.repo.GetChild(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	txs, err := s.loadLedger(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load ledger of child %d: %w", id, err)
	}
	balance := accrual.Balance(accrual.ProfileOf(child), txs, s.Today())
	if balance.Cents > core.MaxCents-amount.Cents {
		return core.Transaction{}, fmt.Errorf("deposit %s onto balance %s: %w", amount, balance, core.ErrAmountTooLarge)
	}
	return s.append(ctx, log.OpDeposit, core.Transaction{ChildID: id, Amount: amount, Note: note})
}

// Withdraw appends a negative entry unless amount exceeds the current
// balance, in which case it returns ErrInsufficientFunds and the ledger is
// left unchanged. Checks and appends for the same child are serialized.
func (s *LedgerService) Withdraw(ctx context.Context, id int64, amount core.Money, note string) (core.Transaction, error) {
	if err := amount.Validate(); err != nil {
		return core.Transaction{}, err
	}

	mu := s.accountLock(id)
	mu.Lock()
	defer mu.Unlock()

	child, err := s.repo.GetChild(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	txs, err := s.loadLedger(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load ledger of child %d: %w", id, err)
	}

	balance := accrual.Balance(accrual.ProfileOf(child), txs, s.Today())
	if amount.Cents > balance.Cents {
		s.logger.InfoContext(ctx, "Withdrawal rejected",
			log.FieldChildID, id,
			log.FieldAmountCents, amount.Cents,
			log.FieldBalanceCents, balance.Cents)
		return core.Transaction{}, fmt.Errorf("withdraw %s from balance %s: %w", amount, balance, ErrInsufficientFunds)
	}

	return s.append(ctx, log.OpWithdraw, core.Transaction{ChildID: id, Amount: amount.Neg(), Note: note})
}

// append must be called with the child's account lock held.
func (s *LedgerService) append(ctx context.Context, op string, t core.Transaction) (core.Transaction, error) {
	t.Note = strings.TrimSpace(t.Note)
	t.CreatedAt = s.now()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	saved, err := s.repo.InsertTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.ledgers.Delete(t.ChildID)
	s.events.LogTransactionRecorded(ctx, op, saved.ChildID, saved.ID, saved.Amount.Cents)

	s.publish(ctx, saved)
	return saved, nil
}

// publish never fails the request: the transaction is already stored and the
// export sweep picks up anything that was not announced.
func (s *LedgerService) publish(ctx context.Context, t core.Transaction) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping transaction message",
			log.FieldTransactionID, t.ID)
		return
	}
	if err := s.publisher.PublishTransactionRecorded(ctx, t.ID, t.ChildID); err != nil {
		s.events.LogError(ctx, "Failed to publish transaction message", err, log.OpPublish,
			log.NewFields().WithTransaction(t.ChildID, t.ID, t.Amount.Cents))
	}
}

// CreateChild validates and stores a new account.
func (s *LedgerService) CreateChild(ctx context.Context, c core.Child) (core.Child, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := s.validateChild(c); err != nil {
		return core.Child{}, err
	}
	created, err := s.repo.CreateChild(ctx, c)
	if err != nil {
		return core.Child{}, fmt.Errorf("create child: %w", err)
	}
	s.logger.InfoContext(ctx, "Child created", log.FieldChildID, created.ID)
	return created, nil
}

// UpdateChild replaces the profile of an existing account. Balances are
// always derived, so a profile change takes effect retroactively.
func (s *LedgerService) UpdateChild(ctx context.Context, c core.Child) error {
	c.Name = strings.TrimSpace(c.Name)
	if err := s.validateChild(c); err != nil {
		return err
	}

	mu := s.accountLock(c.ID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.repo.UpdateChild(ctx, c); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Child updated", log.FieldChildID, c.ID)
	return nil
}

// validateChild adds the clock-dependent check to core.Child.Validate: the
// start date may lie at most maxStartLeadYears in the future.
func (s *LedgerService) validateChild(c core.Child) error {
	if err := c.Validate(); err != nil {
		return err
	}
	latest := s.Today().AddYears(maxStartLeadYears)
	if c.StartDate.After(latest) {
		return fmt.Errorf("start date %s after %s: %w", c.StartDate, latest, core.ErrStartDateOutOfRange)
	}
	return nil
}
