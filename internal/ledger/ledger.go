// Package ledger holds the in-process account balance table and the single
// atomic two-account transfer primitive.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"bankcore/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound   = errors.New("account not registered in ledger")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLockTimeout       = errors.New("timed out waiting for account lock")
)

// CommitFunc persists both post-transfer balances together with the transfer
// record. It runs while both account locks are held: if it returns an error,
// no in-memory balance changes.
type CommitFunc func(sender, recipient models.BalanceUpdate) error

// entry is one account's ledger slot. The buffered channel is the account's
// exclusive lock: a successful send acquires it, a receive releases it.
type entry struct {
	lock    chan struct{}
	balance decimal.Decimal
	version int64
}

// Ledger owns the balance table for all active accounts. It is initialized
// from the persistence store at startup and torn down with the process; every
// balance mutation goes through ApplyTransfer.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*entry
	lockWait time.Duration
	logger   *slog.Logger
}

// New creates an empty ledger. lockWait bounds how long a transfer waits for
// either account lock before giving up with ErrLockTimeout.
func New(lockWait time.Duration, logger *slog.Logger) *Ledger {
	return &Ledger{
		accounts: make(map[uuid.UUID]*entry),
		lockWait: lockWait,
		logger:   logger,
	}
}

// Load registers a batch of accounts, typically the active set read from the
// store at startup. Existing entries are overwritten.
func (l *Ledger) Load(accounts []models.Account) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, account := range accounts {
		l.accounts[account.ID] = &entry{
			lock:    make(chan struct{}, 1),
			balance: account.Balance,
			version: account.Version,
		}
	}

	l.logger.Info("ledger loaded", slog.Int("accounts", len(l.accounts)))
}

// Register adds a single account to the ledger.
func (l *Ledger) Register(account *models.Account) {
	l.Load([]models.Account{*account})
}

// Balance returns the current in-memory balance for an account.
func (l *Ledger) Balance(accountID uuid.UUID) (decimal.Decimal, error) {
	l.mu.RLock()
	e, ok := l.accounts[accountID]
	l.mu.RUnlock()
	if !ok {
		return decimal.Zero, ErrAccountNotFound
	}

	// The lock serializes against in-flight mutations so a reader never
	// observes a half-applied transfer.
	if err := l.acquire(context.Background(), e); err != nil {
		return decimal.Zero, err
	}
	defer l.release(e)

	return e.balance, nil
}

// Version returns the account's mutation-sequence marker.
func (l *Ledger) Version(accountID uuid.UUID) (int64, error) {
	l.mu.RLock()
	e, ok := l.accounts[accountID]
	l.mu.RUnlock()
	if !ok {
		return 0, ErrAccountNotFound
	}

	if err := l.acquire(context.Background(), e); err != nil {
		return 0, err
	}
	defer l.release(e)

	return e.version, nil
}

// ApplyTransfer atomically debits the sender by amount+fee and credits the
// recipient by amount. Locks are taken in ascending account-ID order so two
// transfers over overlapping accounts can never deadlock. The balance check
// runs under both locks; commit runs under both locks and gates the in-memory
// mutation, so a persistence failure leaves every balance untouched.
func (l *Ledger) ApplyTransfer(ctx context.Context, senderID, recipientID uuid.UUID, amount, fee decimal.Decimal, commit CommitFunc) (sender, recipient models.BalanceUpdate, err error) {
	l.mu.RLock()
	senderEntry, senderOK := l.accounts[senderID]
	recipientEntry, recipientOK := l.accounts[recipientID]
	l.mu.RUnlock()

	if !senderOK || !recipientOK {
		return sender, recipient, ErrAccountNotFound
	}

	first, second := senderEntry, recipientEntry
	if bytes.Compare(recipientID[:], senderID[:]) < 0 {
		first, second = recipientEntry, senderEntry
	}

	if err := l.acquire(ctx, first); err != nil {
		return sender, recipient, err
	}
	defer l.release(first)

	if err := l.acquire(ctx, second); err != nil {
		return sender, recipient, err
	}
	defer l.release(second)

	total := amount.Add(fee)
	if senderEntry.balance.LessThan(total) {
		return sender, recipient, ErrInsufficientFunds
	}

	sender = models.BalanceUpdate{
		AccountID: senderID,
		Balance:   senderEntry.balance.Sub(total).Round(2),
		Version:   senderEntry.version + 1,
	}
	recipient = models.BalanceUpdate{
		AccountID: recipientID,
		Balance:   recipientEntry.balance.Add(amount).Round(2),
		Version:   recipientEntry.version + 1,
	}

	if commit != nil {
		if err := commit(sender, recipient); err != nil {
			return models.BalanceUpdate{}, models.BalanceUpdate{}, err
		}
	}

	senderEntry.balance = sender.Balance
	senderEntry.version = sender.Version
	recipientEntry.balance = recipient.Balance
	recipientEntry.version = recipient.Version

	return sender, recipient, nil
}

// acquire takes an entry's exclusive lock, waiting at most lockWait.
func (l *Ledger) acquire(ctx context.Context, e *entry) error {
	timer := time.NewTimer(l.lockWait)
	defer timer.Stop()

	select {
	case e.lock <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrLockTimeout
	case <-ctx.Done():
		return ErrLockTimeout
	}
}

func (l *Ledger) release(e *entry) {
	<-e.lock
}
