package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"bankcore/internal/models"
)

var ErrDuplicateInFlight = errors.New("transfer with this idempotency key is still processing")

// maxCompletedEntries caps the terminal-result cache. On overflow the cache is
// dropped wholesale; misses fall through to the durable transfer record.
const maxCompletedEntries = 10000

// inflightEntry marks one idempotency key as owned by an in-progress
// submission. done is closed when the owner completes or releases the key.
type inflightEntry struct {
	done chan struct{}
}

// IdempotencyTracker is the in-memory half of duplicate detection. It serializes
// concurrent submissions sharing a key: one caller wins the reservation, the
// rest block (bounded) until the winner finishes, then replay its result. The
// unique index on the transfer table is the durable half, covering restarts.
type IdempotencyTracker struct {
	mu        sync.Mutex
	inflight  map[string]*inflightEntry
	completed map[string]*models.Transfer
	waitLimit time.Duration
	logger    *slog.Logger
}

// NewIdempotencyTracker creates a tracker. waitLimit bounds how long a
// duplicate submission waits for the in-flight original before giving up.
func NewIdempotencyTracker(waitLimit time.Duration, logger *slog.Logger) IdempotencyTrackerInterface {
	return &IdempotencyTracker{
		inflight:  make(map[string]*inflightEntry),
		completed: make(map[string]*models.Transfer),
		waitLimit: waitLimit,
		logger:    logger,
	}
}

// CheckOrReserve resolves one submission against the key's current state:
//
//   - key unseen: the caller gets the reservation (true, nil, nil) and must
//     call Complete or Release exactly once
//   - key terminal: the cached transfer is replayed (false, transfer, nil)
//   - key in flight: the caller waits for the owner; when the owner completes,
//     the result is replayed, when it releases, the caller retries for the
//     reservation itself
//
// Waiting is bounded by waitLimit and the context; on timeout the caller gets
// ErrDuplicateInFlight, which is safe to retry.
func (t *IdempotencyTracker) CheckOrReserve(ctx context.Context, key string) (bool, *models.Transfer, error) {
	deadline := time.Now().Add(t.waitLimit)

	for {
		t.mu.Lock()
		if result, ok := t.completed[key]; ok {
			t.mu.Unlock()
			return false, result, nil
		}

		entry, ok := t.inflight[key]
		if !ok {
			t.inflight[key] = &inflightEntry{done: make(chan struct{})}
			t.mu.Unlock()
			return true, nil, nil
		}
		t.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil, ErrDuplicateInFlight
		}

		timer := time.NewTimer(remaining)
		select {
		case <-entry.done:
			timer.Stop()
			// Loop: the owner either cached a terminal result or freed the key.
		case <-timer.C:
			return false, nil, ErrDuplicateInFlight
		case <-ctx.Done():
			timer.Stop()
			return false, nil, ErrDuplicateInFlight
		}
	}
}

// Complete records the terminal result for a reserved key and wakes all
// waiters. Must be called by the reservation owner exactly once.
func (t *IdempotencyTracker) Complete(key string, transfer *models.Transfer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.completed) >= maxCompletedEntries {
		t.logger.Warn("idempotency result cache full, dropping", slog.Int("entries", len(t.completed)))
		t.completed = make(map[string]*models.Transfer)
	}
	t.completed[key] = transfer

	if entry, ok := t.inflight[key]; ok {
		close(entry.done)
		delete(t.inflight, key)
	}
}

// Release frees a reserved key without recording a result. Used when the
// attempt ended in a retryable state (lock timeout, persistence failure) so a
// retry with the same key can run the pipeline again.
func (t *IdempotencyTracker) Release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.inflight[key]; ok {
		close(entry.done)
		delete(t.inflight, key)
	}
}
