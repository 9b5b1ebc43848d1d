// Package ledger tracks per-machine sync cursors, stamps the append-only
// audit trail, and serializes canonical-store commits per partition.
//
// The conflict-resolution guarantee lives here: a commit for a partition
// runs its evaluation closure INSIDE the partition critical section, so a
// later-arriving upload always re-evaluates against the current store
// state rather than the state it observed when the upload began. No blind
// overwrite, no lost update.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/weftlabs/weft/internal/record"
	"github.com/weftlabs/weft/internal/store"
)

// Ledger owns machine cursors, the log clock, and partition serialization.
type Ledger struct {
	store *store.Store
	clock *Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open builds a ledger over the store, resuming the logical clock from the
// highest persisted log seq so stamps never repeat across restarts.
func Open(ctx context.Context, st *store.Store) (*Ledger, error) {
	maxSeq, err := st.MaxLogSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return &Ledger{
		store: st,
		clock: NewClockAt(maxSeq),
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// NextSeq stamps the next logical sequence number.
func (l *Ledger) NextSeq() int64 {
	return l.clock.Next()
}

// Evaluator produces the commit set for a partition. It is invoked inside
// the partition critical section and must read the store's CURRENT state,
// not state captured before Commit was called.
type Evaluator func(ctx context.Context) (store.CommitSet, error)

// Commit serializes and applies a partition commit.
//
// At most one evaluation+apply is in flight per partition key; commits on
// distinct keys proceed concurrently. The commit set applies atomically -
// a cancelled or failed evaluation leaves the store unchanged, and the
// machine cursor (if the set carries one) does not advance.
func (l *Ledger) Commit(ctx context.Context, partitionKey string, eval Evaluator) error {
	lock := l.partitionLock(partitionKey)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit %s: %w", partitionKey, err)
	}

	cs, err := eval(ctx)
	if err != nil {
		return fmt.Errorf("commit %s: evaluate: %w", partitionKey, err)
	}

	if err := l.store.ApplyCommit(ctx, cs); err != nil {
		return fmt.Errorf("commit %s: %w", partitionKey, err)
	}
	return nil
}

// partitionLock returns the mutex guarding a partition key, creating it on
// first use. Lock objects are never removed; the key space (machines x
// days actually synced) stays small.
func (l *Ledger) partitionLock(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	return lock
}

// Entry builds a stamped log entry. The caller includes it in a commit
// set; entries are never written outside a commit.
func (l *Ledger) Entry(machineID string, op record.Op, status string, at time.Time, conversations []string, note string) record.SyncLogEntry {
	return record.SyncLogEntry{
		Seq:           l.NextSeq(),
		MachineID:     machineID,
		Op:            op,
		Status:        status,
		At:            at,
		Conversations: conversations,
		Note:          note,
	}
}

// Cursor returns a machine's last successfully synchronized watermark.
// The zero time means the machine has never completed a sync.
func (l *Ledger) Cursor(ctx context.Context, machineID string) (time.Time, error) {
	m, err := l.store.GetMachine(ctx, machineID)
	if err != nil {
		return time.Time{}, fmt.Errorf("cursor %s: %w", machineID, err)
	}
	if m == nil {
		return time.Time{}, nil
	}
	return m.Cursor, nil
}

// History returns the audit trail, optionally filtered by machine.
func (l *Ledger) History(ctx context.Context, machineID string) ([]record.SyncLogEntry, error) {
	return l.store.ListSyncLog(ctx, machineID)
}
