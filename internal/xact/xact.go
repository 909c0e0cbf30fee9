// Package xact manages transactions: xid assignment, command ids,
// snapshots, table locks, and end-of-transaction cleanup.
package xact

import (
	"context"
	"fmt"
	"sync"

	"github.com/harshithgowdakt/heapdb/internal/errkind"
	"github.com/harshithgowdakt/heapdb/internal/types"
	"github.com/harshithgowdakt/heapdb/internal/wal"
)

// Manager assigns transaction ids and tracks their fate.
type Manager struct {
	log   *wal.Log
	locks *lockTable

	mu        sync.Mutex
	nextXid   types.Xid
	active    map[types.Xid]*Transaction
	committed map[types.Xid]bool
}

// NewManager creates a transaction manager writing through log.
func NewManager(log *wal.Log) *Manager {
	return &Manager{
		log:       log,
		locks:     newLockTable(),
		nextXid:   types.FirstNormalXid,
		active:    make(map[types.Xid]*Transaction),
		committed: make(map[types.Xid]bool),
	}
}

// Begin starts a transaction bound to ctx. Cancelling ctx is the
// cooperative interrupt signal observed by CheckForInterrupts.
func (m *Manager) Begin(ctx context.Context) *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	xid := m.nextXid
	m.nextXid++
	txn := &Transaction{
		ctx:     ctx,
		mgr:     m,
		Xid:     xid,
		curCid:  0,
		inScans: make(map[types.Oid]int),
	}
	m.active[xid] = txn
	return txn
}

// Commit makes the transaction durable and releases its locks.
func (m *Manager) Commit(txn *Transaction) error {
	if err := m.log.LogCommit(txn.Xid); err != nil {
		return fmt.Errorf("logging commit: %w", err)
	}
	m.mu.Lock()
	m.committed[txn.Xid] = true
	delete(m.active, txn.Xid)
	m.mu.Unlock()

	// Post-commit actions (dropping replaced storage) run after the
	// commit record is durable; their failures cannot unwind it.
	for _, fn := range txn.onCommit {
		fn()
	}
	txn.onCommit = nil
	txn.onAbort = nil

	m.locks.releaseAll(txn)
	return nil
}

// Abort rolls the transaction back: abort callbacks run in reverse
// registration order, then locks are released.
func (m *Manager) Abort(txn *Transaction) error {
	for i := len(txn.onAbort) - 1; i >= 0; i-- {
		txn.onAbort[i]()
	}
	txn.onAbort = nil

	err := m.log.LogAbort(txn.Xid)
	m.mu.Lock()
	delete(m.active, txn.Xid)
	m.mu.Unlock()
	m.locks.releaseAll(txn)
	return err
}

// IsCommitted reports whether xid committed.
func (m *Manager) IsCommitted(xid types.Xid) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committed[xid]
}

// RecentXmin returns the oldest xid that could still be running: the
// freeze horizon handed to storage swaps.
func (m *Manager) RecentXmin() types.Xid {
	m.mu.Lock()
	defer m.mu.Unlock()
	min := m.nextXid
	for xid := range m.active {
		if xid < min {
			min = xid
		}
	}
	return min
}

// Transaction is a single transaction's state. Not safe for concurrent
// use; the engine runs one statement at a time per transaction.
type Transaction struct {
	ctx context.Context
	mgr *Manager
	Xid types.Xid

	curCid  types.Cid
	cidUsed bool

	snapshots []*Snapshot
	onAbort   []func()
	onCommit  []func()
	heldLocks []types.Oid
	inScans   map[types.Oid]int
}

// Ctx returns the context the transaction was started with.
func (t *Transaction) Ctx() context.Context { return t.ctx }

// CurrentCommandID returns the command id for the current command.
// With used=true the caller intends to stamp writes with it, which
// forces the next CommandCounterIncrement to take effect.
func (t *Transaction) CurrentCommandID(used bool) types.Cid {
	if used {
		t.cidUsed = true
	}
	return t.curCid
}

// CommandCounterIncrement advances the command boundary so later
// commands see the effects of earlier ones.
func (t *Transaction) CommandCounterIncrement() {
	if t.cidUsed {
		t.curCid++
		t.cidUsed = false
	}
}

// Snapshot returns the transaction's current snapshot.
func (t *Transaction) Snapshot() *Snapshot {
	return &Snapshot{
		Xid:         t.Xid,
		CurCid:      t.curCid,
		isCommitted: t.mgr.IsCommitted,
	}
}

// WithSnapshot pushes snap for the duration of fn, popping it on every
// exit path. This is the only way snapshots enter the stack, so the
// stack cannot leak across operations.
func (t *Transaction) WithSnapshot(snap *Snapshot, fn func(*Snapshot) error) error {
	t.snapshots = append(t.snapshots, snap)
	defer func() {
		t.snapshots = t.snapshots[:len(t.snapshots)-1]
	}()
	return fn(snap)
}

// ActiveSnapshot returns the top of the snapshot stack, or the
// transaction's own snapshot when none is pushed.
func (t *Transaction) ActiveSnapshot() *Snapshot {
	if n := len(t.snapshots); n > 0 {
		return t.snapshots[n-1]
	}
	return t.Snapshot()
}

// CheckForInterrupts returns the cancellation error if the user
// requested an interrupt.
func (t *Transaction) CheckForInterrupts() error {
	return t.ctx.Err()
}

// OnAbort registers cleanup to run if the transaction aborts.
func (t *Transaction) OnAbort(fn func()) {
	t.onAbort = append(t.onAbort, fn)
}

// OnCommit registers an action to run after the commit record is
// durable, such as unlinking storage replaced during the transaction.
func (t *Transaction) OnCommit(fn func()) {
	t.onCommit = append(t.onCommit, fn)
}

// LockTable blocks until a table lock of the given mode is granted;
// the lock is held to the end of the transaction.
func (t *Transaction) LockTable(oid types.Oid, mode LockMode) error {
	return t.mgr.locks.acquire(t.ctx, t, oid, mode)
}

// HoldsLock reports whether the transaction holds at least mode on oid.
func (t *Transaction) HoldsLock(oid types.Oid, mode LockMode) bool {
	return t.mgr.locks.holds(t, oid, mode)
}

// RegisterScan records an open scan on oid within this transaction.
func (t *Transaction) RegisterScan(oid types.Oid) {
	t.inScans[oid]++
}

// UnregisterScan records the end of an open scan.
func (t *Transaction) UnregisterScan(oid types.Oid) {
	if t.inScans[oid] > 0 {
		t.inScans[oid]--
	}
}

// CheckTableNotInUse fails when the table has open scans in this
// transaction, which would be unsafe to combine with frozen bulk loads.
func (t *Transaction) CheckTableNotInUse(oid types.Oid, operation string) error {
	if t.inScans[oid] > 0 {
		return errkind.New(errkind.KindObjectInUse,
			"cannot run %s because the table is in use by an open scan in this transaction", operation)
	}
	return nil
}
