package xact

import (
	"context"
	"sync"

	"github.com/harshithgowdakt/heapdb/internal/types"
)

// LockMode is a table-level lock strength.
type LockMode uint8

const (
	// AccessShare is taken by readers.
	AccessShare LockMode = iota
	// RowExclusive is taken by writers.
	RowExclusive
	// AccessExclusive conflicts with every other mode; taken by
	// operations that swap or rewrite a relation's storage.
	AccessExclusive
)

func (m LockMode) String() string {
	switch m {
	case AccessShare:
		return "AccessShare"
	case RowExclusive:
		return "RowExclusive"
	case AccessExclusive:
		return "AccessExclusive"
	default:
		return "Unknown"
	}
}

func conflicts(a, b LockMode) bool {
	return a == AccessExclusive || b == AccessExclusive
}

type lockHolder struct {
	txn  *Transaction
	mode LockMode
}

// lockTable tracks table locks held by transactions. Locks are held
// until end of transaction.
type lockTable struct {
	mu      sync.Mutex
	cond    *sync.Cond
	holders map[types.Oid][]lockHolder
}

func newLockTable() *lockTable {
	lt := &lockTable{holders: make(map[types.Oid][]lockHolder)}
	lt.cond = sync.NewCond(&lt.mu)
	return lt
}

// acquire blocks until the lock is grantable or ctx is done. A
// transaction already holding a lock on oid may strengthen it.
func (lt *lockTable) acquire(ctx context.Context, txn *Transaction, oid types.Oid, mode LockMode) error {
	// Wake the wait loop when the context expires.
	stop := context.AfterFunc(ctx, func() {
		lt.mu.Lock()
		lt.cond.Broadcast()
		lt.mu.Unlock()
	})
	defer stop()

	lt.mu.Lock()
	defer lt.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		blocked := false
		for _, h := range lt.holders[oid] {
			if h.txn != txn && conflicts(h.mode, mode) {
				blocked = true
				break
			}
		}
		if !blocked {
			break
		}
		lt.cond.Wait()
	}

	// Upgrade in place if already held.
	for i, h := range lt.holders[oid] {
		if h.txn == txn {
			if mode > h.mode {
				lt.holders[oid][i].mode = mode
			}
			return nil
		}
	}
	lt.holders[oid] = append(lt.holders[oid], lockHolder{txn: txn, mode: mode})
	txn.heldLocks = append(txn.heldLocks, oid)
	return nil
}

// releaseAll drops every lock held by txn, waking waiters.
func (lt *lockTable) releaseAll(txn *Transaction) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	for _, oid := range txn.heldLocks {
		held := lt.holders[oid]
		out := held[:0]
		for _, h := range held {
			if h.txn != txn {
				out = append(out, h)
			}
		}
		if len(out) == 0 {
			delete(lt.holders, oid)
		} else {
			lt.holders[oid] = out
		}
	}
	txn.heldLocks = nil
	lt.cond.Broadcast()
}

// holds reports whether txn holds a lock of at least the given mode.
func (lt *lockTable) holds(txn *Transaction, oid types.Oid, mode LockMode) bool {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	for _, h := range lt.holders[oid] {
		if h.txn == txn && h.mode >= mode {
			return true
		}
	}
	return false
}
