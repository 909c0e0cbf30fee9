package xact

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/heapdb/internal/errkind"
	"github.com/harshithgowdakt/heapdb/internal/tuple"
	"github.com/harshithgowdakt/heapdb/internal/types"
	"github.com/harshithgowdakt/heapdb/internal/wal"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	log, err := wal.Open(t.TempDir(), false)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return NewManager(log)
}

func TestSnapshotSeesOwnEarlierCommands(t *testing.T) {
	m := testManager(t)
	txn := m.Begin(context.Background())

	cid := txn.CurrentCommandID(true)
	own := &tuple.Tuple{Xmin: txn.Xid, Cmin: cid}

	// A snapshot taken in the same command does not see the write.
	snap := txn.Snapshot()
	require.False(t, snap.Visible(own))

	// After the command counter advances, it does.
	txn.CommandCounterIncrement()
	snap = txn.Snapshot()
	require.True(t, snap.Visible(own))
}

func TestSnapshotFrozenAlwaysVisible(t *testing.T) {
	m := testManager(t)
	txn := m.Begin(context.Background())

	frozen := &tuple.Tuple{Xmin: types.FrozenXid, Infomask: tuple.FlagFrozen}
	require.True(t, txn.Snapshot().Visible(frozen))
}

func TestSnapshotOtherTransaction(t *testing.T) {
	m := testManager(t)
	writer := m.Begin(context.Background())
	reader := m.Begin(context.Background())

	row := &tuple.Tuple{Xmin: writer.Xid, Cmin: 0}
	require.False(t, reader.Snapshot().Visible(row))

	require.NoError(t, m.Commit(writer))
	require.True(t, reader.Snapshot().Visible(row))
}

func TestWithSnapshotScopes(t *testing.T) {
	m := testManager(t)
	txn := m.Begin(context.Background())

	// With nothing pushed, the transaction's own snapshot is active.
	base := txn.ActiveSnapshot()
	require.NotNil(t, base)
	require.Equal(t, txn.Xid, base.Xid)

	inner := txn.Snapshot()
	err := txn.WithSnapshot(inner, func(snap *Snapshot) error {
		require.Same(t, inner, txn.ActiveSnapshot())
		return nil
	})
	require.NoError(t, err)

	// The scope is popped on exit and the fallback resumes.
	after := txn.ActiveSnapshot()
	require.NotSame(t, inner, after)
	require.Equal(t, txn.Xid, after.Xid)
}

func TestLockConflict(t *testing.T) {
	m := testManager(t)
	a := m.Begin(context.Background())
	b := m.Begin(context.Background())

	const oid types.Oid = 100
	require.NoError(t, a.LockTable(oid, AccessExclusive))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	blocked := m.Begin(ctx)
	_ = b
	err := blocked.LockTable(oid, AccessShare)
	require.Error(t, err)

	// Releasing at commit unblocks waiters.
	require.NoError(t, m.Commit(a))
	c := m.Begin(context.Background())
	require.NoError(t, c.LockTable(oid, AccessShare))
}

func TestSharedLocksCoexist(t *testing.T) {
	m := testManager(t)
	a := m.Begin(context.Background())
	b := m.Begin(context.Background())

	const oid types.Oid = 101
	require.NoError(t, a.LockTable(oid, AccessShare))
	require.NoError(t, b.LockTable(oid, AccessShare))
}

func TestCheckTableNotInUse(t *testing.T) {
	m := testManager(t)
	txn := m.Begin(context.Background())

	const oid types.Oid = 102
	require.NoError(t, txn.CheckTableNotInUse(oid, "REFRESH"))

	txn.RegisterScan(oid)
	err := txn.CheckTableNotInUse(oid, "REFRESH")
	require.Error(t, err)
	require.True(t, errkind.Is(err, errkind.KindObjectInUse))

	txn.UnregisterScan(oid)
	require.NoError(t, txn.CheckTableNotInUse(oid, "REFRESH"))
}

func TestAbortCallbacksRunInReverseOrder(t *testing.T) {
	m := testManager(t)
	txn := m.Begin(context.Background())

	var order []int
	txn.OnAbort(func() { order = append(order, 1) })
	txn.OnAbort(func() { order = append(order, 2) })
	require.NoError(t, m.Abort(txn))
	require.Equal(t, []int{2, 1}, order)
}

func TestCommitCallbacksRunOnCommitOnly(t *testing.T) {
	m := testManager(t)

	txn := m.Begin(context.Background())
	var committed, aborted bool
	txn.OnCommit(func() { committed = true })
	txn.OnAbort(func() { aborted = true })
	require.NoError(t, m.Commit(txn))
	require.True(t, committed)
	require.False(t, aborted)
}
