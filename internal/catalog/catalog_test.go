package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/heapdb/internal/errkind"
	"github.com/harshithgowdakt/heapdb/internal/smgr"
	"github.com/harshithgowdakt/heapdb/internal/tuple"
	"github.com/harshithgowdakt/heapdb/internal/types"
	"github.com/harshithgowdakt/heapdb/internal/wal"
	"github.com/harshithgowdakt/heapdb/internal/xact"
)

type testEnv struct {
	dir   string
	store *smgr.DiskManager
	log   *wal.Log
	cat   *Catalog
	xmgr  *xact.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := smgr.NewDiskManager(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	log, err := wal.Open(dir, false)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	cat, err := Open(dir, store, log, nil)
	require.NoError(t, err)
	return &testEnv{dir: dir, store: store, log: log, cat: cat, xmgr: xact.NewManager(log)}
}

func testDesc() *tuple.Desc {
	return tuple.NewDesc([]tuple.ColumnDef{
		{Name: "id", DataType: types.TypeInt64},
		{Name: "total", DataType: types.TypeFloat64},
	})
}

func TestCreateTablePersistsAcrossReopen(t *testing.T) {
	env := newTestEnv(t)
	txn := env.xmgr.Begin(context.Background())
	rel, err := env.cat.CreateTable(txn, "orders", "alice", testDesc())
	require.NoError(t, err)
	require.NoError(t, env.xmgr.Commit(txn))
	require.True(t, rel.Populated, "tables are born populated")

	reopened, err := Open(env.dir, env.store, env.log, nil)
	require.NoError(t, err)
	got, ok := reopened.Lookup("orders")
	require.True(t, ok)
	require.Equal(t, rel.Oid, got.Oid)
	require.Equal(t, "alice", got.Owner)
	require.True(t, got.Desc.Equal(testDesc()))
	require.Equal(t, env.cat.InstanceID(), reopened.InstanceID())
}

func TestCreateTableAbortRemovesEntryAndStorage(t *testing.T) {
	env := newTestEnv(t)
	txn := env.xmgr.Begin(context.Background())
	rel, err := env.cat.CreateTable(txn, "orders", "alice", testDesc())
	require.NoError(t, err)
	node := rel.RelFileNode()
	require.True(t, env.store.Exists(node))

	require.NoError(t, env.xmgr.Abort(txn))
	_, ok := env.cat.Lookup("orders")
	require.False(t, ok)
	require.False(t, env.store.Exists(node))
}

func TestMatViewStartsUnpopulatedWithRule(t *testing.T) {
	env := newTestEnv(t)
	txn := env.xmgr.Begin(context.Background())
	_, err := env.cat.CreateTable(txn, "orders", "alice", testDesc())
	require.NoError(t, err)

	rel, err := env.cat.CreateMaterializedView(txn, "big_orders", "alice", testDesc(),
		"SELECT id, total FROM orders WHERE total > 100", nil)
	require.NoError(t, err)
	require.NoError(t, env.xmgr.Commit(txn))

	require.False(t, rel.Populated)
	require.Len(t, rel.Rules, 1)
	require.True(t, rel.Rules[0].IsInstead)
	require.Equal(t, "SELECT", rel.Rules[0].Event)
}

func TestResolveAndLockChecksOwner(t *testing.T) {
	env := newTestEnv(t)
	txn := env.xmgr.Begin(context.Background())
	_, err := env.cat.CreateTable(txn, "orders", "alice", testDesc())
	require.NoError(t, err)

	_, err = env.cat.ResolveAndLock(txn, "orders", xact.AccessShare, "mallory")
	require.True(t, errkind.Is(err, errkind.KindPermissionDenied))

	oid, err := env.cat.ResolveAndLock(txn, "orders", xact.AccessShare, "alice")
	require.NoError(t, err)
	require.NotEqual(t, types.InvalidOid, oid)

	_, err = env.cat.ResolveAndLock(txn, "missing", xact.AccessShare, "")
	require.True(t, errkind.Is(err, errkind.KindNotFound))
}

func TestTransientHeapIsHiddenAndAbortCleaned(t *testing.T) {
	env := newTestEnv(t)
	txn := env.xmgr.Begin(context.Background())
	view, err := env.cat.CreateMaterializedView(txn, "mv", "alice", testDesc(), "SELECT * FROM t", nil)
	require.NoError(t, err)
	require.NoError(t, env.xmgr.Commit(txn))

	txn = env.xmgr.Begin(context.Background())
	newOid, err := env.cat.MakeTransientHeap(txn, view.Oid, "")
	require.NoError(t, err)

	tr, ok := env.cat.Get(newOid)
	require.True(t, ok)
	require.Equal(t, view.Tablespace, tr.Tablespace)
	_, byName := env.cat.Lookup(tr.Name)
	require.False(t, byName, "transient heaps are not name-resolvable")
	require.True(t, env.store.Exists(tr.RelFileNode()))

	node := tr.RelFileNode()
	require.NoError(t, env.xmgr.Abort(txn))
	_, ok = env.cat.Get(newOid)
	require.False(t, ok)
	require.False(t, env.store.Exists(node))
}

func TestHeapSwapCommitReclaimsOldStorage(t *testing.T) {
	env := newTestEnv(t)
	txn := env.xmgr.Begin(context.Background())
	view, err := env.cat.CreateMaterializedView(txn, "mv", "alice", testDesc(), "SELECT * FROM t", nil)
	require.NoError(t, err)
	require.NoError(t, env.xmgr.Commit(txn))

	oldNode := view.RelFileNode()

	txn = env.xmgr.Begin(context.Background())
	newOid, err := env.cat.MakeTransientHeap(txn, view.Oid, "")
	require.NoError(t, err)
	require.NoError(t, env.cat.SetPopulated(newOid, true))

	require.NoError(t, env.cat.FinishHeapSwap(txn, view.Oid, newOid, true, true, 5, 0))

	// Identity is stable; storage moved.
	got, _ := env.cat.Get(view.Oid)
	require.Equal(t, view.Oid, got.Oid)
	require.Equal(t, newOid, got.FileNode)
	require.True(t, got.Populated)
	require.Equal(t, types.Xid(5), got.FrozenXid)

	require.NoError(t, env.xmgr.Commit(txn))
	_, ok := env.cat.Get(newOid)
	require.False(t, ok, "transient entry is gone after commit")
	require.False(t, env.store.Exists(oldNode), "displaced storage reclaimed")
}

func TestHeapSwapAbortRestoresMapping(t *testing.T) {
	env := newTestEnv(t)
	txn := env.xmgr.Begin(context.Background())
	view, err := env.cat.CreateMaterializedView(txn, "mv", "alice", testDesc(), "SELECT * FROM t", nil)
	require.NoError(t, err)
	require.NoError(t, env.xmgr.Commit(txn))

	oldNode := view.FileNode

	txn = env.xmgr.Begin(context.Background())
	newOid, err := env.cat.MakeTransientHeap(txn, view.Oid, "")
	require.NoError(t, err)
	require.NoError(t, env.cat.SetPopulated(newOid, true))
	require.NoError(t, env.cat.FinishHeapSwap(txn, view.Oid, newOid, false, true, 5, 0))

	require.NoError(t, env.xmgr.Abort(txn))

	got, ok := env.cat.Get(view.Oid)
	require.True(t, ok)
	require.Equal(t, oldNode, got.FileNode, "abort restores the original storage")
	require.False(t, got.Populated)
	require.True(t, env.store.Exists(got.RelFileNode()))
	_, ok = env.cat.Get(newOid)
	require.False(t, ok, "transient entry cleaned up on abort")
}

func TestDropRelationKindCheck(t *testing.T) {
	env := newTestEnv(t)
	txn := env.xmgr.Begin(context.Background())
	_, err := env.cat.CreateTable(txn, "orders", "alice", testDesc())
	require.NoError(t, err)

	err = env.cat.DropRelation(txn, "orders", true)
	require.True(t, errkind.Is(err, errkind.KindWrongKind))

	require.NoError(t, env.cat.DropRelation(txn, "orders", false))
	require.NoError(t, env.xmgr.Commit(txn))
	_, ok := env.cat.Lookup("orders")
	require.False(t, ok)
}
