package heap

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/heapdb/internal/smgr"
	"github.com/harshithgowdakt/heapdb/internal/tuple"
	"github.com/harshithgowdakt/heapdb/internal/types"
	"github.com/harshithgowdakt/heapdb/internal/wal"
	"github.com/harshithgowdakt/heapdb/internal/xact"
)

func testRelation(t *testing.T) (*Relation, *xact.Manager) {
	t.Helper()
	dir := t.TempDir()
	store, err := smgr.NewDiskManager(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	log, err := wal.Open(dir, false)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	desc := tuple.NewDesc([]tuple.ColumnDef{
		{Name: "id", DataType: types.TypeInt64},
		{Name: "name", DataType: types.TypeString},
	})
	node := smgr.RelFileNode{Tablespace: "base", Node: 500}
	require.NoError(t, store.Create(node))
	return NewRelation(500, "items", node, desc, store, log), xact.NewManager(log)
}

func TestBulkInsertAndScan(t *testing.T) {
	rel, m := testRelation(t)
	txn := m.Begin(context.Background())

	bi := NewBulkInsertState()
	opts := InsertOptions{SkipFSM: true, Frozen: true, SkipWAL: true}
	const n = 1000
	for i := 0; i < n; i++ {
		row := tuple.NewTuple([]types.Value{int64(i), fmt.Sprintf("row-%d", i)})
		require.NoError(t, rel.Insert(0, row, 0, opts, bi))
	}
	require.NoError(t, rel.FlushBulk(bi))
	require.NoError(t, rel.Sync())

	nblocks, err := rel.Nblocks()
	require.NoError(t, err)
	require.Greater(t, nblocks, uint32(1), "1000 rows should span pages")

	scan, err := rel.BeginScan(txn, txn.Snapshot())
	require.NoError(t, err)
	defer scan.Close()

	var got int
	for {
		tup, err := scan.Next()
		require.NoError(t, err)
		if tup == nil {
			break
		}
		require.True(t, tup.Frozen())
		require.Equal(t, int64(got), tup.Values[0])
		got++
	}
	require.Equal(t, n, got)
}

func TestInsertStampsVisibilityHeader(t *testing.T) {
	rel, m := testRelation(t)
	txn := m.Begin(context.Background())

	bi := NewBulkInsertState()
	row := tuple.NewTuple([]types.Value{int64(1), "a"})
	require.NoError(t, rel.Insert(txn.Xid, row, 3, InsertOptions{}, bi))
	require.NoError(t, rel.FlushBulk(bi))

	scan, err := rel.BeginScan(txn, nil)
	require.NoError(t, err)
	defer scan.Close()
	tup, err := scan.Next()
	require.NoError(t, err)
	require.NotNil(t, tup)
	require.Equal(t, txn.Xid, tup.Xmin)
	require.Equal(t, types.Cid(3), tup.Cmin)
	require.False(t, tup.Frozen())
}

func TestScanRegistersWithTransaction(t *testing.T) {
	rel, m := testRelation(t)
	txn := m.Begin(context.Background())

	scan, err := rel.BeginScan(txn, txn.Snapshot())
	require.NoError(t, err)
	require.Error(t, txn.CheckTableNotInUse(rel.Oid, "REFRESH"))

	scan.Close()
	require.NoError(t, txn.CheckTableNotInUse(rel.Oid, "REFRESH"))
}

func TestTargetBlockTracksBulkLoad(t *testing.T) {
	rel, m := testRelation(t)
	_ = m
	require.Equal(t, InvalidBlock, rel.TargetBlock())

	bi := NewBulkInsertState()
	row := tuple.NewTuple([]types.Value{int64(1), "a"})
	require.NoError(t, rel.Insert(0, row, 0, InsertOptions{SkipFSM: true, SkipWAL: true, Frozen: true}, bi))
	require.NotEqual(t, InvalidBlock, rel.TargetBlock())
	require.NoError(t, rel.FlushBulk(bi))
}

func TestWalLoggedInsertAppendsRecords(t *testing.T) {
	rel, m := testRelation(t)
	txn := m.Begin(context.Background())

	bi := NewBulkInsertState()
	row := tuple.NewTuple([]types.Value{int64(1), "a"})
	require.NoError(t, rel.Insert(txn.Xid, row, 0, InsertOptions{}, bi))
	require.NoError(t, rel.FlushBulk(bi))
	require.NoError(t, m.Commit(txn))

	records, err := rel.log.ReadAll()
	require.NoError(t, err)

	var inserts, commits int
	for _, rec := range records {
		switch rec.Type {
		case wal.RecInsert:
			inserts++
			require.Equal(t, rel.Node, rec.Node)
		case wal.RecCommit:
			commits++
		}
	}
	require.Equal(t, 1, inserts)
	require.Equal(t, 1, commits)
}
