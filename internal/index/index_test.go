package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/heapdb/internal/heap"
	"github.com/harshithgowdakt/heapdb/internal/smgr"
	"github.com/harshithgowdakt/heapdb/internal/tuple"
	"github.com/harshithgowdakt/heapdb/internal/types"
	"github.com/harshithgowdakt/heapdb/internal/wal"
)

func TestInsertAndLookup(t *testing.T) {
	ix := New("orders_id", "id", 0, types.TypeInt64)
	ix.Insert(int64(5), Tid{Block: 0, Slot: 1})
	ix.Insert(int64(5), Tid{Block: 2, Slot: 0})
	ix.Insert(int64(7), Tid{Block: 0, Slot: 2})

	require.Equal(t, 3, ix.Len())
	tids := ix.Lookup(int64(5))
	require.Equal(t, []Tid{{Block: 0, Slot: 1}, {Block: 2, Slot: 0}}, tids)
	require.Empty(t, ix.Lookup(int64(6)))
}

func TestRebuildFromHeap(t *testing.T) {
	dir := t.TempDir()
	store, err := smgr.NewDiskManager(dir)
	require.NoError(t, err)
	defer store.Close()
	log, err := wal.Open(dir, false)
	require.NoError(t, err)
	defer log.Close()

	desc := tuple.NewDesc([]tuple.ColumnDef{{Name: "id", DataType: types.TypeInt64}})
	node := smgr.RelFileNode{Tablespace: "base", Node: 900}
	require.NoError(t, store.Create(node))
	rel := heap.NewRelation(900, "t", node, desc, store, log)

	bi := heap.NewBulkInsertState()
	opts := heap.InsertOptions{SkipFSM: true, Frozen: true, SkipWAL: true}
	for i := int64(0); i < 50; i++ {
		require.NoError(t, rel.Insert(0, tuple.NewTuple([]types.Value{i}), 0, opts, bi))
	}
	require.NoError(t, rel.FlushBulk(bi))

	ix := New("t_id", "id", 0, types.TypeInt64)
	require.NoError(t, ix.Rebuild(rel))
	require.Equal(t, 50, ix.Len())
	require.Len(t, ix.Lookup(int64(25)), 1)

	// Rebuild replaces, never accumulates.
	require.NoError(t, ix.Rebuild(rel))
	require.Equal(t, 50, ix.Len())
}
