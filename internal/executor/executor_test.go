package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/heapdb/internal/catalog"
	"github.com/harshithgowdakt/heapdb/internal/heap"
	"github.com/harshithgowdakt/heapdb/internal/parser"
	"github.com/harshithgowdakt/heapdb/internal/rewrite"
	"github.com/harshithgowdakt/heapdb/internal/smgr"
	"github.com/harshithgowdakt/heapdb/internal/tuple"
	"github.com/harshithgowdakt/heapdb/internal/types"
	"github.com/harshithgowdakt/heapdb/internal/wal"
	"github.com/harshithgowdakt/heapdb/internal/xact"
)

type env struct {
	cat  *catalog.Catalog
	xmgr *xact.Manager
	exec *Executor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	store, err := smgr.NewDiskManager(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	log, err := wal.Open(dir, false)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	cat, err := catalog.Open(dir, store, log, nil)
	require.NoError(t, err)
	return &env{cat: cat, xmgr: xact.NewManager(log), exec: New(cat)}
}

func (e *env) seedOrders(t *testing.T) {
	t.Helper()
	desc := tuple.NewDesc([]tuple.ColumnDef{
		{Name: "id", DataType: types.TypeInt64},
		{Name: "customer", DataType: types.TypeString},
		{Name: "total", DataType: types.TypeFloat64},
	})
	txn := e.xmgr.Begin(context.Background())
	rel, err := e.cat.CreateTable(txn, "orders", "alice", desc)
	require.NoError(t, err)

	h, err := e.cat.OpenRelation(rel.Oid)
	require.NoError(t, err)
	cid := txn.CurrentCommandID(true)
	bi := heap.NewBulkInsertState()
	rows := []struct {
		id       int64
		customer string
		total    float64
	}{
		{1, "acme", 50},
		{2, "globex", 150},
		{3, "initech", 250},
	}
	for _, r := range rows {
		tup := tuple.NewTuple([]types.Value{r.id, r.customer, r.total})
		require.NoError(t, h.Insert(txn.Xid, tup, cid, heap.InsertOptions{}, bi))
	}
	require.NoError(t, h.FlushBulk(bi))
	require.NoError(t, e.xmgr.Commit(txn))
}

func mustParseSelect(t *testing.T, sql string) *rewrite.Query {
	t.Helper()
	stmt, err := parser.ParseSQL(sql)
	require.NoError(t, err)
	sel := stmt.(*parser.SelectStmt)
	targets := make([]rewrite.TargetEntry, 0, len(sel.Columns))
	for _, se := range sel.Columns {
		targets = append(targets, rewrite.TargetEntry{Name: se.Alias, Expr: se.Expr})
	}
	return &rewrite.Query{
		RangeTable: []*rewrite.RangeTblEntry{{Alias: sel.From, RelName: sel.From}},
		Source:     sel.From,
		Targets:    targets,
		Where:      sel.Where,
	}
}

func (e *env) run(t *testing.T, sql string) (*tuple.Desc, [][]types.Value, uint64) {
	t.Helper()
	txn := e.xmgr.Begin(context.Background())
	defer e.xmgr.Commit(txn)
	sink := &CollectSink{}
	n, err := e.exec.Run(txn, mustParseSelect(t, sql), txn.Snapshot(), sink)
	require.NoError(t, err)
	return sink.Desc, sink.Rows, n
}

func TestRunFilterAndProject(t *testing.T) {
	e := newEnv(t)
	e.seedOrders(t)

	desc, rows, n := e.run(t, "SELECT customer FROM orders WHERE total > 100")
	require.Equal(t, uint64(2), n)
	require.Equal(t, []string{"customer"}, desc.ColumnNames())
	require.Equal(t, "globex", rows[0][0])
	require.Equal(t, "initech", rows[1][0])
}

func TestRunStarExpansion(t *testing.T) {
	e := newEnv(t)
	e.seedOrders(t)

	desc, rows, _ := e.run(t, "SELECT * FROM orders")
	require.Equal(t, []string{"id", "customer", "total"}, desc.ColumnNames())
	require.Len(t, rows, 3)
	require.Len(t, rows[0], 3)
}

func TestRunComputedTargets(t *testing.T) {
	e := newEnv(t)
	e.seedOrders(t)

	desc, rows, _ := e.run(t, "SELECT id, total * 2 AS doubled FROM orders WHERE id = 1")
	require.Equal(t, []string{"id", "doubled"}, desc.ColumnNames())
	require.Len(t, rows, 1)
	require.Equal(t, float64(100), rows[0][1])
}

func TestRunBooleanConnectives(t *testing.T) {
	e := newEnv(t)
	e.seedOrders(t)

	_, rows, _ := e.run(t, "SELECT id FROM orders WHERE total > 100 AND NOT id = 3")
	require.Len(t, rows, 1)
	require.Equal(t, int64(2), rows[0][0])

	_, rows, _ = e.run(t, "SELECT id FROM orders WHERE id = 1 OR id = 3")
	require.Len(t, rows, 2)
}

func TestRunUnknownRelation(t *testing.T) {
	e := newEnv(t)
	txn := e.xmgr.Begin(context.Background())
	defer e.xmgr.Abort(txn)
	_, err := e.exec.Run(txn, mustParseSelect(t, "SELECT id FROM nowhere"), txn.Snapshot(), &CollectSink{})
	require.Error(t, err)
}

func TestRunNonBooleanWhere(t *testing.T) {
	e := newEnv(t)
	e.seedOrders(t)
	txn := e.xmgr.Begin(context.Background())
	defer e.xmgr.Abort(txn)
	_, err := e.exec.Run(txn, mustParseSelect(t, "SELECT id FROM orders WHERE total + 1"), txn.Snapshot(), &CollectSink{})
	require.Error(t, err)
}

func TestDescribeInfersTypes(t *testing.T) {
	e := newEnv(t)
	e.seedOrders(t)

	desc, err := e.exec.Describe(mustParseSelect(t, "SELECT id, total > 100 AS big, total / 2 AS half FROM orders"))
	require.NoError(t, err)
	require.Equal(t, types.TypeInt64, desc.Columns[0].DataType)
	require.Equal(t, types.TypeBool, desc.Columns[1].DataType)
	require.Equal(t, types.TypeFloat64, desc.Columns[2].DataType)
}
