package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := Open(t.TempDir(), false, nil)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func mustExec(t *testing.T, eng *Engine, sql string) *Result {
	t.Helper()
	res, err := eng.Execute(context.Background(), sql)
	require.NoError(t, err, "sql: %s", sql)
	return res
}

func TestCreateInsertSelect(t *testing.T) {
	eng := testEngine(t)
	mustExec(t, eng, "CREATE TABLE orders (id int64, customer string, total float64)")
	res := mustExec(t, eng, "INSERT INTO orders VALUES (1, 'acme', 50.0), (2, 'globex', 150.0)")
	require.Contains(t, res.Message, "2 rows")

	res = mustExec(t, eng, "SELECT id, customer FROM orders WHERE total > 100")
	require.Equal(t, []string{"id", "customer"}, res.Columns)
	require.Len(t, res.Rows, 1)
	require.Equal(t, int64(2), res.Rows[0][0])
	require.Equal(t, "globex", res.Rows[0][1])
}

func TestMaterializedViewLifecycle(t *testing.T) {
	eng := testEngine(t)
	mustExec(t, eng, "CREATE TABLE orders (id int64, total float64)")
	mustExec(t, eng, "INSERT INTO orders VALUES (1, 50.0), (2, 150.0), (3, 250.0)")

	mustExec(t, eng, "CREATE MATERIALIZED VIEW big_orders AS SELECT id, total FROM orders WHERE total > 100")

	res := mustExec(t, eng, "SELECT id FROM big_orders")
	require.Len(t, res.Rows, 2)

	// New base rows appear only after a refresh.
	mustExec(t, eng, "INSERT INTO orders VALUES (4, 400.0)")
	res = mustExec(t, eng, "SELECT id FROM big_orders")
	require.Len(t, res.Rows, 2)

	res = mustExec(t, eng, "REFRESH MATERIALIZED VIEW big_orders")
	require.Equal(t, "REFRESH 3", res.Message)
	res = mustExec(t, eng, "SELECT id FROM big_orders")
	require.Len(t, res.Rows, 3)
}

func TestWithNoDataViewIsNotScannable(t *testing.T) {
	eng := testEngine(t)
	mustExec(t, eng, "CREATE TABLE orders (id int64, total float64)")
	mustExec(t, eng, "INSERT INTO orders VALUES (1, 150.0)")
	mustExec(t, eng, "CREATE MATERIALIZED VIEW mv AS SELECT * FROM orders WITH NO DATA")

	_, err := eng.Execute(context.Background(), "SELECT * FROM mv")
	require.Error(t, err)
	require.Contains(t, err.Error(), "has not been populated")

	res := mustExec(t, eng, "REFRESH MATERIALIZED VIEW mv")
	require.Equal(t, "REFRESH 1", res.Message)
	res = mustExec(t, eng, "SELECT * FROM mv")
	require.Len(t, res.Rows, 1)

	// Discarding the data makes it unscannable again.
	res = mustExec(t, eng, "REFRESH MATERIALIZED VIEW mv WITH NO DATA")
	require.Equal(t, "REFRESH 0", res.Message)
	_, err = eng.Execute(context.Background(), "SELECT * FROM mv")
	require.Error(t, err)
}

func TestViewSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	eng, err := Open(dir, false, nil)
	require.NoError(t, err)
	mustExec(t, eng, "CREATE TABLE orders (id int64, total float64)")
	mustExec(t, eng, "INSERT INTO orders VALUES (1, 150.0), (2, 250.0)")
	mustExec(t, eng, "CREATE MATERIALIZED VIEW mv AS SELECT id FROM orders WHERE total > 200")
	require.NoError(t, eng.Close())

	eng, err = Open(dir, false, nil)
	require.NoError(t, err)
	defer eng.Close()

	// Contents and the stored defining query both survive.
	res := mustExec(t, eng, "SELECT id FROM mv")
	require.Len(t, res.Rows, 1)
	require.Equal(t, int64(2), res.Rows[0][0])

	mustExec(t, eng, "INSERT INTO orders VALUES (3, 300.0)")
	res = mustExec(t, eng, "REFRESH MATERIALIZED VIEW mv")
	require.Equal(t, "REFRESH 2", res.Message)
}

func TestInsertIntoMatViewRejected(t *testing.T) {
	eng := testEngine(t)
	mustExec(t, eng, "CREATE TABLE orders (id int64, total float64)")
	mustExec(t, eng, "CREATE MATERIALIZED VIEW mv AS SELECT * FROM orders")

	_, err := eng.Execute(context.Background(), "INSERT INTO mv VALUES (1, 2.0)")
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot change materialized view")
}

func TestRefreshRequiresOwner(t *testing.T) {
	eng := testEngine(t)
	mustExec(t, eng, "CREATE TABLE orders (id int64, total float64)")
	mustExec(t, eng, "CREATE MATERIALIZED VIEW mv AS SELECT * FROM orders")

	_, err := eng.ExecuteAs(context.Background(), "REFRESH MATERIALIZED VIEW mv", "mallory")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must be owner")
}

func TestDropMaterializedView(t *testing.T) {
	eng := testEngine(t)
	mustExec(t, eng, "CREATE TABLE orders (id int64, total float64)")
	mustExec(t, eng, "CREATE MATERIALIZED VIEW mv AS SELECT * FROM orders")

	// DROP TABLE refuses a view; DROP MATERIALIZED VIEW takes it.
	_, err := eng.Execute(context.Background(), "DROP TABLE mv")
	require.Error(t, err)
	mustExec(t, eng, "DROP MATERIALIZED VIEW mv")

	res := mustExec(t, eng, "SHOW TABLES")
	require.Len(t, res.Rows, 1)
	require.Equal(t, "orders", res.Rows[0][0])
}

func TestCreateIndexAndRefreshRebuilds(t *testing.T) {
	eng := testEngine(t)
	mustExec(t, eng, "CREATE TABLE orders (id int64, total float64)")
	mustExec(t, eng, "INSERT INTO orders VALUES (1, 150.0), (2, 250.0)")
	mustExec(t, eng, "CREATE MATERIALIZED VIEW mv AS SELECT id FROM orders WHERE total > 100")
	mustExec(t, eng, "CREATE INDEX mv_id ON mv (id)")

	mv, ok := eng.Catalog().Lookup("mv")
	require.True(t, ok)
	require.Len(t, mv.Indexes, 1)
	require.Equal(t, 2, mv.Indexes[0].Len())

	mustExec(t, eng, "INSERT INTO orders VALUES (3, 350.0)")
	mustExec(t, eng, "REFRESH MATERIALIZED VIEW mv")
	require.Equal(t, 3, mv.Indexes[0].Len(), "indexes are rebuilt against the new storage")
}

func TestFailedStatementRollsBack(t *testing.T) {
	eng := testEngine(t)
	mustExec(t, eng, "CREATE TABLE orders (id int64, total float64)")

	// The second row is malformed; the first must not stick.
	_, err := eng.Execute(context.Background(), "INSERT INTO orders VALUES (1, 10.0), (2)")
	require.Error(t, err)

	res := mustExec(t, eng, "SELECT * FROM orders")
	require.Len(t, res.Rows, 0)
}
