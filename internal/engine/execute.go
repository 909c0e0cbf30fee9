package engine

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/harshithgowdakt/heapdb/internal/catalog"
	"github.com/harshithgowdakt/heapdb/internal/errkind"
	"github.com/harshithgowdakt/heapdb/internal/executor"
	"github.com/harshithgowdakt/heapdb/internal/heap"
	"github.com/harshithgowdakt/heapdb/internal/parser"
	"github.com/harshithgowdakt/heapdb/internal/rewrite"
	"github.com/harshithgowdakt/heapdb/internal/tuple"
	"github.com/harshithgowdakt/heapdb/internal/types"
	"github.com/harshithgowdakt/heapdb/internal/xact"
)

func (e *Engine) dispatch(txn *xact.Transaction, stmt parser.Statement, user string) (*Result, error) {
	switch s := stmt.(type) {
	case *parser.CreateTableStmt:
		return e.executeCreateTable(txn, s, user)
	case *parser.CreateMaterializedViewStmt:
		return e.executeCreateMatView(txn, s, user)
	case *parser.CreateIndexStmt:
		return e.executeCreateIndex(txn, s)
	case *parser.RefreshMatViewStmt:
		return e.executeRefresh(txn, s, user)
	case *parser.InsertStmt:
		return e.executeInsert(txn, s)
	case *parser.SelectStmt:
		return e.executeSelect(txn, s)
	case *parser.DropTableStmt:
		return e.executeDrop(txn, s, user)
	case *parser.ShowTablesStmt:
		return e.executeShowTables()
	default:
		return nil, fmt.Errorf("unsupported statement type: %T", stmt)
	}
}

func (e *Engine) executeCreateTable(txn *xact.Transaction, stmt *parser.CreateTableStmt, user string) (*Result, error) {
	var cols []tuple.ColumnDef
	for _, col := range stmt.Columns {
		dt, err := types.ParseDataType(col.TypeName)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		cols = append(cols, tuple.ColumnDef{Name: col.Name, DataType: dt})
	}

	if _, exists := e.cat.Lookup(stmt.TableName); exists && stmt.IfNotExists {
		return &Result{Message: "OK"}, nil
	}
	if _, err := e.cat.CreateTable(txn, stmt.TableName, user, tuple.NewDesc(cols)); err != nil {
		return nil, err
	}
	return &Result{Message: "OK"}, nil
}

func (e *Engine) executeCreateMatView(txn *xact.Transaction, stmt *parser.CreateMaterializedViewStmt, user string) (*Result, error) {
	if _, exists := e.cat.Lookup(stmt.ViewName); exists && stmt.IfNotExists {
		return &Result{Message: "OK"}, nil
	}

	query := rewrite.MakeViewQuery(stmt.ViewName, stmt.Select.From, targetEntries(stmt.Select), stmt.Select.Where)
	desc, err := e.exec.Describe(query)
	if err != nil {
		return nil, err
	}

	sql := parser.SelectToSQL(stmt.Select)
	if _, err := e.cat.CreateMaterializedView(txn, stmt.ViewName, user, desc, sql, query); err != nil {
		return nil, err
	}

	// WITH NO DATA leaves the view unpopulated; otherwise loading the
	// initial contents is a refresh.
	if !stmt.WithNoData {
		refresh := &parser.RefreshMatViewStmt{ViewName: stmt.ViewName}
		if _, err := e.refresh.ExecRefreshMatView(txn, refresh, user); err != nil {
			return nil, err
		}
	}
	return &Result{Message: "OK"}, nil
}

func (e *Engine) executeCreateIndex(txn *xact.Transaction, stmt *parser.CreateIndexStmt) (*Result, error) {
	if _, err := e.cat.ResolveAndLock(txn, stmt.TableName, xact.AccessExclusive, ""); err != nil {
		return nil, err
	}
	if err := e.cat.CreateIndex(txn, stmt.IndexName, stmt.TableName, stmt.Column); err != nil {
		return nil, err
	}
	return &Result{Message: "OK"}, nil
}

func (e *Engine) executeRefresh(txn *xact.Transaction, stmt *parser.RefreshMatViewStmt, user string) (*Result, error) {
	n, err := e.refresh.ExecRefreshMatView(txn, stmt, user)
	if err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("REFRESH %d", n)}, nil
}

func (e *Engine) executeInsert(txn *xact.Transaction, stmt *parser.InsertStmt) (*Result, error) {
	oid, err := e.cat.ResolveAndLock(txn, stmt.TableName, xact.RowExclusive, "")
	if err != nil {
		return nil, err
	}
	rel, _ := e.cat.Get(oid)
	if rel.Kind == catalog.KindMatView {
		return nil, errkind.New(errkind.KindWrongKind, "cannot change materialized view %q", stmt.TableName)
	}

	colNames := stmt.Columns
	if len(colNames) == 0 {
		colNames = rel.Desc.ColumnNames()
	}
	colIdxs := make([]int, len(colNames))
	for i, name := range colNames {
		idx := rel.Desc.ColumnIndex(name)
		if idx < 0 {
			return nil, fmt.Errorf("column %s not found in table %s", name, stmt.TableName)
		}
		colIdxs[i] = idx
	}
	if len(colNames) != rel.Desc.NumColumns() {
		return nil, fmt.Errorf("INSERT must supply all %d columns of %s", rel.Desc.NumColumns(), stmt.TableName)
	}

	h, err := e.cat.OpenRelation(oid)
	if err != nil {
		return nil, err
	}
	cid := txn.CurrentCommandID(true)
	bi := heap.NewBulkInsertState()
	for rowIdx, row := range stmt.Values {
		if len(row) != len(colNames) {
			return nil, fmt.Errorf("row %d: expected %d values, got %d", rowIdx, len(colNames), len(row))
		}
		vals := make([]types.Value, rel.Desc.NumColumns())
		for i, expr := range row {
			def := rel.Desc.Columns[colIdxs[i]]
			v, err := convertLiteralToType(expr, def.DataType)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %s: %w", rowIdx, def.Name, err)
			}
			vals[colIdxs[i]] = v
		}
		if err := h.Insert(txn.Xid, tuple.NewTuple(vals), cid, heap.InsertOptions{}, bi); err != nil {
			return nil, err
		}
	}
	if err := h.FlushBulk(bi); err != nil {
		return nil, err
	}

	for _, ix := range rel.Indexes {
		if err := ix.Rebuild(h); err != nil {
			return nil, err
		}
	}

	return &Result{Message: fmt.Sprintf("OK. %d rows inserted.", len(stmt.Values))}, nil
}

func (e *Engine) executeSelect(txn *xact.Transaction, stmt *parser.SelectStmt) (*Result, error) {
	query := &rewrite.Query{
		RangeTable: []*rewrite.RangeTblEntry{{Alias: stmt.From, RelName: stmt.From}},
		Source:     stmt.From,
		Targets:    targetEntries(stmt),
		Where:      stmt.Where,
	}

	sink := &executor.CollectSink{}
	if _, err := e.exec.Run(txn, query, txn.ActiveSnapshot(), sink); err != nil {
		return nil, err
	}
	return &Result{Columns: sink.Desc.ColumnNames(), Rows: sink.Rows}, nil
}

func (e *Engine) executeDrop(txn *xact.Transaction, stmt *parser.DropTableStmt, user string) (*Result, error) {
	if _, exists := e.cat.Lookup(stmt.TableName); !exists && stmt.IfExists {
		return &Result{Message: "OK"}, nil
	}
	oid, err := e.cat.ResolveAndLock(txn, stmt.TableName, xact.AccessExclusive, user)
	if err != nil {
		return nil, err
	}
	if err := txn.CheckTableNotInUse(oid, "DROP"); err != nil {
		return nil, err
	}
	if err := e.cat.DropRelation(txn, stmt.TableName, stmt.MatView); err != nil {
		return nil, err
	}
	return &Result{Message: "OK"}, nil
}

func (e *Engine) executeShowTables() (*Result, error) {
	names := e.cat.RelationNames()
	sort.Strings(names)

	rows := make([][]types.Value, len(names))
	for i, n := range names {
		rows[i] = []types.Value{n}
	}
	return &Result{Columns: []string{"name"}, Rows: rows}, nil
}

// convertLiteralToType converts a literal expression to a typed value.
func convertLiteralToType(expr parser.Expression, dt types.DataType) (types.Value, error) {
	lit, ok := expr.(*parser.LiteralExpr)
	if !ok {
		if unary, ok := expr.(*parser.UnaryExpr); ok && unary.Op == "-" {
			inner, err := convertLiteralToType(unary.Expr, dt)
			if err != nil {
				return nil, err
			}
			return negateValue(inner, dt)
		}
		return nil, fmt.Errorf("expected literal value, got %T", expr)
	}

	switch dt {
	case types.TypeBool:
		b, ok := lit.Value.(bool)
		if !ok {
			return nil, fmt.Errorf("cannot convert %T to bool", lit.Value)
		}
		return b, nil
	case types.TypeInt32:
		n, err := toInt64FromLiteral(lit.Value)
		if err != nil {
			return nil, err
		}
		return int32(n), nil
	case types.TypeInt64:
		return toInt64FromLiteral(lit.Value)
	case types.TypeFloat64:
		return toFloat64FromLiteral(lit.Value)
	case types.TypeString:
		return fmt.Sprintf("%v", lit.Value), nil
	default:
		return nil, fmt.Errorf("unsupported type conversion for %s", dt.Name())
	}
}

func toInt64FromLiteral(v interface{}) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case float64:
		return int64(val), nil
	case string:
		return strconv.ParseInt(val, 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", v)
	}
}

func toFloat64FromLiteral(v interface{}) (float64, error) {
	switch val := v.(type) {
	case int64:
		return float64(val), nil
	case float64:
		return val, nil
	case string:
		return strconv.ParseFloat(val, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}

func negateValue(v types.Value, dt types.DataType) (types.Value, error) {
	switch dt {
	case types.TypeInt32:
		return -v.(int32), nil
	case types.TypeInt64:
		return -v.(int64), nil
	case types.TypeFloat64:
		return -v.(float64), nil
	default:
		return nil, fmt.Errorf("cannot negate %s type", dt.Name())
	}
}
