// Package executor runs rewritten query trees against heap storage and
// streams the result rows into a tuple sink.
package executor

import (
	"fmt"

	"github.com/harshithgowdakt/heapdb/internal/catalog"
	"github.com/harshithgowdakt/heapdb/internal/parser"
	"github.com/harshithgowdakt/heapdb/internal/rewrite"
	"github.com/harshithgowdakt/heapdb/internal/tuple"
	"github.com/harshithgowdakt/heapdb/internal/types"
	"github.com/harshithgowdakt/heapdb/internal/xact"
)

// TupleSink receives the rows a query produces. The caller drives the
// four phases in order: Open once, Receive per row, Close once, and
// Destroy exactly once on every path, success or failure.
type TupleSink interface {
	Open(desc *tuple.Desc) error
	Receive(t *tuple.Tuple) error
	Close() error
	Destroy()
}

// Executor plans and runs queries against the catalog's relations.
type Executor struct {
	cat *catalog.Catalog
}

func New(cat *catalog.Catalog) *Executor {
	return &Executor{cat: cat}
}

// Run executes q under the given snapshot, sending every result row to
// sink. Returns the number of rows sent. Run calls sink.Open and
// sink.Close but never sink.Destroy; ending the sink's lifetime is the
// creator's job.
func (e *Executor) Run(txn *xact.Transaction, q *rewrite.Query, snap *xact.Snapshot, sink TupleSink) (uint64, error) {
	src, ok := e.cat.Lookup(q.Source)
	if !ok {
		return 0, fmt.Errorf("relation %q does not exist", q.Source)
	}
	if err := txn.LockTable(src.Oid, xact.AccessShare); err != nil {
		return 0, err
	}
	if src.Kind == catalog.KindMatView && !src.Populated && !resultRel(q, q.Source) {
		return 0, fmt.Errorf("materialized view %q has not been populated: use REFRESH MATERIALIZED VIEW", q.Source)
	}

	desc, err := outputDesc(q.Targets, src.Desc)
	if err != nil {
		return 0, err
	}
	if err := sink.Open(desc); err != nil {
		return 0, err
	}

	h, err := e.cat.OpenRelation(src.Oid)
	if err != nil {
		return 0, err
	}
	scan, err := h.BeginScan(txn, snap)
	if err != nil {
		return 0, err
	}
	defer scan.Close()

	var count uint64
	for {
		if err := txn.CheckForInterrupts(); err != nil {
			return count, err
		}
		t, err := scan.Next()
		if err != nil {
			return count, err
		}
		if t == nil {
			break
		}
		if q.Where != nil {
			keep, err := evalExpr(q.Where, src.Desc, t.Values)
			if err != nil {
				return count, err
			}
			kb, ok := keep.(bool)
			if !ok {
				return count, fmt.Errorf("argument of WHERE must be boolean")
			}
			if !kb {
				continue
			}
		}

		out, err := projectRow(q.Targets, src.Desc, t.Values)
		if err != nil {
			return count, err
		}
		if err := sink.Receive(tuple.NewTuple(out)); err != nil {
			return count, err
		}
		count++
	}

	if err := sink.Close(); err != nil {
		return count, err
	}
	return count, nil
}

// Describe returns the row shape q would produce, without running it.
func (e *Executor) Describe(q *rewrite.Query) (*tuple.Desc, error) {
	src, ok := e.cat.Lookup(q.Source)
	if !ok {
		return nil, fmt.Errorf("relation %q does not exist", q.Source)
	}
	return outputDesc(q.Targets, src.Desc)
}

func projectRow(targets []rewrite.TargetEntry, desc *tuple.Desc, row []types.Value) ([]types.Value, error) {
	out := make([]types.Value, 0, len(targets))
	for _, te := range targets {
		if _, ok := te.Expr.(*parser.StarExpr); ok {
			out = append(out, row...)
			continue
		}
		v, err := evalExpr(te.Expr, desc, row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// resultRel reports whether name appears in q's range table flagged as
// a result relation.
func resultRel(q *rewrite.Query, name string) bool {
	for _, rte := range q.RangeTable {
		if rte.RelName == name && rte.IsResultRel {
			return true
		}
	}
	return false
}

// CollectSink accumulates rows in memory. It backs plain SELECT
// statements, where the result set goes to the client.
type CollectSink struct {
	Desc *tuple.Desc
	Rows [][]types.Value
}

func (s *CollectSink) Open(desc *tuple.Desc) error {
	s.Desc = desc
	return nil
}

func (s *CollectSink) Receive(t *tuple.Tuple) error {
	s.Rows = append(s.Rows, t.Values)
	return nil
}

func (s *CollectSink) Close() error { return nil }
func (s *CollectSink) Destroy()     {}
