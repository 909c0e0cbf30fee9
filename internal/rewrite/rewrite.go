// Package rewrite holds the rewritten query tree stored in view rules
// and the second rewrite pass performed at refresh time.
package rewrite

import (
	"github.com/harshithgowdakt/heapdb/internal/parser"
)

// RangeTblEntry is one entry in a query's range table.
type RangeTblEntry struct {
	// Alias is the name the query text refers to the entry by. View
	// expansion injects placeholder entries aliased "new" and "old".
	Alias string
	// RelName is the referenced relation.
	RelName string
	// IsResultRel marks the entry as permissible even when the
	// referenced relation is currently unpopulated.
	IsResultRel bool
}

// TargetEntry is one output column of a query.
type TargetEntry struct {
	Name string
	Expr parser.Expression
}

// Query is a rewritten query tree: the single form every view rule
// stores. The range table keeps the two synthetic placeholder entries
// ("new" then "old") in the first two positions; consumers that need
// to flag them locate them by position.
type Query struct {
	RangeTable []*RangeTblEntry
	// Source is the relation the query scans.
	Source string
	Targets []TargetEntry
	Where   parser.Expression
}

// MakeViewQuery builds the stored form of a view's defining query,
// with the synthetic new/old placeholders prepended the way view
// expansion leaves them.
func MakeViewQuery(viewName, source string, targets []TargetEntry, where parser.Expression) *Query {
	return &Query{
		RangeTable: []*RangeTblEntry{
			{Alias: "new", RelName: viewName},
			{Alias: "old", RelName: viewName},
			{Alias: source, RelName: source},
		},
		Source:  source,
		Targets: targets,
		Where:   where,
	}
}

// Copy returns a copy whose range table may be mutated without
// affecting the stored rule. Expressions are shared; they are not
// modified after construction.
func (q *Query) Copy() *Query {
	rt := make([]*RangeTblEntry, len(q.RangeTable))
	for i, rte := range q.RangeTable {
		c := *rte
		rt[i] = &c
	}
	targets := make([]TargetEntry, len(q.Targets))
	copy(targets, q.Targets)
	return &Query{
		RangeTable: rt,
		Source:     q.Source,
		Targets:    targets,
		Where:      q.Where,
	}
}

// Rewrite runs the rewrite pass over an already-stored query tree. A
// stored SELECT always rewrites to exactly one query; callers treat
// any other result count as a violated invariant.
func Rewrite(q *Query) []*Query {
	return []*Query{q.Copy()}
}
