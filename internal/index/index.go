// Package index provides in-memory ordered secondary indexes. Indexes
// are rebuilt wholesale from their heap after bulk operations rather
// than maintained incrementally during them.
package index

import (
	"fmt"

	"github.com/google/btree"

	"github.com/harshithgowdakt/heapdb/internal/heap"
	"github.com/harshithgowdakt/heapdb/internal/types"
)

// Tid locates a tuple within a heap file.
type Tid struct {
	Block uint32
	Slot  int
}

type entry struct {
	key types.Value
	dt  types.DataType
	tid Tid
}

func entryLess(a, b entry) bool {
	if c := types.CompareValues(a.dt, a.key, b.key); c != 0 {
		return c < 0
	}
	if a.tid.Block != b.tid.Block {
		return a.tid.Block < b.tid.Block
	}
	return a.tid.Slot < b.tid.Slot
}

// Index is an ordered index over one column of a relation.
type Index struct {
	Name   string
	Column string

	dt     types.DataType
	colIdx int
	tree   *btree.BTreeG[entry]
}

// New creates an empty index over the named column.
func New(name, column string, colIdx int, dt types.DataType) *Index {
	return &Index{
		Name:   name,
		Column: column,
		dt:     dt,
		colIdx: colIdx,
		tree:   btree.NewG(16, entryLess),
	}
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int { return ix.tree.Len() }

// Insert adds one entry.
func (ix *Index) Insert(key types.Value, tid Tid) {
	ix.tree.ReplaceOrInsert(entry{key: key, dt: ix.dt, tid: tid})
}

// Lookup returns the heap locations of all entries equal to key.
func (ix *Index) Lookup(key types.Value) []Tid {
	var tids []Tid
	pivot := entry{key: key, dt: ix.dt}
	ix.tree.AscendGreaterOrEqual(pivot, func(e entry) bool {
		if types.CompareValues(ix.dt, e.key, key) != 0 {
			return false
		}
		tids = append(tids, e.tid)
		return true
	})
	return tids
}

// Rebuild discards the index contents and refills it from a full scan
// of rel. All stored tuples are indexed regardless of visibility; the
// heap is expected to contain only committed or frozen rows.
func (ix *Index) Rebuild(rel *heap.Relation) error {
	ix.tree.Clear(false)

	it, err := rel.ScanAll()
	if err != nil {
		return fmt.Errorf("rebuilding index %s: %w", ix.Name, err)
	}
	for {
		t, tid, err := it.Next()
		if err != nil {
			return fmt.Errorf("rebuilding index %s: %w", ix.Name, err)
		}
		if t == nil {
			break
		}
		if ix.colIdx >= len(t.Values) {
			return fmt.Errorf("index %s: column %s missing from tuple", ix.Name, ix.Column)
		}
		ix.Insert(t.Values[ix.colIdx], Tid{Block: tid.Block, Slot: tid.Slot})
	}
	return nil
}
