package xact

import (
	"github.com/harshithgowdakt/heapdb/internal/tuple"
	"github.com/harshithgowdakt/heapdb/internal/types"
)

// Snapshot is the visibility boundary for one query: which transaction
// it belongs to, and the command-id fence within that transaction.
type Snapshot struct {
	Xid    types.Xid
	CurCid types.Cid

	// isCommitted answers whether a foreign xid committed.
	isCommitted func(types.Xid) bool
}

// Visible reports whether a stored tuple is visible under the snapshot.
func (s *Snapshot) Visible(t *tuple.Tuple) bool {
	// Frozen rows are visible to everyone, always.
	if t.Frozen() || t.Xmin == types.FrozenXid {
		return true
	}
	if t.Xmin == s.Xid {
		// Own writes: visible once an earlier command wrote them.
		return t.Cmin < s.CurCid
	}
	return s.isCommitted != nil && s.isCommitted(t.Xmin)
}

// Copy returns a snapshot with the same fence, safe to mutate.
func (s *Snapshot) Copy() *Snapshot {
	c := *s
	return &c
}
