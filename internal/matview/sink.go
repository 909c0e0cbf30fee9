package matview

import (
	"github.com/harshithgowdakt/heapdb/internal/errkind"
	"github.com/harshithgowdakt/heapdb/internal/heap"
	"github.com/harshithgowdakt/heapdb/internal/tuple"
	"github.com/harshithgowdakt/heapdb/internal/types"
	"github.com/harshithgowdakt/heapdb/internal/xact"
)

// transientSink is the tuple sink of a refresh: it loads query output
// into a transient heap that nothing else can see yet. Because the
// heap is invisible until the storage swap commits, rows are written
// frozen, off the free-space path, and without WAL when bulk logging
// is not in force.
type transientSink struct {
	r   *Refresher
	txn *xact.Transaction
	oid types.Oid

	rel       *heap.Relation
	cid       types.Cid
	opts      heap.InsertOptions
	bi        *heap.BulkInsertState
	destroyed bool
}

func newTransientSink(r *Refresher, txn *xact.Transaction, oid types.Oid) *transientSink {
	return &transientSink{r: r, txn: txn, oid: oid}
}

func (s *transientSink) Open(desc *tuple.Desc) error {
	rel, err := s.r.cat.OpenRelation(s.oid)
	if err != nil {
		return err
	}
	if !desc.Equal(rel.Desc) {
		return errkind.New(errkind.KindInternal,
			"query result shape does not match %q", rel.Name)
	}
	s.rel = rel
	s.cid = s.txn.CurrentCommandID(true)
	s.opts = heap.InsertOptions{
		SkipFSM: true,
		Frozen:  true,
		SkipWAL: !s.r.log.BulkLoggingRequired(),
	}
	s.bi = heap.NewBulkInsertState()

	// A cached target block would mean someone already wrote through
	// this handle, which the WAL-skip path cannot tolerate.
	if rel.TargetBlock() != heap.InvalidBlock {
		return errkind.New(errkind.KindInternal,
			"transient heap %q already has a target block", rel.Name)
	}

	return s.r.SetPopulated(s.oid)
}

func (s *transientSink) Receive(t *tuple.Tuple) error {
	// The executor may reuse the tuple's backing memory; keep our own
	// copy before it goes to storage.
	return s.rel.Insert(s.txn.Xid, t.Materialize(), s.cid, s.opts, s.bi)
}

func (s *transientSink) Close() error {
	if err := s.rel.FlushBulk(s.bi); err != nil {
		return err
	}
	// Skipping WAL trades replay for an immediate flush: every written
	// page must be on stable storage before this transaction commits.
	if s.opts.SkipWAL {
		if err := s.rel.Sync(); err != nil {
			return errkind.Wrap(errkind.KindDurabilityUnmet, err,
				"syncing "+s.rel.Name+" after WAL-skipped load")
		}
	}
	return nil
}

func (s *transientSink) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.rel = nil
	s.bi = nil
}
