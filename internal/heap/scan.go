package heap

import (
	"fmt"

	"github.com/harshithgowdakt/heapdb/internal/page"
	"github.com/harshithgowdakt/heapdb/internal/tuple"
	"github.com/harshithgowdakt/heapdb/internal/xact"
)

// Scanner iterates a relation's tuples under a snapshot. The scan is
// registered with the transaction so storage-swapping operations can
// refuse to run while it is open.
type Scanner struct {
	rel  *Relation
	txn  *xact.Transaction
	snap *xact.Snapshot

	nblocks uint32
	block   uint32
	slot    int
	pg      page.Page
	closed  bool
}

// BeginScan opens a scan over rel.
func (r *Relation) BeginScan(txn *xact.Transaction, snap *xact.Snapshot) (*Scanner, error) {
	nblocks, err := r.store.Nblocks(r.Node)
	if err != nil {
		return nil, fmt.Errorf("sizing %s: %w", r.Name, err)
	}
	txn.RegisterScan(r.Oid)
	return &Scanner{
		rel:     r,
		txn:     txn,
		snap:    snap,
		nblocks: nblocks,
	}, nil
}

// Next returns the next visible tuple, or nil at end of relation.
func (s *Scanner) Next() (*tuple.Tuple, error) {
	for {
		if s.pg == nil {
			if s.block >= s.nblocks {
				return nil, nil
			}
			pg, err := s.rel.store.Read(s.rel.Node, s.block)
			if err != nil {
				return nil, err
			}
			if !pg.VerifyChecksum(s.block) {
				return nil, fmt.Errorf("checksum failure in %s block %d", s.rel.Name, s.block)
			}
			s.pg = pg
			s.slot = 0
		}

		if s.slot >= s.pg.NumItems() {
			s.pg = nil
			s.block++
			continue
		}

		item, err := s.pg.Item(s.slot)
		s.slot++
		if err != nil {
			return nil, err
		}
		t, err := tuple.Decode(item, s.rel.Desc)
		if err != nil {
			return nil, fmt.Errorf("decoding tuple in %s block %d: %w", s.rel.Name, s.block, err)
		}
		if s.snap == nil || s.snap.Visible(t) {
			return t, nil
		}
	}
}

// Close ends the scan and unregisters it from the transaction.
func (s *Scanner) Close() {
	if !s.closed {
		s.txn.UnregisterScan(s.rel.Oid)
		s.closed = true
	}
}
