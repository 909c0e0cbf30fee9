package heap

import (
	"fmt"

	"github.com/harshithgowdakt/heapdb/internal/page"
	"github.com/harshithgowdakt/heapdb/internal/tuple"
)

// ItemPointer locates one stored tuple.
type ItemPointer struct {
	Block uint32
	Slot  int
}

// RawScanner iterates every stored tuple with no visibility filtering
// and no transaction bookkeeping. Used by index rebuilds, which run
// under an exclusive lock on a heap containing only frozen rows.
type RawScanner struct {
	rel     *Relation
	nblocks uint32
	block   uint32
	slot    int
	pg      page.Page
}

// ScanAll opens a raw scan over every tuple in the relation.
func (r *Relation) ScanAll() (*RawScanner, error) {
	nblocks, err := r.store.Nblocks(r.Node)
	if err != nil {
		return nil, fmt.Errorf("sizing %s: %w", r.Name, err)
	}
	return &RawScanner{rel: r, nblocks: nblocks}, nil
}

// Next returns the next tuple and its location, or nil at the end.
func (s *RawScanner) Next() (*tuple.Tuple, ItemPointer, error) {
	for {
		if s.pg == nil {
			if s.block >= s.nblocks {
				return nil, ItemPointer{}, nil
			}
			pg, err := s.rel.store.Read(s.rel.Node, s.block)
			if err != nil {
				return nil, ItemPointer{}, err
			}
			if !pg.VerifyChecksum(s.block) {
				return nil, ItemPointer{}, fmt.Errorf("checksum failure in %s block %d", s.rel.Name, s.block)
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
		ip := ItemPointer{Block: s.block, Slot: s.slot}
		s.slot++
		if err != nil {
			return nil, ItemPointer{}, err
		}
		t, err := tuple.Decode(item, s.rel.Desc)
		if err != nil {
			return nil, ItemPointer{}, fmt.Errorf("decoding tuple in %s block %d: %w", s.rel.Name, s.block, err)
		}
		return t, ip, nil
	}
}
