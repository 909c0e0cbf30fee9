// Package heap implements the row storage access method: tuple
// insertion through slotted pages, bulk-insert buffering, and
// snapshot-visible scans over a relation's storage file.
package heap

import (
	"fmt"

	"github.com/harshithgowdakt/heapdb/internal/page"
	"github.com/harshithgowdakt/heapdb/internal/smgr"
	"github.com/harshithgowdakt/heapdb/internal/tuple"
	"github.com/harshithgowdakt/heapdb/internal/types"
	"github.com/harshithgowdakt/heapdb/internal/wal"
)

// InvalidBlock marks "no cached target block".
const InvalidBlock = ^uint32(0)

// InsertOptions selects the insert write path.
type InsertOptions struct {
	// SkipWAL bypasses the write-ahead log. The caller then owes a
	// Sync before its transaction may commit.
	SkipWAL bool
	// SkipFSM skips free-space reuse; inserts only append.
	SkipFSM bool
	// Frozen stamps rows as visible to every transaction. Only valid
	// when loading a brand-new storage object nobody else can see.
	Frozen bool
}

// Relation is an open handle on a relation's storage. Handles are
// cheap; they carry no buffered state of their own.
type Relation struct {
	Oid      types.Oid
	Name     string
	Node     smgr.RelFileNode
	Desc     *tuple.Desc
	NeedsWAL bool

	store smgr.Manager
	log   *wal.Log

	// targBlock caches the block inserts currently fill.
	targBlock uint32
}

// NewRelation creates an open relation handle.
func NewRelation(oid types.Oid, name string, node smgr.RelFileNode, desc *tuple.Desc,
	store smgr.Manager, log *wal.Log) *Relation {
	return &Relation{
		Oid:       oid,
		Name:      name,
		Node:      node,
		Desc:      desc,
		NeedsWAL:  true,
		store:     store,
		log:       log,
		targBlock: InvalidBlock,
	}
}

// TargetBlock returns the cached insert target block, or InvalidBlock.
func (r *Relation) TargetBlock() uint32 { return r.targBlock }

// BulkInsertState buffers the page being filled so consecutive inserts
// do not re-read it. Obtain with NewBulkInsertState, release with
// (*Relation).FlushBulk.
type BulkInsertState struct {
	block uint32
	pg    page.Page
	valid bool
	dirty bool
}

// NewBulkInsertState returns an empty bulk-insert buffer.
func NewBulkInsertState() *BulkInsertState {
	return &BulkInsertState{block: InvalidBlock}
}

// Insert appends one tuple. The tuple is stamped with xid and cid
// (or frozen, per opts) before encoding. Index maintenance is the
// caller's concern.
func (r *Relation) Insert(xid types.Xid, t *tuple.Tuple, cid types.Cid,
	opts InsertOptions, bi *BulkInsertState) error {

	t.Xmin = xid
	t.Cmin = cid
	if opts.Frozen {
		t.Xmin = types.FrozenXid
		t.Infomask |= tuple.FlagFrozen
	}

	data, err := t.Encode(r.Desc)
	if err != nil {
		return fmt.Errorf("encoding tuple for %s: %w", r.Name, err)
	}
	if len(data) > page.Size-page.HeaderSize-8 {
		return fmt.Errorf("tuple too large for a page: %d bytes", len(data))
	}

	if !bi.valid || bi.pg.FreeSpace() < len(data) {
		if err := r.switchBulkPage(bi, opts); err != nil {
			return err
		}
	}

	if _, err := bi.pg.AddItem(data); err != nil {
		return fmt.Errorf("adding tuple to %s block %d: %w", r.Name, bi.block, err)
	}
	bi.dirty = true

	if !opts.SkipWAL {
		lsn, err := r.log.LogInsert(t.Xmin, r.Node, bi.block, data)
		if err != nil {
			return fmt.Errorf("logging insert: %w", err)
		}
		bi.pg.SetLsn(uint64(lsn))
	}
	return nil
}

// switchBulkPage flushes the current bulk page and starts a new one.
// Unless SkipFSM is set, the last existing page is reused when it
// still has room.
func (r *Relation) switchBulkPage(bi *BulkInsertState, opts InsertOptions) error {
	if bi.valid {
		if err := r.flushPage(bi); err != nil {
			return err
		}
	}

	nblocks, err := r.store.Nblocks(r.Node)
	if err != nil {
		return fmt.Errorf("sizing %s: %w", r.Name, err)
	}

	if !opts.SkipFSM && nblocks > 0 {
		last := nblocks - 1
		pg, err := r.store.Read(r.Node, last)
		if err != nil {
			return err
		}
		if pg.IsInitialized() && pg.FreeSpace() > 0 {
			bi.block = last
			bi.pg = pg
			bi.valid = true
			bi.dirty = false
			r.targBlock = last
			return nil
		}
	}

	pg := page.New()
	pg.Init()
	bi.block = nblocks
	bi.pg = pg
	bi.valid = true
	bi.dirty = false
	r.targBlock = nblocks

	// Reserve the block on disk so the next switch sees it.
	pg.SetChecksum(bi.block)
	if err := r.store.Extend(r.Node, bi.block, pg); err != nil {
		return fmt.Errorf("extending %s: %w", r.Name, err)
	}
	return nil
}

func (r *Relation) flushPage(bi *BulkInsertState) error {
	if !bi.valid || !bi.dirty {
		return nil
	}
	bi.pg.SetChecksum(bi.block)
	if err := r.store.Write(r.Node, bi.block, bi.pg); err != nil {
		return fmt.Errorf("writing %s block %d: %w", r.Name, bi.block, err)
	}
	bi.dirty = false
	return nil
}

// FlushBulk writes out the bulk buffer and invalidates it.
func (r *Relation) FlushBulk(bi *BulkInsertState) error {
	if err := r.flushPage(bi); err != nil {
		return err
	}
	bi.valid = false
	bi.block = InvalidBlock
	bi.pg = nil
	return nil
}

// Sync forces every written page of the relation to stable storage.
// This is the compensating durability step for WAL-skipped loads and
// must succeed before the surrounding transaction commits.
func (r *Relation) Sync() error {
	return r.store.ImmedSync(r.Node)
}

// Nblocks returns the relation's current page count.
func (r *Relation) Nblocks() (uint32, error) {
	return r.store.Nblocks(r.Node)
}
