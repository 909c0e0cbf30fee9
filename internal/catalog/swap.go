package catalog

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/harshithgowdakt/heapdb/internal/errkind"
	"github.com/harshithgowdakt/heapdb/internal/smgr"
	"github.com/harshithgowdakt/heapdb/internal/types"
	"github.com/harshithgowdakt/heapdb/internal/xact"
)

// MakeTransientHeap creates a hidden, unpopulated heap shaped like the
// relation identified by oid, in the given tablespace. The transient
// heap and its storage vanish if txn aborts. Returns the transient
// relation's identity.
func (c *Catalog) MakeTransientHeap(txn *xact.Transaction, oid types.Oid, tablespace string) (types.Oid, error) {
	c.mu.Lock()
	src, ok := c.byOid[oid]
	if !ok {
		c.mu.Unlock()
		return types.InvalidOid, errkind.New(errkind.KindNotFound, "relation %d does not exist", oid)
	}
	if tablespace == "" {
		tablespace = src.Tablespace
	}

	rel := &Relation{
		Oid:        c.allocOidLocked(),
		Name:       fmt.Sprintf("heap_%d", oid),
		Kind:       src.Kind,
		Owner:      src.Owner,
		Tablespace: tablespace,
		Desc:       src.Desc,
	}
	rel.FileNode = rel.Oid

	if err := c.store.Create(rel.RelFileNode()); err != nil {
		c.mu.Unlock()
		return types.InvalidOid, fmt.Errorf("creating transient storage: %w", err)
	}

	// Hidden: registered by oid only, never resolvable by name.
	c.byOid[rel.Oid] = rel
	err := c.saveLocked()
	c.mu.Unlock()
	if err != nil {
		return types.InvalidOid, err
	}

	txn.OnAbort(func() {
		c.mu.Lock()
		node := rel.RelFileNode()
		delete(c.byOid, rel.Oid)
		delete(c.relcache, rel.Oid)
		c.saveLocked()
		c.mu.Unlock()
		c.store.Unlink(node)
	})

	c.logger.Debug("created transient heap",
		zap.Uint32("for", uint32(oid)),
		zap.Uint32("oid", uint32(rel.Oid)))
	return rel.Oid, nil
}

// FinishHeapSwap exchanges the storage of the relation at oid with the
// transient heap at transientOid. The relation keeps its identity; only
// the file node and populated state move. Indexes are rebuilt against
// the new storage when rebuildIndexes is set. When reclaimOld is set
// the displaced storage is unlinked at commit; if txn aborts instead,
// the swap is undone. frozenXid and cutoff record the freeze horizon of
// the new contents for visibility bookkeeping.
func (c *Catalog) FinishHeapSwap(txn *xact.Transaction, oid, transientOid types.Oid,
	rebuildIndexes, reclaimOld bool, frozenXid types.Xid, cutoff uint64) error {

	c.mu.Lock()
	target, ok := c.byOid[oid]
	if !ok {
		c.mu.Unlock()
		return errkind.New(errkind.KindNotFound, "relation %d does not exist", oid)
	}
	transient, ok := c.byOid[transientOid]
	if !ok {
		c.mu.Unlock()
		return errkind.New(errkind.KindInternal, "transient heap %d does not exist", transientOid)
	}
	_ = cutoff

	oldNode := target.FileNode
	oldPopulated := target.Populated
	oldFrozen := target.FrozenXid

	target.FileNode, transient.FileNode = transient.FileNode, target.FileNode
	target.Populated, transient.Populated = transient.Populated, oldPopulated
	target.FrozenXid = frozenXid

	delete(c.relcache, oid)
	delete(c.relcache, transientOid)
	err := c.saveLocked()
	displaced := smgr.RelFileNode{Tablespace: target.Tablespace, Node: oldNode}
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if rebuildIndexes {
		h, err := c.OpenRelation(oid)
		if err != nil {
			return err
		}
		for _, ix := range target.Indexes {
			if err := ix.Rebuild(h); err != nil {
				return fmt.Errorf("rebuilding index %s: %w", ix.Name, err)
			}
		}
	}

	txn.OnCommit(func() {
		c.mu.Lock()
		delete(c.byOid, transientOid)
		delete(c.relcache, transientOid)
		c.saveLocked()
		c.mu.Unlock()
		if reclaimOld {
			c.store.Unlink(displaced)
		}
	})

	// Registered after the swap, so on abort this runs before the
	// transient heap's own cleanup and restores the original mapping.
	txn.OnAbort(func() {
		c.mu.Lock()
		target.FileNode = oldNode
		target.Populated = oldPopulated
		target.FrozenXid = oldFrozen
		if tr, ok := c.byOid[transientOid]; ok {
			tr.FileNode = transientOid
			tr.Populated = false
		}
		delete(c.relcache, oid)
		delete(c.relcache, transientOid)
		c.saveLocked()
		c.mu.Unlock()
	})

	c.logger.Info("swapped relation storage",
		zap.Uint32("oid", uint32(oid)),
		zap.Uint32("new_node", uint32(target.FileNode)),
		zap.Uint32("old_node", uint32(oldNode)))
	return nil
}
