// Package matview implements REFRESH MATERIALIZED VIEW: re-running a
// view's defining query into freshly built transient storage and
// swapping that storage in under the view's stable identity.
package matview

import (
	"go.uber.org/zap"

	"github.com/harshithgowdakt/heapdb/internal/catalog"
	"github.com/harshithgowdakt/heapdb/internal/errkind"
	"github.com/harshithgowdakt/heapdb/internal/executor"
	"github.com/harshithgowdakt/heapdb/internal/page"
	"github.com/harshithgowdakt/heapdb/internal/parser"
	"github.com/harshithgowdakt/heapdb/internal/rewrite"
	"github.com/harshithgowdakt/heapdb/internal/smgr"
	"github.com/harshithgowdakt/heapdb/internal/types"
	"github.com/harshithgowdakt/heapdb/internal/wal"
	"github.com/harshithgowdakt/heapdb/internal/xact"
)

// Refresher runs materialized view refreshes.
type Refresher struct {
	cat    *catalog.Catalog
	exec   *executor.Executor
	xmgr   *xact.Manager
	store  smgr.Manager
	log    *wal.Log
	logger *zap.Logger
}

func NewRefresher(cat *catalog.Catalog, exec *executor.Executor, xmgr *xact.Manager,
	store smgr.Manager, log *wal.Log, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{cat: cat, exec: exec, xmgr: xmgr, store: store, log: log, logger: logger}
}

// ExecRefreshMatView refreshes the named materialized view inside txn.
// With skipData the view's contents are discarded and the view is left
// unpopulated; otherwise the defining query is re-run into a transient
// heap which then replaces the view's storage. Returns the number of
// rows loaded.
func (r *Refresher) ExecRefreshMatView(txn *xact.Transaction, stmt *parser.RefreshMatViewStmt, owner string) (uint64, error) {
	// Resolve under an exclusive lock held to end of transaction; the
	// owner check rides along with name resolution.
	oid, err := r.cat.ResolveAndLock(txn, stmt.ViewName, xact.AccessExclusive, owner)
	if err != nil {
		return 0, err
	}
	rel, ok := r.cat.Get(oid)
	if !ok {
		return 0, errkind.New(errkind.KindNotFound, "relation %q does not exist", stmt.ViewName)
	}
	if rel.Kind != catalog.KindMatView {
		return 0, errkind.New(errkind.KindWrongKind, "%q is not a materialized view", stmt.ViewName)
	}
	if rel.IsSystem {
		return 0, errkind.New(errkind.KindPermissionDenied, "permission denied: %q is a system relation", stmt.ViewName)
	}
	if err := txn.CheckTableNotInUse(oid, "REFRESH MATERIALIZED VIEW"); err != nil {
		return 0, err
	}

	dataQuery, err := viewRuleQuery(rel)
	if err != nil {
		return 0, err
	}
	if err := txn.CheckForInterrupts(); err != nil {
		return 0, err
	}

	// The view keeps its identity; only its storage is replaced. The
	// new heap goes in the view's own tablespace.
	newOid, err := r.cat.MakeTransientHeap(txn, oid, rel.Tablespace)
	if err != nil {
		return 0, err
	}

	var processed uint64
	if !stmt.SkipData {
		processed, err = r.refreshDataFill(txn, dataQuery, newOid)
		if err != nil {
			return 0, err
		}
	}

	err = r.cat.FinishHeapSwap(txn, oid, newOid,
		true, // rebuild indexes against the new contents
		true, // old storage is reclaimed at commit
		r.xmgr.RecentXmin(), 0)
	if err != nil {
		return 0, err
	}

	r.cat.InvalidateEntry(oid)
	r.logger.Info("refreshed materialized view",
		zap.String("view", stmt.ViewName),
		zap.Bool("skip_data", stmt.SkipData),
		zap.Uint64("rows", processed))
	return processed, nil
}

// refreshDataFill re-runs the defining query into the transient heap.
func (r *Refresher) refreshDataFill(txn *xact.Transaction, dataQuery *rewrite.Query, transientOid types.Oid) (uint64, error) {
	// The stored rule action goes through the rewriter again; a stored
	// SELECT must come back as exactly one query.
	rewritten := rewrite.Rewrite(dataQuery)
	if len(rewritten) != 1 {
		return 0, errkind.New(errkind.KindInternal, "unexpected rewrite result for materialized view")
	}
	query := rewritten[0]

	if err := txn.CheckForInterrupts(); err != nil {
		return 0, err
	}

	// The first two range table entries are the synthetic new/old
	// placeholders left by view expansion. Flagging them as result
	// relations keeps the unpopulated-view check off the view itself.
	if len(query.RangeTable) < 2 {
		return 0, errkind.New(errkind.KindInternal, "materialized view is missing rewrite information")
	}
	query.RangeTable[0].IsResultRel = true
	query.RangeTable[1].IsResultRel = true

	sink := newTransientSink(r, txn, transientOid)
	defer sink.Destroy()

	// The query runs under its own copied snapshot so it sees the
	// results of everything this transaction did before the refresh.
	txn.CommandCounterIncrement()
	var processed uint64
	err := txn.WithSnapshot(txn.Snapshot(), func(snap *xact.Snapshot) error {
		n, err := r.exec.Run(txn, query, snap, sink)
		processed = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return processed, nil
}

// viewRuleQuery extracts the defining query from the view's rule,
// verifying the rule shape. A malformed shape means catalog corruption,
// not user error.
func viewRuleQuery(rel *catalog.Relation) (*rewrite.Query, error) {
	if len(rel.Rules) < 1 {
		return nil, errkind.New(errkind.KindInternal,
			"materialized view %q is missing rewrite information", rel.Name)
	}
	if len(rel.Rules) > 1 {
		return nil, errkind.New(errkind.KindInternal,
			"materialized view %q has too many rules", rel.Name)
	}
	rule := rel.Rules[0]
	if !rule.IsInstead || rule.Event != "SELECT" {
		return nil, errkind.New(errkind.KindInternal,
			"the rule for materialized view %q is not a SELECT INSTEAD rule", rel.Name)
	}
	if len(rule.Actions) != 1 {
		return nil, errkind.New(errkind.KindInternal,
			"the rule for materialized view %q is not a single action", rel.Name)
	}
	return rule.Actions[0], nil
}

// SetPopulated transitions an unpopulated relation to populated by
// writing one initialized empty page as page zero and syncing it. The
// page is WAL-logged first when the relation is WAL-logged and bulk
// logging is in force. One-shot per storage object.
func (r *Refresher) SetPopulated(oid types.Oid) error {
	rel, ok := r.cat.Get(oid)
	if !ok {
		return errkind.New(errkind.KindNotFound, "relation %d does not exist", oid)
	}
	if rel.Populated {
		return errkind.New(errkind.KindInternal, "relation %q is already populated", rel.Name)
	}

	h, err := r.cat.OpenRelation(oid)
	if err != nil {
		return err
	}

	pg := page.New()
	pg.Init()
	if h.NeedsWAL && r.log.BulkLoggingRequired() {
		lsn, err := r.log.LogNewPage(h.Node, 0, pg)
		if err != nil {
			return err
		}
		pg.SetLsn(uint64(lsn))
	}
	pg.SetChecksum(0)
	if err := r.store.Extend(h.Node, 0, pg); err != nil {
		return err
	}
	if err := r.store.ImmedSync(h.Node); err != nil {
		return err
	}

	if err := r.cat.SetPopulated(oid, true); err != nil {
		return err
	}
	r.cat.InvalidateEntry(oid)
	return nil
}
