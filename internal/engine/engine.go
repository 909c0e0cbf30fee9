// Package engine ties the storage, transaction, catalog, and executor
// layers together behind a single Execute entry point.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/harshithgowdakt/heapdb/internal/catalog"
	"github.com/harshithgowdakt/heapdb/internal/executor"
	"github.com/harshithgowdakt/heapdb/internal/matview"
	"github.com/harshithgowdakt/heapdb/internal/parser"
	"github.com/harshithgowdakt/heapdb/internal/rewrite"
	"github.com/harshithgowdakt/heapdb/internal/smgr"
	"github.com/harshithgowdakt/heapdb/internal/types"
	"github.com/harshithgowdakt/heapdb/internal/wal"
	"github.com/harshithgowdakt/heapdb/internal/xact"
)

// DefaultUser is the role statements run as when no user is given.
const DefaultUser = "heapdb"

// Engine is one open database instance.
type Engine struct {
	dataDir string
	store   *smgr.DiskManager
	log     *wal.Log
	cat     *catalog.Catalog
	xmgr    *xact.Manager
	exec    *executor.Executor
	refresh *matview.Refresher
	logger  *zap.Logger
}

// Open opens (or initializes) a database instance under dataDir.
func Open(dataDir string, archiveMode bool, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := smgr.NewDiskManager(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	log, err := wal.Open(dataDir, archiveMode)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening wal: %w", err)
	}
	cat, err := catalog.Open(dataDir, store, log, logger)
	if err != nil {
		log.Close()
		return nil, err
	}

	xmgr := xact.NewManager(log)
	exec := executor.New(cat)
	e := &Engine{
		dataDir: dataDir,
		store:   store,
		log:     log,
		cat:     cat,
		xmgr:    xmgr,
		exec:    exec,
		refresh: matview.NewRefresher(cat, exec, xmgr, store, log, logger),
		logger:  logger,
	}
	cat.SetRuleCompiler(e.compileViewRule)

	logger.Info("opened database",
		zap.String("data_dir", dataDir),
		zap.String("instance", cat.InstanceID().String()),
		zap.Bool("archive_mode", archiveMode))
	return e, nil
}

// Close flushes and closes the instance.
func (e *Engine) Close() error {
	if err := e.log.Close(); err != nil {
		return err
	}
	return e.store.Close()
}

// Catalog exposes relation metadata to the server layer.
func (e *Engine) Catalog() *catalog.Catalog { return e.cat }

// WAL exposes the write-ahead log to the server's background flusher.
func (e *Engine) WAL() *wal.Log { return e.log }

// Execute parses and runs one statement as the default user, inside
// its own transaction.
func (e *Engine) Execute(ctx context.Context, sql string) (*Result, error) {
	return e.ExecuteAs(ctx, sql, DefaultUser)
}

// ExecuteAs runs one statement as the given user. The statement's
// transaction commits on success and aborts on any error.
func (e *Engine) ExecuteAs(ctx context.Context, sql string, user string) (*Result, error) {
	stmt, err := parser.ParseSQL(sql)
	if err != nil {
		return nil, err
	}

	txn := e.xmgr.Begin(ctx)
	res, err := e.dispatch(txn, stmt, user)
	if err != nil {
		e.xmgr.Abort(txn)
		return nil, err
	}
	if err := e.xmgr.Commit(txn); err != nil {
		return nil, err
	}
	return res, nil
}

// compileViewRule turns stored rule SQL back into the view's defining
// query tree. Installed as the catalog's rule compiler.
func (e *Engine) compileViewRule(viewName, sql string) (*rewrite.Query, error) {
	stmt, err := parser.ParseSQL(sql)
	if err != nil {
		return nil, fmt.Errorf("rule for %s: %w", viewName, err)
	}
	sel, ok := stmt.(*parser.SelectStmt)
	if !ok {
		return nil, fmt.Errorf("rule for %s is not a SELECT", viewName)
	}
	return rewrite.MakeViewQuery(viewName, sel.From, targetEntries(sel), sel.Where), nil
}

func targetEntries(sel *parser.SelectStmt) []rewrite.TargetEntry {
	targets := make([]rewrite.TargetEntry, 0, len(sel.Columns))
	for _, se := range sel.Columns {
		targets = append(targets, rewrite.TargetEntry{Name: se.Alias, Expr: se.Expr})
	}
	return targets
}

// Result holds the result of executing a statement.
type Result struct {
	Columns []string
	Rows    [][]types.Value
	Message string // for statements without a result set
}
