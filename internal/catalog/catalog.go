// Package catalog manages relation metadata: names, object ids, file
// nodes, rules, indexes, and the populated flag. The catalog is the
// only component that maps a relation's stable identity to its
// swappable storage.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harshithgowdakt/heapdb/internal/errkind"
	"github.com/harshithgowdakt/heapdb/internal/heap"
	"github.com/harshithgowdakt/heapdb/internal/index"
	"github.com/harshithgowdakt/heapdb/internal/rewrite"
	"github.com/harshithgowdakt/heapdb/internal/smgr"
	"github.com/harshithgowdakt/heapdb/internal/tuple"
	"github.com/harshithgowdakt/heapdb/internal/types"
	"github.com/harshithgowdakt/heapdb/internal/wal"
	"github.com/harshithgowdakt/heapdb/internal/xact"
)

// DefaultTablespace is the tablespace used when none is specified.
const DefaultTablespace = "base"

// RelKind distinguishes plain tables from materialized views.
type RelKind uint8

const (
	KindTable RelKind = iota
	KindMatView
)

func (k RelKind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindMatView:
		return "materialized view"
	default:
		return "unknown"
	}
}

// Rule is a rewrite rule attached to a relation. A materialized view
// carries exactly one SELECT INSTEAD rule whose single action is the
// view's defining query; anything else means the catalog is corrupted.
type Rule struct {
	Event     string // "SELECT"
	IsInstead bool
	SQL       string // defining query text, persisted
	Actions   []*rewrite.Query
}

// Relation is one catalog entry. Oid is the relation's stable
// identity; FileNode is the storage behind it and changes on swap.
type Relation struct {
	Oid        types.Oid
	Name       string
	Kind       RelKind
	Owner      string
	Tablespace string
	FileNode   types.Oid
	Desc       *tuple.Desc
	Populated  bool
	IsSystem   bool
	// FrozenXid is the freeze horizon recorded by the last storage
	// swap, for visibility bookkeeping.
	FrozenXid types.Xid
	Rules     []*Rule
	Indexes   []*index.Index
}

// RelFileNode returns the storage location of the relation.
func (r *Relation) RelFileNode() smgr.RelFileNode {
	return smgr.RelFileNode{Tablespace: r.Tablespace, Node: r.FileNode}
}

// RuleCompiler turns persisted rule SQL back into a query tree for the
// named view. The engine installs one at startup; the catalog itself
// cannot parse SQL.
type RuleCompiler func(viewName, sql string) (*rewrite.Query, error)

// Catalog is the relation metadata store for one database instance.
type Catalog struct {
	dataDir string
	store   smgr.Manager
	log     *wal.Log
	logger  *zap.Logger

	mu          sync.RWMutex
	instanceID  uuid.UUID
	nextOid     types.Oid
	byName      map[string]*Relation
	byOid       map[types.Oid]*Relation
	relcache    map[types.Oid]*heap.Relation
	compileRule RuleCompiler
}

// Open loads (or initializes) the catalog under dataDir.
func Open(dataDir string, store smgr.Manager, log *wal.Log, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{
		dataDir:  dataDir,
		store:    store,
		log:      log,
		logger:   logger,
		nextOid:  16384,
		byName:   make(map[string]*Relation),
		byOid:    make(map[types.Oid]*Relation),
		relcache: make(map[types.Oid]*heap.Relation),
	}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	return c, nil
}

// SetRuleCompiler installs the hook that recompiles persisted rule SQL
// into query trees. Must be called before matview rules are used.
func (c *Catalog) SetRuleCompiler(fn RuleCompiler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compileRule = fn
	// Compile any rules loaded before the hook existed.
	for _, rel := range c.byOid {
		for _, rule := range rel.Rules {
			if len(rule.Actions) == 0 && rule.SQL != "" {
				if q, err := fn(rel.Name, rule.SQL); err == nil {
					rule.Actions = []*rewrite.Query{q}
				} else {
					c.logger.Warn("failed to compile stored rule",
						zap.String("relation", rel.Name), zap.Error(err))
				}
			}
		}
	}
}

// InstanceID returns the database instance identity.
func (c *Catalog) InstanceID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.instanceID
}

func (c *Catalog) allocOidLocked() types.Oid {
	oid := c.nextOid
	c.nextOid++
	return oid
}

// CreateTable creates a new table. The entry and its storage are
// removed again if txn aborts.
func (c *Catalog) CreateTable(txn *xact.Transaction, name, owner string, desc *tuple.Desc) (*Relation, error) {
	return c.createRelation(txn, name, owner, desc, KindTable)
}

// CreateMaterializedView creates an unpopulated materialized view with
// its single SELECT INSTEAD rule.
func (c *Catalog) CreateMaterializedView(txn *xact.Transaction, name, owner string,
	desc *tuple.Desc, definingSQL string, definingQuery *rewrite.Query) (*Relation, error) {

	rel, err := c.createRelation(txn, name, owner, desc, KindMatView)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	rel.Rules = []*Rule{{
		Event:     "SELECT",
		IsInstead: true,
		SQL:       definingSQL,
		Actions:   []*rewrite.Query{definingQuery},
	}}
	err = c.saveLocked()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return rel, nil
}

func (c *Catalog) createRelation(txn *xact.Transaction, name, owner string,
	desc *tuple.Desc, kind RelKind) (*Relation, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byName[name]; exists {
		return nil, fmt.Errorf("relation %s already exists", name)
	}

	rel := &Relation{
		Oid:        c.allocOidLocked(),
		Name:       name,
		Kind:       kind,
		Owner:      owner,
		Tablespace: DefaultTablespace,
		Desc:       desc,
		Populated:  kind == KindTable,
	}
	rel.FileNode = rel.Oid

	if err := c.store.Create(rel.RelFileNode()); err != nil {
		return nil, fmt.Errorf("creating storage for %s: %w", name, err)
	}

	c.byName[name] = rel
	c.byOid[rel.Oid] = rel
	if err := c.saveLocked(); err != nil {
		return nil, err
	}

	txn.OnAbort(func() {
		c.mu.Lock()
		delete(c.byName, name)
		delete(c.byOid, rel.Oid)
		delete(c.relcache, rel.Oid)
		c.saveLocked()
		c.mu.Unlock()
		c.store.Unlink(rel.RelFileNode())
	})

	c.logger.Info("created relation",
		zap.String("name", name),
		zap.String("kind", kind.String()),
		zap.Uint32("oid", uint32(rel.Oid)))
	return rel, nil
}

// CreateIndex defines an index over one column and builds it.
func (c *Catalog) CreateIndex(txn *xact.Transaction, idxName, tableName, column string) error {
	c.mu.Lock()
	rel, ok := c.byName[tableName]
	if !ok {
		c.mu.Unlock()
		return errkind.New(errkind.KindNotFound, "relation %q does not exist", tableName)
	}
	colIdx := rel.Desc.ColumnIndex(column)
	if colIdx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("column %s does not exist in %s", column, tableName)
	}
	for _, ix := range rel.Indexes {
		if ix.Name == idxName {
			c.mu.Unlock()
			return fmt.Errorf("index %s already exists", idxName)
		}
	}
	ix := index.New(idxName, column, colIdx, rel.Desc.Columns[colIdx].DataType)
	rel.Indexes = append(rel.Indexes, ix)
	err := c.saveLocked()
	oid := rel.Oid
	c.mu.Unlock()
	if err != nil {
		return err
	}

	h, err := c.OpenRelation(oid)
	if err != nil {
		return err
	}
	if err := ix.Rebuild(h); err != nil {
		return err
	}

	txn.OnAbort(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		out := rel.Indexes[:0]
		for _, existing := range rel.Indexes {
			if existing.Name != idxName {
				out = append(out, existing)
			}
		}
		rel.Indexes = out
		c.saveLocked()
	})
	return nil
}

// DropRelation removes a relation and its storage.
func (c *Catalog) DropRelation(txn *xact.Transaction, name string, wantMatView bool) error {
	c.mu.Lock()
	rel, ok := c.byName[name]
	if !ok {
		c.mu.Unlock()
		return errkind.New(errkind.KindNotFound, "relation %q does not exist", name)
	}
	if wantMatView && rel.Kind != KindMatView {
		c.mu.Unlock()
		return errkind.New(errkind.KindWrongKind, "%q is not a materialized view", name)
	}
	if !wantMatView && rel.Kind == KindMatView {
		c.mu.Unlock()
		return errkind.New(errkind.KindWrongKind, "%q is not a table: use DROP MATERIALIZED VIEW", name)
	}
	delete(c.byName, name)
	delete(c.byOid, rel.Oid)
	delete(c.relcache, rel.Oid)
	err := c.saveLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	// Storage goes away only once the drop commits.
	txn.OnCommit(func() {
		c.store.Unlink(rel.RelFileNode())
	})
	txn.OnAbort(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.byName[name] = rel
		c.byOid[rel.Oid] = rel
		c.saveLocked()
	})
	return nil
}

// Get returns the catalog entry for oid.
func (c *Catalog) Get(oid types.Oid) (*Relation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rel, ok := c.byOid[oid]
	return rel, ok
}

// Lookup returns the catalog entry for a relation name.
func (c *Catalog) Lookup(name string) (*Relation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rel, ok := c.byName[name]
	return rel, ok
}

// RelationNames returns the names of all user-visible relations.
func (c *Catalog) RelationNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	return names
}

// ResolveAndLock resolves a relation name to its identity under a
// table lock of the given mode, held until end of transaction. When
// owner is non-empty the caller must own the relation.
func (c *Catalog) ResolveAndLock(txn *xact.Transaction, name string, mode xact.LockMode, owner string) (types.Oid, error) {
	for {
		rel, ok := c.Lookup(name)
		if !ok {
			return types.InvalidOid, errkind.New(errkind.KindNotFound, "relation %q does not exist", name)
		}
		if owner != "" && rel.Owner != owner {
			return types.InvalidOid, errkind.New(errkind.KindPermissionDenied, "must be owner of %q", name)
		}
		if err := txn.LockTable(rel.Oid, mode); err != nil {
			return types.InvalidOid, err
		}
		// The name may have been dropped or remapped while we waited.
		if cur, ok := c.Lookup(name); ok && cur.Oid == rel.Oid {
			return rel.Oid, nil
		}
	}
}

// OpenRelation returns an open heap handle for oid, building and
// caching one if needed. Cached handles are dropped by InvalidateEntry.
func (c *Catalog) OpenRelation(oid types.Oid) (*heap.Relation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.relcache[oid]; ok {
		return h, nil
	}
	rel, ok := c.byOid[oid]
	if !ok {
		return nil, errkind.New(errkind.KindNotFound, "relation %d does not exist", oid)
	}
	h := heap.NewRelation(rel.Oid, rel.Name, rel.RelFileNode(), rel.Desc, c.store, c.log)
	c.relcache[oid] = h
	return h, nil
}

// InvalidateEntry drops any cached handle for oid so the next open
// sees current catalog state.
func (c *Catalog) InvalidateEntry(oid types.Oid) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.relcache, oid)
}

// SetPopulated flips the populated flag and persists it.
func (c *Catalog) SetPopulated(oid types.Oid, populated bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rel, ok := c.byOid[oid]
	if !ok {
		return errkind.New(errkind.KindNotFound, "relation %d does not exist", oid)
	}
	rel.Populated = populated
	return c.saveLocked()
}

// --- persistence ---

// catalogJSON is the JSON representation of the catalog saved to disk.
type catalogJSON struct {
	InstanceID string         `json:"instance_id"`
	NextOid    types.Oid      `json:"next_oid"`
	Relations  []relationJSON `json:"relations"`
}

type relationJSON struct {
	Oid        types.Oid  `json:"oid"`
	Name       string     `json:"name"`
	Kind       uint8      `json:"kind"`
	Owner      string     `json:"owner"`
	Tablespace string     `json:"tablespace"`
	FileNode   types.Oid  `json:"file_node"`
	Populated  bool       `json:"populated"`
	FrozenXid  types.Xid  `json:"frozen_xid,omitempty"`
	Columns    []colJSON  `json:"columns"`
	Rules      []ruleJSON `json:"rules,omitempty"`
	Indexes    []idxJSON  `json:"indexes,omitempty"`
	Hidden     bool       `json:"hidden,omitempty"`
}

type colJSON struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

type ruleJSON struct {
	Event     string `json:"event"`
	IsInstead bool   `json:"is_instead"`
	SQL       string `json:"sql"`
}

type idxJSON struct {
	Name   string `json:"name"`
	Column string `json:"column"`
}

func (c *Catalog) metaPath() string {
	return filepath.Join(c.dataDir, "catalog.json")
}

func (c *Catalog) saveLocked() error {
	j := catalogJSON{
		InstanceID: c.instanceID.String(),
		NextOid:    c.nextOid,
	}
	for _, rel := range c.byOid {
		rj := relationJSON{
			Oid:        rel.Oid,
			Name:       rel.Name,
			Kind:       uint8(rel.Kind),
			Owner:      rel.Owner,
			Tablespace: rel.Tablespace,
			FileNode:   rel.FileNode,
			Populated:  rel.Populated,
			FrozenXid:  rel.FrozenXid,
			Hidden:     c.byName[rel.Name] != rel,
		}
		for _, col := range rel.Desc.Columns {
			rj.Columns = append(rj.Columns, colJSON{Name: col.Name, DataType: col.DataType.Name()})
		}
		for _, rule := range rel.Rules {
			rj.Rules = append(rj.Rules, ruleJSON{Event: rule.Event, IsInstead: rule.IsInstead, SQL: rule.SQL})
		}
		for _, ix := range rel.Indexes {
			rj.Indexes = append(rj.Indexes, idxJSON{Name: ix.Name, Column: ix.Column})
		}
		j.Relations = append(j.Relations, rj)
	}

	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.metaPath(), data, 0644)
}

func (c *Catalog) load() error {
	data, err := os.ReadFile(c.metaPath())
	if err != nil {
		if os.IsNotExist(err) {
			c.instanceID = uuid.New()
			return c.saveLocked()
		}
		return err
	}

	var j catalogJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	c.instanceID, err = uuid.Parse(j.InstanceID)
	if err != nil {
		return fmt.Errorf("parsing instance id: %w", err)
	}
	c.nextOid = j.NextOid

	for _, rj := range j.Relations {
		var cols []tuple.ColumnDef
		for _, cj := range rj.Columns {
			dt, err := types.ParseDataType(cj.DataType)
			if err != nil {
				return fmt.Errorf("relation %s: %w", rj.Name, err)
			}
			cols = append(cols, tuple.ColumnDef{Name: cj.Name, DataType: dt})
		}
		rel := &Relation{
			Oid:        rj.Oid,
			Name:       rj.Name,
			Kind:       RelKind(rj.Kind),
			Owner:      rj.Owner,
			Tablespace: rj.Tablespace,
			FileNode:   rj.FileNode,
			Populated:  rj.Populated,
			FrozenXid:  rj.FrozenXid,
			Desc:       tuple.NewDesc(cols),
		}
		for _, ruj := range rj.Rules {
			rel.Rules = append(rel.Rules, &Rule{Event: ruj.Event, IsInstead: ruj.IsInstead, SQL: ruj.SQL})
		}
		for _, ij := range rj.Indexes {
			colIdx := rel.Desc.ColumnIndex(ij.Column)
			if colIdx < 0 {
				return fmt.Errorf("relation %s: index %s on unknown column %s", rj.Name, ij.Name, ij.Column)
			}
			rel.Indexes = append(rel.Indexes, index.New(ij.Name, ij.Column, colIdx, rel.Desc.Columns[colIdx].DataType))
		}
		c.byOid[rel.Oid] = rel
		if !rj.Hidden {
			c.byName[rel.Name] = rel
		}
	}

	// Rebuild index contents from their heaps.
	for _, rel := range c.byOid {
		for _, ix := range rel.Indexes {
			h := heap.NewRelation(rel.Oid, rel.Name, rel.RelFileNode(), rel.Desc, c.store, c.log)
			if err := ix.Rebuild(h); err != nil {
				return fmt.Errorf("rebuilding index %s: %w", ix.Name, err)
			}
		}
	}
	return nil
}
