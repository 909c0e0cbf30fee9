// Package smgr is the storage manager: it owns the on-disk files
// backing relations, keyed by file node rather than by relation name,
// so a relation's storage can be swapped without touching its identity.
package smgr

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/harshithgowdakt/heapdb/internal/page"
	"github.com/harshithgowdakt/heapdb/internal/types"
)

// RelFileNode locates a relation's storage: a tablespace directory and
// a file node within it.
type RelFileNode struct {
	Tablespace string
	Node       types.Oid
}

func (rfn RelFileNode) String() string {
	return fmt.Sprintf("%s/%d", rfn.Tablespace, rfn.Node)
}

// Manager provides page-level file primitives. It is an interface so
// tests can inject sync failures.
type Manager interface {
	// Create creates an empty file for the node. The file exists with
	// zero blocks afterward.
	Create(rfn RelFileNode) error
	// Exists reports whether the node's file exists.
	Exists(rfn RelFileNode) bool
	// Nblocks returns the number of pages in the file.
	Nblocks(rfn RelFileNode) (uint32, error)
	// Extend writes a page at blockNum, which must be the current block
	// count (files grow one page at a time).
	Extend(rfn RelFileNode, blockNum uint32, pg page.Page) error
	// Read returns the page at blockNum.
	Read(rfn RelFileNode, blockNum uint32) (page.Page, error)
	// Write overwrites the page at an existing blockNum.
	Write(rfn RelFileNode, blockNum uint32, pg page.Page) error
	// ImmedSync forces all written pages of the node to stable storage
	// before returning.
	ImmedSync(rfn RelFileNode) error
	// Unlink removes the node's file.
	Unlink(rfn RelFileNode) error
}

// DiskManager is the file-backed Manager. One file per node:
// <dataDir>/<tablespace>/<node>.heap
type DiskManager struct {
	dataDir string

	mu    sync.Mutex
	files map[RelFileNode]*os.File
}

// NewDiskManager creates a manager rooted at dataDir.
func NewDiskManager(dataDir string) (*DiskManager, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &DiskManager{
		dataDir: dataDir,
		files:   make(map[RelFileNode]*os.File),
	}, nil
}

func (m *DiskManager) path(rfn RelFileNode) string {
	return filepath.Join(m.dataDir, rfn.Tablespace, fmt.Sprintf("%d.heap", rfn.Node))
}

func (m *DiskManager) open(rfn RelFileNode) (*os.File, error) {
	if f, ok := m.files[rfn]; ok {
		return f, nil
	}
	f, err := os.OpenFile(m.path(rfn), os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", rfn, err)
	}
	m.files[rfn] = f
	return f, nil
}

func (m *DiskManager) Create(rfn RelFileNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(m.dataDir, rfn.Tablespace), 0755); err != nil {
		return fmt.Errorf("creating tablespace dir: %w", err)
	}
	f, err := os.OpenFile(m.path(rfn), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", rfn, err)
	}
	m.files[rfn] = f
	return nil
}

func (m *DiskManager) Exists(rfn RelFileNode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[rfn]; ok {
		return true
	}
	_, err := os.Stat(m.path(rfn))
	return err == nil
}

func (m *DiskManager) Nblocks(rfn RelFileNode) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := m.open(rfn)
	if err != nil {
		return 0, err
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	return uint32(size / page.Size), nil
}

func (m *DiskManager) Extend(rfn RelFileNode, blockNum uint32, pg page.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := m.open(rfn)
	if err != nil {
		return err
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if uint32(size/page.Size) != blockNum {
		return fmt.Errorf("extend %s: block %d is not the next block (%d pages)",
			rfn, blockNum, size/page.Size)
	}
	_, err = f.WriteAt(pg, int64(blockNum)*page.Size)
	return err
}

func (m *DiskManager) Read(rfn RelFileNode, blockNum uint32) (page.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := m.open(rfn)
	if err != nil {
		return nil, err
	}
	pg := page.New()
	if _, err := f.ReadAt(pg, int64(blockNum)*page.Size); err != nil {
		return nil, fmt.Errorf("reading %s block %d: %w", rfn, blockNum, err)
	}
	return pg, nil
}

func (m *DiskManager) Write(rfn RelFileNode, blockNum uint32, pg page.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := m.open(rfn)
	if err != nil {
		return err
	}
	_, err = f.WriteAt(pg, int64(blockNum)*page.Size)
	return err
}

func (m *DiskManager) ImmedSync(rfn RelFileNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := m.open(rfn)
	if err != nil {
		return err
	}
	return f.Sync()
}

func (m *DiskManager) Unlink(rfn RelFileNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[rfn]; ok {
		f.Close()
		delete(m.files, rfn)
	}
	return os.Remove(m.path(rfn))
}

// Close releases all open file handles.
func (m *DiskManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for rfn, f := range m.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
		delete(m.files, rfn)
	}
	return first
}
