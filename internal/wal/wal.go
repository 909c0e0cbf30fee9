// Package wal implements the write-ahead log. Records are framed with
// the compression package so large page images stay cheap on disk.
package wal

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/harshithgowdakt/heapdb/internal/compression"
	"github.com/harshithgowdakt/heapdb/internal/page"
	"github.com/harshithgowdakt/heapdb/internal/smgr"
	"github.com/harshithgowdakt/heapdb/internal/types"
)

// Log is the append-only write-ahead log for one database instance.
type Log struct {
	// archiveMode forces WAL logging even for bulk loads that could
	// otherwise skip it (point-in-time recovery / replication needs
	// every page change in the log).
	archiveMode bool

	mu       sync.Mutex
	file     *os.File
	writePos types.Lsn
	flushPos types.Lsn
	codec    compression.Codec
}

// Open opens (or creates) the log file under dataDir.
func Open(dataDir string, archiveMode bool) (*Log, error) {
	path := filepath.Join(dataDir, "wal.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening wal: %w", err)
	}
	pos, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("seeking wal end: %w", err)
	}
	return &Log{
		archiveMode: archiveMode,
		file:        f,
		writePos:    types.Lsn(pos),
		flushPos:    types.Lsn(pos),
		codec:       &compression.LZ4Codec{},
	}, nil
}

// BulkLoggingRequired reports whether bulk loads must WAL-log their
// pages. When false, a bulk loader may skip the log if it syncs the
// written data itself before commit.
func (l *Log) BulkLoggingRequired() bool { return l.archiveMode }

// Append writes a record and returns the LSN past its end. The record
// is buffered in the OS; call Flush to make it durable.
func (l *Log) Append(rec *Record) (types.Lsn, error) {
	header := rec.encodeHeader()
	frame, err := compression.CompressBlock(l.codec, rec.Payload)
	if err != nil {
		return 0, fmt.Errorf("compressing wal payload: %w", err)
	}

	buf := make([]byte, 0, 4+len(header)+len(frame))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(header)+len(frame)))
	buf = append(buf, header...)
	buf = append(buf, frame...)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.WriteAt(buf, int64(l.writePos)); err != nil {
		return 0, fmt.Errorf("appending wal record: %w", err)
	}
	l.writePos += types.Lsn(len(buf))
	return l.writePos, nil
}

// LogNewPage logs a full image of a newly initialized page. Must be
// called before the page is written to its storage file.
func (l *Log) LogNewPage(rfn smgr.RelFileNode, blockNum uint32, pg page.Page) (types.Lsn, error) {
	return l.Append(&Record{
		Type:     RecNewPage,
		Node:     rfn,
		BlockNum: blockNum,
		Payload:  pg,
	})
}

// LogInsert logs one tuple insertion.
func (l *Log) LogInsert(xid types.Xid, rfn smgr.RelFileNode, blockNum uint32, tup []byte) (types.Lsn, error) {
	return l.Append(&Record{
		Type:     RecInsert,
		Xid:      xid,
		Node:     rfn,
		BlockNum: blockNum,
		Payload:  tup,
	})
}

// LogCommit appends a commit record and forces the log to disk. After
// it returns the transaction is durable.
func (l *Log) LogCommit(xid types.Xid) error {
	lsn, err := l.Append(&Record{Type: RecCommit, Xid: xid})
	if err != nil {
		return err
	}
	return l.Flush(lsn)
}

// LogAbort appends an abort record; no flush is required.
func (l *Log) LogAbort(xid types.Xid) error {
	_, err := l.Append(&Record{Type: RecAbort, Xid: xid})
	return err
}

// Flush forces the log up to at least lsn to stable storage.
func (l *Log) Flush(lsn types.Lsn) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.flushPos >= lsn {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("syncing wal: %w", err)
	}
	l.flushPos = l.writePos
	return nil
}

// FlushAll forces everything written so far to stable storage.
func (l *Log) FlushAll() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.flushPos >= l.writePos {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("syncing wal: %w", err)
	}
	l.flushPos = l.writePos
	return nil
}

// ReadAll decodes every record in the log, oldest first.
func (l *Log) ReadAll() ([]*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data := make([]byte, l.writePos)
	if _, err := l.file.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading wal: %w", err)
	}

	var recs []*Record
	off := 0
	for off < len(data) {
		if off+4 > len(data) {
			return nil, fmt.Errorf("wal truncated at %d", off)
		}
		recLen := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if off+recLen > len(data) {
			return nil, fmt.Errorf("wal record truncated at %d", off)
		}
		rec, n, err := decodeHeader(data[off : off+recLen])
		if err != nil {
			return nil, err
		}
		payload, err := compression.DecompressBlock(data[off+n : off+recLen])
		if err != nil {
			return nil, fmt.Errorf("decompressing wal payload: %w", err)
		}
		rec.Payload = payload
		recs = append(recs, rec)
		off += recLen
	}
	return recs, nil
}

// Close flushes and closes the log file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Sync(); err != nil {
		return err
	}
	return l.file.Close()
}
