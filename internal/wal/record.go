package wal

import (
	"encoding/binary"
	"fmt"

	"github.com/harshithgowdakt/heapdb/internal/smgr"
	"github.com/harshithgowdakt/heapdb/internal/types"
)

// RecordType identifies a log record.
type RecordType uint8

const (
	// RecNewPage logs a full page image for a newly initialized page.
	RecNewPage RecordType = iota + 1
	// RecInsert logs a single tuple insertion.
	RecInsert
	// RecCommit marks a transaction committed.
	RecCommit
	// RecAbort marks a transaction aborted.
	RecAbort
)

func (rt RecordType) String() string {
	switch rt {
	case RecNewPage:
		return "new_page"
	case RecInsert:
		return "insert"
	case RecCommit:
		return "commit"
	case RecAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// Record is a single write-ahead log entry. Payload holds the page
// image for RecNewPage and the encoded tuple for RecInsert.
type Record struct {
	Type     RecordType
	Xid      types.Xid
	Node     smgr.RelFileNode
	BlockNum uint32
	Payload  []byte
}

// encodeHeader serializes everything except the payload frame.
func (r *Record) encodeHeader() []byte {
	ts := r.Node.Tablespace
	buf := make([]byte, 0, 16+len(ts))
	buf = append(buf, byte(r.Type))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.Xid))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(ts)))
	buf = append(buf, ts...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.Node.Node))
	buf = binary.LittleEndian.AppendUint32(buf, r.BlockNum)
	return buf
}

func decodeHeader(data []byte) (*Record, int, error) {
	if len(data) < 11 {
		return nil, 0, fmt.Errorf("wal record header truncated")
	}
	r := &Record{Type: RecordType(data[0])}
	r.Xid = types.Xid(binary.LittleEndian.Uint32(data[1:5]))
	tsLen := int(binary.LittleEndian.Uint16(data[5:7]))
	if len(data) < 15+tsLen {
		return nil, 0, fmt.Errorf("wal record header truncated")
	}
	r.Node.Tablespace = string(data[7 : 7+tsLen])
	r.Node.Node = types.Oid(binary.LittleEndian.Uint32(data[7+tsLen:]))
	r.BlockNum = binary.LittleEndian.Uint32(data[11+tsLen:])
	return r, 15 + tsLen, nil
}
