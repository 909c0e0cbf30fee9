package types

// Oid identifies a catalog object (relation, index, transient heap).
// A relation's Oid is stable across refreshes; only its file node moves.
type Oid uint32

// InvalidOid is the zero, never-allocated object id.
const InvalidOid Oid = 0

// Xid is a transaction id.
type Xid uint32

const (
	// InvalidXid is the zero transaction id.
	InvalidXid Xid = 0
	// FrozenXid marks tuples visible to every past and future transaction.
	FrozenXid Xid = 2
	// FirstNormalXid is the first assignable transaction id.
	FirstNormalXid Xid = 3
)

// Cid is a command id within a transaction.
type Cid uint32

// Lsn is a byte position in the write-ahead log.
type Lsn uint64
