package wal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/heapdb/internal/page"
	"github.com/harshithgowdakt/heapdb/internal/smgr"
	"github.com/harshithgowdakt/heapdb/internal/types"
)

func testLog(t *testing.T, archive bool) *Log {
	t.Helper()
	log, err := Open(t.TempDir(), archive)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func TestAppendAndReadBack(t *testing.T) {
	log := testLog(t, false)
	node := smgr.RelFileNode{Tablespace: "base", Node: 42}

	pg := page.New()
	pg.Init()
	_, err := log.LogNewPage(node, 0, pg)
	require.NoError(t, err)
	_, err = log.LogInsert(7, node, 1, []byte("tuple-bytes"))
	require.NoError(t, err)
	require.NoError(t, log.LogCommit(7))

	records, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.Equal(t, RecNewPage, records[0].Type)
	require.Equal(t, node, records[0].Node)
	require.Equal(t, uint32(0), records[0].BlockNum)
	require.Len(t, records[0].Payload, page.Size)

	require.Equal(t, RecInsert, records[1].Type)
	require.Equal(t, types.Xid(7), records[1].Xid)
	require.Equal(t, []byte("tuple-bytes"), records[1].Payload)

	require.Equal(t, RecCommit, records[2].Type)
}

func TestLsnMonotonic(t *testing.T) {
	log := testLog(t, false)
	node := smgr.RelFileNode{Tablespace: "base", Node: 1}

	prev, err := log.LogInsert(1, node, 0, []byte("a"))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		lsn, err := log.LogInsert(1, node, 0, []byte("b"))
		require.NoError(t, err)
		require.Greater(t, lsn, prev)
		prev = lsn
	}
}

func TestBulkLoggingRequired(t *testing.T) {
	require.False(t, testLog(t, false).BulkLoggingRequired())
	require.True(t, testLog(t, true).BulkLoggingRequired())
}

func TestFlushAllIdempotent(t *testing.T) {
	log := testLog(t, false)
	require.NoError(t, log.FlushAll())
	_, err := log.LogInsert(1, smgr.RelFileNode{Tablespace: "base", Node: 1}, 0, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, log.FlushAll())
	require.NoError(t, log.FlushAll())
}
