// heapdump prints the on-disk state of a relation: its catalog entry,
// a per-page summary of its heap file, and optionally the decoded
// tuples and the WAL records that touch it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/harshithgowdakt/heapdb/internal/catalog"
	"github.com/harshithgowdakt/heapdb/internal/smgr"
	"github.com/harshithgowdakt/heapdb/internal/tuple"
	"github.com/harshithgowdakt/heapdb/internal/types"
	"github.com/harshithgowdakt/heapdb/internal/wal"
)

type pageJSON struct {
	Block      uint32 `json:"block"`
	Items      int    `json:"items"`
	FreeSpace  int    `json:"free_space"`
	Lsn        uint64 `json:"lsn"`
	ChecksumOK bool   `json:"checksum_ok"`
}

type tupleJSON struct {
	Block  uint32        `json:"block"`
	Slot   int           `json:"slot"`
	Xmin   types.Xid     `json:"xmin"`
	Cmin   types.Cid     `json:"cmin"`
	Frozen bool          `json:"frozen"`
	Values []types.Value `json:"values"`
}

type walJSON struct {
	Type    string    `json:"type"`
	Xid     types.Xid `json:"xid"`
	Block   uint32    `json:"block,omitempty"`
	Payload int       `json:"payload_bytes,omitempty"`
}

type dumpJSON struct {
	Relation  string      `json:"relation"`
	Oid       types.Oid   `json:"oid"`
	FileNode  types.Oid   `json:"file_node"`
	Kind      string      `json:"kind"`
	Populated bool        `json:"populated"`
	Nblocks   uint32      `json:"nblocks"`
	Pages     []pageJSON  `json:"pages"`
	Tuples    []tupleJSON `json:"tuples,omitempty"`
	Wal       []walJSON   `json:"wal,omitempty"`
}

func main() {
	dataDir := flag.String("data-dir", "./heapdb-data", "Database data directory")
	relName := flag.String("relation", "", "Relation name")
	withTuples := flag.Bool("tuples", false, "Decode and include tuples")
	withWal := flag.Bool("wal", false, "Include WAL records for the relation")
	flag.Parse()

	if *relName == "" {
		fatalf("missing required -relation")
	}

	store, err := smgr.NewDiskManager(*dataDir)
	if err != nil {
		fatalf("open storage: %v", err)
	}
	defer store.Close()
	log, err := wal.Open(*dataDir, false)
	if err != nil {
		fatalf("open wal: %v", err)
	}
	defer log.Close()
	cat, err := catalog.Open(*dataDir, store, log, nil)
	if err != nil {
		fatalf("open catalog: %v", err)
	}

	rel, ok := cat.Lookup(*relName)
	if !ok {
		fatalf("relation %q not found", *relName)
	}
	node := rel.RelFileNode()

	nblocks, err := store.Nblocks(node)
	if err != nil {
		fatalf("sizing %s: %v", *relName, err)
	}

	dump := dumpJSON{
		Relation:  rel.Name,
		Oid:       rel.Oid,
		FileNode:  rel.FileNode,
		Kind:      rel.Kind.String(),
		Populated: rel.Populated,
		Nblocks:   nblocks,
	}

	for block := uint32(0); block < nblocks; block++ {
		pg, err := store.Read(node, block)
		if err != nil {
			fatalf("reading block %d: %v", block, err)
		}
		dump.Pages = append(dump.Pages, pageJSON{
			Block:      block,
			Items:      pg.NumItems(),
			FreeSpace:  pg.FreeSpace(),
			Lsn:        pg.Lsn(),
			ChecksumOK: pg.VerifyChecksum(block),
		})
		if *withTuples {
			for slot := 0; slot < pg.NumItems(); slot++ {
				item, err := pg.Item(slot)
				if err != nil {
					fatalf("block %d slot %d: %v", block, slot, err)
				}
				t, err := tuple.Decode(item, rel.Desc)
				if err != nil {
					fatalf("decoding block %d slot %d: %v", block, slot, err)
				}
				dump.Tuples = append(dump.Tuples, tupleJSON{
					Block:  block,
					Slot:   slot,
					Xmin:   t.Xmin,
					Cmin:   t.Cmin,
					Frozen: t.Frozen(),
					Values: t.Values,
				})
			}
		}
	}

	if *withWal {
		records, err := log.ReadAll()
		if err != nil {
			fatalf("reading wal: %v", err)
		}
		for _, rec := range records {
			if rec.Node != node && rec.Type != wal.RecCommit && rec.Type != wal.RecAbort {
				continue
			}
			dump.Wal = append(dump.Wal, walJSON{
				Type:    rec.Type.String(),
				Xid:     rec.Xid,
				Block:   rec.BlockNum,
				Payload: len(rec.Payload),
			})
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		fatalf("encoding dump: %v", err)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "heapdump: "+format+"\n", args...)
	os.Exit(1)
}
