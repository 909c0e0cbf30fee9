// Package page implements the slotted page format shared by every heap
// file: a fixed-size block with a header, a line-pointer array growing
// down from the header, and item data growing up from the end.
package page

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

const (
	// Size is the fixed byte size of every page.
	Size = 8192

	// header layout: lsn(8) checksum(8) lower(2) upper(2) flags(2) pad(2)
	offLsn      = 0
	offChecksum = 8
	offLower    = 16
	offUpper    = 18
	offFlags    = 20
	HeaderSize  = 24

	// linePointerSize is offset(2) + length(2) per item.
	linePointerSize = 4
)

// Page is a raw page image. A freshly allocated Page is not valid for
// item storage until Init has been called on it.
type Page []byte

// New allocates a zeroed page.
func New() Page { return make(Page, Size) }

// Init formats p as an empty page: lower at the end of the header,
// upper at the end of the page.
func (p Page) Init() {
	for i := range p {
		p[i] = 0
	}
	p.setLower(HeaderSize)
	p.setUpper(Size)
}

// IsInitialized reports whether p has been formatted by Init. An
// all-zero page is not initialized.
func (p Page) IsInitialized() bool {
	return p.lower() >= HeaderSize && p.upper() <= Size && p.lower() <= p.upper()
}

// NumItems returns the number of line pointers on the page.
func (p Page) NumItems() int {
	return (int(p.lower()) - HeaderSize) / linePointerSize
}

// FreeSpace returns the bytes available for one more item and its line
// pointer.
func (p Page) FreeSpace() int {
	free := int(p.upper()) - int(p.lower()) - linePointerSize
	if free < 0 {
		return 0
	}
	return free
}

// AddItem appends item data to the page, returning its slot index.
func (p Page) AddItem(item []byte) (int, error) {
	if len(item) > p.FreeSpace() {
		return 0, fmt.Errorf("page full: item %d bytes, %d free", len(item), p.FreeSpace())
	}
	newUpper := int(p.upper()) - len(item)
	copy(p[newUpper:], item)

	slot := p.NumItems()
	lpOff := HeaderSize + slot*linePointerSize
	binary.LittleEndian.PutUint16(p[lpOff:], uint16(newUpper))
	binary.LittleEndian.PutUint16(p[lpOff+2:], uint16(len(item)))

	p.setLower(uint16(lpOff + linePointerSize))
	p.setUpper(uint16(newUpper))
	return slot, nil
}

// Item returns the data for the given slot index.
func (p Page) Item(slot int) ([]byte, error) {
	if slot < 0 || slot >= p.NumItems() {
		return nil, fmt.Errorf("slot %d out of range (%d items)", slot, p.NumItems())
	}
	lpOff := HeaderSize + slot*linePointerSize
	off := binary.LittleEndian.Uint16(p[lpOff:])
	length := binary.LittleEndian.Uint16(p[lpOff+2:])
	return p[off : int(off)+int(length)], nil
}

// Lsn returns the page LSN.
func (p Page) Lsn() uint64 { return binary.LittleEndian.Uint64(p[offLsn:]) }

// SetLsn stamps the page LSN.
func (p Page) SetLsn(lsn uint64) { binary.LittleEndian.PutUint64(p[offLsn:], lsn) }

// SetChecksum computes and stores the page checksum. The block number
// participates so a page written to the wrong block fails verification.
func (p Page) SetChecksum(blockNum uint32) {
	binary.LittleEndian.PutUint64(p[offChecksum:], 0)
	binary.LittleEndian.PutUint64(p[offChecksum:], p.computeChecksum(blockNum))
}

// VerifyChecksum checks the stored checksum against the page contents.
func (p Page) VerifyChecksum(blockNum uint32) bool {
	stored := binary.LittleEndian.Uint64(p[offChecksum:])
	binary.LittleEndian.PutUint64(p[offChecksum:], 0)
	ok := stored == p.computeChecksum(blockNum)
	binary.LittleEndian.PutUint64(p[offChecksum:], stored)
	return ok
}

func (p Page) computeChecksum(blockNum uint32) uint64 {
	h := xxhash.New()
	var blk [4]byte
	binary.LittleEndian.PutUint32(blk[:], blockNum)
	h.Write(blk[:])
	h.Write(p)
	return h.Sum64()
}

func (p Page) lower() uint16          { return binary.LittleEndian.Uint16(p[offLower:]) }
func (p Page) upper() uint16          { return binary.LittleEndian.Uint16(p[offUpper:]) }
func (p Page) setLower(v uint16)      { binary.LittleEndian.PutUint16(p[offLower:], v) }
func (p Page) setUpper(v uint16)      { binary.LittleEndian.PutUint16(p[offUpper:], v) }
