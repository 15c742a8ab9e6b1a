// Package bplustree implements an ordered index whose nodes live in
// buffer-pool pages: a disk-resident B+ tree with the node layouts,
// split/merge logic, and forward iterator of the classic design, adapted
// to address pages through a bufferpool.BufferPool instead of a raw page
// table.
package bplustree

import (
	"bytes"
	"encoding/binary"

	"nucleusdb/storage_engine/page"
)

// KeySize is the fixed width of every key slot in a node. Callers must
// encode keys to exactly this many bytes (e.g. a big-endian fixed-width
// integer, zero-padded); the comparator then only ever sees equal-length
// byte strings, so straightforward byte comparison is well defined.
const KeySize = 16

// RID ("record id") is the address a leaf's value slot carries: the
// heap/page location of a stored record. This package only ever moves
// RIDs around opaquely — it has no idea what they point to.
type RID struct {
	PageID page.ID
	Slot   int32
}

func (r RID) encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:], uint32(int32(r.PageID)))
	binary.LittleEndian.PutUint32(dst[4:], uint32(r.Slot))
}

func decodeRID(src []byte) RID {
	return RID{
		PageID: page.ID(int32(binary.LittleEndian.Uint32(src[0:]))),
		Slot:   int32(binary.LittleEndian.Uint32(src[4:])),
	}
}

const ridSize = 8

// Comparator orders two encoded keys the same way bytes.Compare does:
// negative if a < b, zero if equal, positive if a > b.
type Comparator func(a, b []byte) int

// ByteComparator is the default comparator: plain lexicographic order
// over the fixed-width key bytes.
func ByteComparator(a, b []byte) int { return bytes.Compare(a, b) }

// Common node header, identical for internal and leaf nodes so a page's
// first few bytes can always be inspected without knowing which kind of
// node it holds yet.
//
//	offset 0:  isLeaf byte (0 or 1)
//	offset 4:  size        int32
//	offset 8:  maxSize     int32
//	offset 12: parentPage  int32
//	offset 16: selfPage    int32
//	offset 20: nextPage    int32 (leaf sibling chain; unused by internal)
const headerSize = 24

const (
	offIsLeaf  = 0
	offSize    = 4
	offMaxSize = 8
	offParent  = 12
	offSelf    = 16
	offNext    = 20
)

// node is the shared, low-level view over a frame's bytes that internal
// and leaf nodes both embed. It never copies: every accessor reads or
// writes straight through to the frame's Data slice, so mutations are
// visible to the buffer pool (and thus to disk) the moment the frame is
// marked dirty.
type node struct {
	data []byte
}

func wrapNode(data []byte) node { return node{data: data} }

func (n node) IsLeaf() bool { return n.data[offIsLeaf] == 1 }
func (n node) setLeaf(v bool) {
	if v {
		n.data[offIsLeaf] = 1
	} else {
		n.data[offIsLeaf] = 0
	}
}

func (n node) Size() int32      { return int32(binary.LittleEndian.Uint32(n.data[offSize:])) }
func (n node) setSize(v int32)  { binary.LittleEndian.PutUint32(n.data[offSize:], uint32(v)) }
func (n node) IncSize(delta int32) { n.setSize(n.Size() + delta) }

func (n node) MaxSize() int32     { return int32(binary.LittleEndian.Uint32(n.data[offMaxSize:])) }
func (n node) setMaxSize(v int32) { binary.LittleEndian.PutUint32(n.data[offMaxSize:], uint32(v)) }

// MinSize is the fewest entries a non-root node may hold before it
// becomes a candidate for coalescing or redistribution: ceil(max/2).
func (n node) MinSize() int32 { return (n.MaxSize() + 1) / 2 }

func (n node) ParentPageID() page.ID {
	return page.ID(int32(binary.LittleEndian.Uint32(n.data[offParent:])))
}
func (n node) SetParentPageID(id page.ID) {
	binary.LittleEndian.PutUint32(n.data[offParent:], uint32(int32(id)))
}

func (n node) SelfPageID() page.ID {
	return page.ID(int32(binary.LittleEndian.Uint32(n.data[offSelf:])))
}
func (n node) setSelfPageID(id page.ID) {
	binary.LittleEndian.PutUint32(n.data[offSelf:], uint32(int32(id)))
}

func (n node) IsRoot() bool { return n.ParentPageID() == page.Invalid }
