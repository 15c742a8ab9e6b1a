package bplustree

import (
	"encoding/binary"

	"nucleusdb/storage_engine/page"
)

// leafEntrySize is the footprint of one (key, RID) slot.
const leafEntrySize = KeySize + ridSize

// LeafMaxSize returns how many (key, RID) slots fit in one page.
func LeafMaxSize() int32 {
	return int32((page.Size - headerSize) / leafEntrySize)
}

// LeafNode holds the actual (key, RID) pairs in sorted key order and
// chains to its right sibling, so a forward scan never has to climb back
// up to an internal node.
type LeafNode struct {
	node
}

func wrapLeaf(data []byte) *LeafNode { return &LeafNode{wrapNode(data)} }

// InitLeafNode formats a fresh page as an empty leaf node.
func InitLeafNode(data []byte, selfID, parentID page.ID, maxSize int32) *LeafNode {
	n := wrapLeaf(data)
	n.setLeaf(true)
	n.setSize(0)
	n.setMaxSize(maxSize)
	n.setSelfPageID(selfID)
	n.SetParentPageID(parentID)
	n.SetNextPageID(page.Invalid)
	return n
}

func (n *LeafNode) entryOffset(i int) int { return headerSize + i*leafEntrySize }

func (n *LeafNode) KeyAt(i int) []byte {
	off := n.entryOffset(i)
	return n.data[off : off+KeySize]
}

func (n *LeafNode) SetKeyAt(i int, key []byte) {
	off := n.entryOffset(i)
	copy(n.data[off:off+KeySize], key)
}

func (n *LeafNode) ValueAt(i int) RID {
	off := n.entryOffset(i) + KeySize
	return decodeRID(n.data[off : off+ridSize])
}

func (n *LeafNode) SetValueAt(i int, v RID) {
	off := n.entryOffset(i) + KeySize
	v.encode(n.data[off : off+ridSize])
}

func (n *LeafNode) NextPageID() page.ID {
	return page.ID(int32(binary.LittleEndian.Uint32(n.data[offNext:])))
}

func (n *LeafNode) SetNextPageID(id page.ID) {
	binary.LittleEndian.PutUint32(n.data[offNext:], uint32(int32(id)))
}

// KeyIndex returns the first index whose key is >= target, or -1 if
// target is greater than every key currently stored.
func (n *LeafNode) KeyIndex(target []byte, cmp Comparator) int {
	size := int(n.Size())
	for i := 0; i < size; i++ {
		if cmp(n.KeyAt(i), target) >= 0 {
			return i
		}
	}
	return -1
}

// Lookup returns the RID stored for key, if any.
func (n *LeafNode) Lookup(key []byte, cmp Comparator) (RID, bool) {
	idx := n.KeyIndex(key, cmp)
	if idx == -1 || cmp(n.KeyAt(idx), key) != 0 {
		return RID{}, false
	}
	return n.ValueAt(idx), true
}

// Insert adds (key, value) in sorted position. A key already present is
// left untouched and Insert reports false — this index ignores duplicate
// inserts rather than overwriting, since keys here are unique by
// invariant.
func (n *LeafNode) Insert(key []byte, value RID, cmp Comparator) bool {
	size := int(n.Size())
	if size == 0 {
		n.SetKeyAt(0, key)
		n.SetValueAt(0, value)
		n.setSize(1)
		return true
	}

	idx := n.KeyIndex(key, cmp)
	if idx != -1 && cmp(n.KeyAt(idx), key) == 0 {
		return false
	}
	if idx == -1 {
		idx = size
	}
	for i := size; i > idx; i-- {
		n.SetKeyAt(i, n.KeyAt(i-1))
		n.SetValueAt(i, n.ValueAt(i-1))
	}
	n.SetKeyAt(idx, key)
	n.SetValueAt(idx, value)
	n.setSize(int32(size + 1))
	return true
}

// RemoveAndDeleteRecord deletes key if present, reporting whether it was
// found.
func (n *LeafNode) RemoveAndDeleteRecord(key []byte, cmp Comparator) bool {
	idx := n.KeyIndex(key, cmp)
	if idx == -1 || cmp(n.KeyAt(idx), key) != 0 {
		return false
	}
	size := int(n.Size())
	for i := idx; i < size-1; i++ {
		n.SetKeyAt(i, n.KeyAt(i+1))
		n.SetValueAt(i, n.ValueAt(i+1))
	}
	n.setSize(int32(size - 1))
	return true
}

// MoveHalfTo moves this leaf's upper half of entries to recipient (an
// empty sibling created by a split). Sibling-chain linkage is the
// caller's responsibility.
func (n *LeafNode) MoveHalfTo(recipient *LeafNode) {
	size := int(n.Size())
	half := size / 2
	for i := half; i < size; i++ {
		recipient.SetKeyAt(i-half, n.KeyAt(i))
		recipient.SetValueAt(i-half, n.ValueAt(i))
	}
	recipient.setSize(int32(size - half))
	n.setSize(int32(half))
}

// MoveAllTo drains every entry of n into recipient (n's left sibling),
// appending after recipient's existing entries, and carries over n's
// sibling-chain pointer too.
func (n *LeafNode) MoveAllTo(recipient *LeafNode) {
	base := int(recipient.Size())
	for i := 0; i < int(n.Size()); i++ {
		recipient.SetKeyAt(base+i, n.KeyAt(i))
		recipient.SetValueAt(base+i, n.ValueAt(i))
	}
	recipient.setSize(int32(base) + n.Size())
	recipient.SetNextPageID(n.NextPageID())
	n.setSize(0)
}

// MoveFirstToEndOf moves n's first entry onto the end of recipient (n's
// left sibling).
func (n *LeafNode) MoveFirstToEndOf(recipient *LeafNode) {
	base := int(recipient.Size())
	recipient.SetKeyAt(base, n.KeyAt(0))
	recipient.SetValueAt(base, n.ValueAt(0))
	recipient.setSize(recipient.Size() + 1)

	size := int(n.Size())
	for i := 0; i < size-1; i++ {
		n.SetKeyAt(i, n.KeyAt(i+1))
		n.SetValueAt(i, n.ValueAt(i+1))
	}
	n.setSize(int32(size - 1))
}

// MoveLastToFrontOf moves n's last entry onto the front of recipient
// (n's right sibling).
func (n *LeafNode) MoveLastToFrontOf(recipient *LeafNode) {
	lastIdx := int(n.Size()) - 1
	key := n.KeyAt(lastIdx)
	value := n.ValueAt(lastIdx)

	size := int(recipient.Size())
	for i := size; i > 0; i-- {
		recipient.SetKeyAt(i, recipient.KeyAt(i-1))
		recipient.SetValueAt(i, recipient.ValueAt(i-1))
	}
	recipient.SetKeyAt(0, key)
	recipient.SetValueAt(0, value)
	recipient.setSize(int32(size + 1))

	n.setSize(int32(lastIdx))
}
