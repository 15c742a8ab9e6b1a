package bplustree

import (
	"encoding/binary"

	"nucleusdb/storage_engine/page"
)

// internalEntrySize is the footprint of one (key, child page id) slot.
// Index 0's key is never meaningful — only ValueAt(0) is — but it still
// occupies a slot, exactly like the node this is modeled on.
const internalEntrySize = KeySize + 4

// InternalMaxSize returns how many (key, child) slots fit in one page.
func InternalMaxSize() int32 {
	return int32((page.Size - headerSize) / internalEntrySize)
}

// InternalNode routes lookups to children by key range. It holds one
// more child pointer than it has meaningful keys: ValueAt(i-1) is the
// child for keys < KeyAt(i), and ValueAt(size-1) is the child for keys
// >= KeyAt(size-1).
type InternalNode struct {
	node
}

// SetParentFunc updates a child's parent pointer in place, going through
// whatever owns the child's frame (normally the tree driver's buffer
// pool). Passed explicitly rather than captured, since InternalNode
// itself has no notion of a buffer pool.
type SetParentFunc func(child, parent page.ID) error

func wrapInternal(data []byte) *InternalNode { return &InternalNode{wrapNode(data)} }

// InitInternalNode formats a fresh page as an empty internal node.
func InitInternalNode(data []byte, selfID, parentID page.ID, maxSize int32) *InternalNode {
	n := wrapInternal(data)
	n.setLeaf(false)
	n.setSize(0)
	n.setMaxSize(maxSize)
	n.setSelfPageID(selfID)
	n.SetParentPageID(parentID)
	return n
}

func (n *InternalNode) entryOffset(i int) int { return headerSize + i*internalEntrySize }

// KeyAt returns the key stored at i. KeyAt(0) is never meaningful.
func (n *InternalNode) KeyAt(i int) []byte {
	off := n.entryOffset(i)
	return n.data[off : off+KeySize]
}

func (n *InternalNode) SetKeyAt(i int, key []byte) {
	off := n.entryOffset(i)
	copy(n.data[off:off+KeySize], key)
}

func (n *InternalNode) ValueAt(i int) page.ID {
	off := n.entryOffset(i) + KeySize
	return page.ID(int32(binary.LittleEndian.Uint32(n.data[off:])))
}

func (n *InternalNode) SetValueAt(i int, v page.ID) {
	off := n.entryOffset(i) + KeySize
	binary.LittleEndian.PutUint32(n.data[off:], uint32(int32(v)))
}

// ValueIndex returns the slot holding child v, or -1 if none does.
func (n *InternalNode) ValueIndex(v page.ID) int {
	for i := 0; i < int(n.Size()); i++ {
		if n.ValueAt(i) == v {
			return i
		}
	}
	return -1
}

// Lookup returns the child page id to descend into for key, using cmp to
// find the first separator key greater than key.
func (n *InternalNode) Lookup(key []byte, cmp Comparator) page.ID {
	size := int(n.Size())
	for i := 1; i < size; i++ {
		if cmp(key, n.KeyAt(i)) < 0 {
			return n.ValueAt(i - 1)
		}
	}
	return n.ValueAt(size - 1)
}

// PopulateNewRoot formats n (a freshly allocated, empty page) as a new
// root with exactly two children split by key.
func (n *InternalNode) PopulateNewRoot(left page.ID, key []byte, right page.ID) {
	n.SetValueAt(0, left)
	n.SetKeyAt(1, key)
	n.SetValueAt(1, right)
	n.setSize(2)
}

// InsertNodeAfter inserts (key, newValue) immediately after the slot
// holding oldValue, shifting later entries right. Returns the new size.
func (n *InternalNode) InsertNodeAfter(oldValue page.ID, key []byte, newValue page.ID) int32 {
	idx := n.ValueIndex(oldValue) + 1
	size := int(n.Size())
	for i := size; i > idx; i-- {
		n.SetKeyAt(i, n.KeyAt(i-1))
		n.SetValueAt(i, n.ValueAt(i-1))
	}
	n.SetKeyAt(idx, key)
	n.SetValueAt(idx, newValue)
	n.setSize(int32(size + 1))
	return n.Size()
}

// Remove deletes the entry at index, shifting later entries left.
func (n *InternalNode) Remove(index int) {
	size := int(n.Size())
	for i := index; i < size-1; i++ {
		n.SetKeyAt(i, n.KeyAt(i+1))
		n.SetValueAt(i, n.ValueAt(i+1))
	}
	n.setSize(int32(size - 1))
}

// RemoveAndReturnOnlyChild empties a size-1 internal root and returns its
// sole remaining child, so the caller can promote it as the new root.
func (n *InternalNode) RemoveAndReturnOnlyChild() page.ID {
	child := n.ValueAt(0)
	n.setSize(0)
	return child
}

// MoveHalfTo moves this node's upper half of entries to recipient (an
// empty sibling created by a split) and fixes up each moved child's
// parent pointer via setParent.
func (n *InternalNode) MoveHalfTo(recipient *InternalNode, setParent SetParentFunc) error {
	size := int(n.Size())
	half := size / 2
	for i := half; i < size; i++ {
		recipient.SetKeyAt(i-half, n.KeyAt(i))
		recipient.SetValueAt(i-half, n.ValueAt(i))
		if err := setParent(n.ValueAt(i), recipient.SelfPageID()); err != nil {
			return err
		}
	}
	recipient.setSize(int32(size - half))
	n.setSize(int32(half))
	return nil
}

// MoveAllTo drains every entry of n into recipient, pulling the separator
// key for n's first (otherwise-key-less) entry from middleKey — the key
// the parent used to route to n. Used when coalescing n into its left
// sibling.
func (n *InternalNode) MoveAllTo(recipient *InternalNode, middleKey []byte, setParent SetParentFunc) error {
	base := int(recipient.Size())
	recipient.SetKeyAt(base, middleKey)
	recipient.SetValueAt(base, n.ValueAt(0))
	if err := setParent(n.ValueAt(0), recipient.SelfPageID()); err != nil {
		return err
	}
	for i := 1; i < int(n.Size()); i++ {
		recipient.SetKeyAt(base+i, n.KeyAt(i))
		recipient.SetValueAt(base+i, n.ValueAt(i))
		if err := setParent(n.ValueAt(i), recipient.SelfPageID()); err != nil {
			return err
		}
	}
	recipient.setSize(int32(base) + n.Size())
	n.setSize(0)
	return nil
}

// MoveFirstToEndOf moves n's first entry onto the end of recipient (n's
// left sibling), relabeling it with middleKey — the separator the parent
// currently holds between the two nodes.
func (n *InternalNode) MoveFirstToEndOf(recipient *InternalNode, middleKey []byte, setParent SetParentFunc) error {
	base := int(recipient.Size())
	recipient.SetKeyAt(base, middleKey)
	recipient.SetValueAt(base, n.ValueAt(0))
	recipient.setSize(recipient.Size() + 1)
	if err := setParent(n.ValueAt(0), recipient.SelfPageID()); err != nil {
		return err
	}
	n.Remove(0)
	return nil
}

// MoveLastToFrontOf moves n's last child onto the front of recipient (n's
// right sibling) and labels recipient's former first child with middleKey.
// The moved entry's own key is not kept: it lands in slot 0, which carries
// no key.
func (n *InternalNode) MoveLastToFrontOf(recipient *InternalNode, middleKey []byte, setParent SetParentFunc) error {
	lastIdx := int(n.Size()) - 1
	movedValue := n.ValueAt(lastIdx)

	size := int(recipient.Size())
	for i := size; i > 0; i-- {
		recipient.SetKeyAt(i, recipient.KeyAt(i-1))
		recipient.SetValueAt(i, recipient.ValueAt(i-1))
	}
	recipient.SetValueAt(0, movedValue)
	recipient.SetKeyAt(1, middleKey)
	recipient.setSize(int32(size + 1))

	if err := setParent(movedValue, recipient.SelfPageID()); err != nil {
		return err
	}
	n.Remove(lastIdx)
	return nil
}
