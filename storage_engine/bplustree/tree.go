package bplustree

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"nucleusdb/storage_engine/bufferpool"
	"nucleusdb/storage_engine/header"
	"nucleusdb/storage_engine/page"
)

// Tree is a disk-resident B+ tree index over (key, RID) pairs, addressed
// entirely through buffer-pool pages. Its root page id is persisted in
// the shared header page under name, so a tree can be reopened across
// process restarts by name alone.
type Tree struct {
	bp   *bufferpool.BufferPool
	name string
	cmp  Comparator

	leafMaxSize     int32
	internalMaxSize int32

	rootPageID page.ID

	log *logrus.Logger
}

// mustFetchPage fetches id and panics if the fetch fails. It is used for
// pages the driver itself just wrote a pointer to — a child, a sibling,
// a parent — so a failure here means the on-disk structure or the page
// table has desynced from the tree; nothing below the driver can recover
// from that, so it is fatal rather than an ordinary returned error.
func mustFetchPage(bp *bufferpool.BufferPool, id page.ID, context string) *page.Frame {
	f, err := bp.FetchPage(id)
	if err != nil {
		panic(fmt.Sprintf("bplustree: %s: fetch page %d: %v", context, id, err))
	}
	return f
}

// mustNewPage allocates a fresh page and panics if the pool has none to
// give. Every caller has already mutated a sibling page in place before
// calling this — an over-capacity leaf or internal node mid-split, with
// no page yet to receive its other half. There is no safe way to unwind
// a structural split once it has started, so pool exhaustion here is
// fatal instead of a recoverable error.
func mustNewPage(bp *bufferpool.BufferPool, context string) *page.Frame {
	f, err := bp.NewPage()
	if err != nil {
		panic(fmt.Sprintf("bplustree: %s: new page: %v", context, err))
	}
	return f
}

// mustPersistRoot records the tree's current root page id in the header
// page and panics if that fails. By the time this is called the tree's
// shape has already changed on the pages themselves; failing to persist
// the new root would leave those changes unreachable.
func (t *Tree) mustPersistRoot() {
	if err := t.persistRoot(); err != nil {
		panic(fmt.Sprintf("bplustree: persist root: %v", err))
	}
}

// Open loads (or, on first use, prepares to create) the tree stored under
// name. leafMaxSize/internalMaxSize of 0 default to one less than the
// number of entries that physically fit in a page, leaving room for the
// single overflow slot Insert relies on before a split.
func Open(bp *bufferpool.BufferPool, name string, cmp Comparator, leafMaxSize, internalMaxSize int32, log *logrus.Logger) (*Tree, error) {
	if cmp == nil {
		cmp = ByteComparator
	}
	if leafMaxSize <= 0 {
		leafMaxSize = LeafMaxSize() - 1
	}
	if internalMaxSize <= 0 {
		internalMaxSize = InternalMaxSize() - 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	h, err := header.Load(bp)
	if err != nil {
		return nil, fmt.Errorf("bplustree: open %q: %w", name, err)
	}
	root, _ := h.GetRootID(name)

	return &Tree{
		bp:              bp,
		name:            name,
		cmp:             cmp,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		rootPageID:      root,
		log:             log,
	}, nil
}

// IsEmpty reports whether the tree has no root yet.
func (t *Tree) IsEmpty() bool { return t.rootPageID == page.Invalid }

func (t *Tree) persistRoot() error {
	h, err := header.Load(t.bp)
	if err != nil {
		return fmt.Errorf("bplustree: persist root: %w", err)
	}
	if !h.UpdateRecord(t.name, t.rootPageID) {
		h.InsertRecord(t.name, t.rootPageID)
	}
	return h.Flush(t.bp)
}

// setParent updates child's parent pointer in place. child may be a leaf
// or internal node; both share the same header layout. child is always a
// page the driver just created or split, so a missing page here is an
// invariant violation, not a recoverable condition.
func (t *Tree) setParent(child, parent page.ID) error {
	f := mustFetchPage(t.bp, child, "set parent")
	wrapNode(f.Data).SetParentPageID(parent)
	return t.bp.UnpinPage(child, true)
}

// findLeafPage descends from the root to the leaf that would hold key,
// unpinning every intermediate internal page clean along the way. It
// returns the leaf's frame still pinned — the caller must unpin it.
// leftMost, when true, always takes the leftmost child regardless of key
// (used by Begin() to start a full scan). Every id it fetches came either
// from t.rootPageID or from an internal node's own child pointer, so a
// fetch failure here means the tree has desynced from the page table —
// mustFetchPage panics rather than returning a quietly-ignorable error.
func (t *Tree) findLeafPage(key []byte, leftMost bool) (*page.Frame, error) {
	id := t.rootPageID
	for {
		f := mustFetchPage(t.bp, id, "find leaf")
		n := wrapNode(f.Data)
		if n.IsLeaf() {
			return f, nil
		}
		internal := wrapInternal(f.Data)
		var next page.ID
		if leftMost {
			next = internal.ValueAt(0)
		} else {
			next = internal.Lookup(key, t.cmp)
		}
		if err := t.bp.UnpinPage(id, false); err != nil {
			return nil, err
		}
		id = next
	}
}

// GetValue returns the RID stored for key, if any.
func (t *Tree) GetValue(key []byte) (RID, bool, error) {
	if t.IsEmpty() {
		return RID{}, false, nil
	}
	f, err := t.findLeafPage(key, false)
	if err != nil {
		return RID{}, false, err
	}
	leaf := wrapLeaf(f.Data)
	rid, ok := leaf.Lookup(key, t.cmp)
	if err := t.bp.UnpinPage(f.ID, false); err != nil {
		return RID{}, false, err
	}
	return rid, ok, nil
}

// Insert adds (key, value). It reports false without modifying the tree
// if key is already present.
func (t *Tree) Insert(key []byte, value RID) (bool, error) {
	if t.IsEmpty() {
		return true, t.startNewTree(key, value)
	}
	return t.insertIntoLeaf(key, value)
}

func (t *Tree) startNewTree(key []byte, value RID) error {
	// Nothing is allocated yet, so a plain pool-exhaustion error here is
	// still safely recoverable: the caller's Insert simply fails.
	f, err := t.bp.NewPage()
	if err != nil {
		return fmt.Errorf("bplustree: start new tree: %w", err)
	}
	leaf := InitLeafNode(f.Data, f.ID, page.Invalid, t.leafMaxSize)
	leaf.Insert(key, value, t.cmp)

	// From here on the new leaf page is live but unreachable until the
	// root id is persisted, so a failure below would orphan it.
	t.rootPageID = f.ID
	t.mustPersistRoot()
	t.log.WithField("page", f.ID).Debug("bplustree: new tree rooted")
	return t.bp.UnpinPage(f.ID, true)
}

func (t *Tree) insertIntoLeaf(key []byte, value RID) (bool, error) {
	f, err := t.findLeafPage(key, false)
	if err != nil {
		return false, err
	}
	leaf := wrapLeaf(f.Data)

	if _, exists := leaf.Lookup(key, t.cmp); exists {
		if err := t.bp.UnpinPage(f.ID, false); err != nil {
			return false, err
		}
		return false, nil
	}

	leaf.Insert(key, value, t.cmp)
	if leaf.Size() <= leaf.MaxSize() {
		return true, t.bp.UnpinPage(f.ID, true)
	}

	// leaf is already over capacity with its insert applied and no
	// remaining headroom: mustNewPage panics on pool exhaustion rather
	// than returning here, because leaf would otherwise be left
	// over-capacity and unable to accept its next insert safely.
	newFrame := mustNewPage(t.bp, "split leaf")
	newLeaf := InitLeafNode(newFrame.Data, newFrame.ID, leaf.ParentPageID(), t.leafMaxSize)
	leaf.MoveHalfTo(newLeaf)
	newLeaf.SetNextPageID(leaf.NextPageID())
	leaf.SetNextPageID(newFrame.ID)

	sepKey := append([]byte(nil), newLeaf.KeyAt(0)...)
	t.log.WithFields(logrus.Fields{"left": f.ID, "right": newFrame.ID}).Debug("bplustree: leaf split")

	err = t.insertIntoParent(leaf.SelfPageID(), sepKey, newFrame.ID, leaf.node)
	unpinErr := t.bp.UnpinPage(newFrame.ID, true)
	if err == nil {
		err = unpinErr
	}
	if uerr := t.bp.UnpinPage(f.ID, true); err == nil {
		err = uerr
	}
	return true, err
}

// insertIntoParent routes a newly split pair (left, right) — separated by
// key — into left's parent, splitting that parent in turn if it overflows.
// leftNode is left's already-resident common header, used to read its
// parent id without an extra fetch.
func (t *Tree) insertIntoParent(left page.ID, key []byte, right page.ID, leftNode node) error {
	parentID := leftNode.ParentPageID()

	if parentID == page.Invalid {
		// left and right are already live, physically split siblings with
		// no parent to route through yet: mustNewPage panics on pool
		// exhaustion instead of returning, because there is no way to
		// undo the split that already happened in the caller.
		newFrame := mustNewPage(t.bp, "new root")
		newRoot := InitInternalNode(newFrame.Data, newFrame.ID, page.Invalid, t.internalMaxSize)
		newRoot.PopulateNewRoot(left, key, right)

		if err := t.setParent(left, newFrame.ID); err != nil {
			return err
		}
		if err := t.setParent(right, newFrame.ID); err != nil {
			return err
		}
		t.rootPageID = newFrame.ID
		t.mustPersistRoot()
		t.log.WithField("page", newFrame.ID).Debug("bplustree: new root")
		return t.bp.UnpinPage(newFrame.ID, true)
	}

	parentFrame := mustFetchPage(t.bp, parentID, "insert into parent")
	parent := wrapInternal(parentFrame.Data)
	parent.InsertNodeAfter(left, key, right)

	if parent.Size() <= parent.MaxSize() {
		return t.bp.UnpinPage(parentID, true)
	}

	// parent is already over capacity with the new entry inserted and no
	// remaining headroom: same fatal-on-exhaustion reasoning as the leaf
	// split and new-root cases above.
	newParentFrame := mustNewPage(t.bp, "split internal")
	newParent := InitInternalNode(newParentFrame.Data, newParentFrame.ID, parent.ParentPageID(), t.internalMaxSize)
	if err := parent.MoveHalfTo(newParent, t.setParent); err != nil {
		return err
	}
	sepKey := append([]byte(nil), newParent.KeyAt(0)...)
	t.log.WithFields(logrus.Fields{"left": parentID, "right": newParentFrame.ID}).Debug("bplustree: internal split")

	err := t.insertIntoParent(parent.SelfPageID(), sepKey, newParentFrame.ID, parent.node)
	if uerr := t.bp.UnpinPage(newParentFrame.ID, true); err == nil {
		err = uerr
	}
	if uerr := t.bp.UnpinPage(parentID, true); err == nil {
		err = uerr
	}
	return err
}

// Remove deletes key from the tree, rebalancing underflowing nodes by
// redistribution or merge as it unwinds back to the root.
func (t *Tree) Remove(key []byte) error {
	if t.IsEmpty() {
		return nil
	}
	f, err := t.findLeafPage(key, false)
	if err != nil {
		return err
	}
	leaf := wrapLeaf(f.Data)
	if !leaf.RemoveAndDeleteRecord(key, t.cmp) {
		return t.bp.UnpinPage(f.ID, false)
	}
	return t.coalesceOrRedistributeLeaf(f)
}

// adjustRoot handles the root shrinking to nothing (empty leaf root) or
// to a single child (internal root with exactly one remaining child,
// which is promoted as the new root).
func (t *Tree) adjustRoot(f *page.Frame) error {
	n := wrapNode(f.Data)
	if n.IsLeaf() {
		if n.Size() == 0 {
			id := n.SelfPageID()
			if err := t.bp.UnpinPage(id, false); err != nil {
				return err
			}
			if err := t.bp.DeletePage(id); err != nil {
				return err
			}
			t.rootPageID = page.Invalid
			t.mustPersistRoot()
			return nil
		}
		return t.bp.UnpinPage(n.SelfPageID(), true)
	}

	internal := wrapInternal(f.Data)
	if internal.Size() == 1 {
		child := internal.RemoveAndReturnOnlyChild()
		id := internal.SelfPageID()
		if err := t.bp.UnpinPage(id, false); err != nil {
			return err
		}
		if err := t.bp.DeletePage(id); err != nil {
			return err
		}
		if err := t.setParent(child, page.Invalid); err != nil {
			return err
		}
		t.rootPageID = child
		t.mustPersistRoot()
		return nil
	}
	return t.bp.UnpinPage(internal.SelfPageID(), true)
}

func siblingIndexOf(index int) int {
	if index == 0 {
		return index + 1
	}
	return index - 1
}

func (t *Tree) coalesceOrRedistributeLeaf(f *page.Frame) error {
	leaf := wrapLeaf(f.Data)
	if leaf.IsRoot() {
		return t.adjustRoot(f)
	}
	if leaf.Size() >= leaf.MinSize() {
		return t.bp.UnpinPage(leaf.SelfPageID(), true)
	}

	// leaf's parent pointer and the sibling slot next to it in that parent
	// are both structural invariants of a non-root node; either fetch
	// failing means the tree has desynced from the page table.
	parentFrame := mustFetchPage(t.bp, leaf.ParentPageID(), "coalesce leaf, fetch parent")
	parent := wrapInternal(parentFrame.Data)
	index := parent.ValueIndex(leaf.SelfPageID())
	sibIndex := siblingIndexOf(index)
	sibID := parent.ValueAt(sibIndex)

	sibFrame := mustFetchPage(t.bp, sibID, "coalesce leaf, fetch sibling")
	sibling := wrapLeaf(sibFrame.Data)

	if sibling.Size()+leaf.Size() > leaf.MaxSize() {
		if index == 0 {
			sibling.MoveFirstToEndOf(leaf)
			parent.SetKeyAt(sibIndex, sibling.KeyAt(0))
		} else {
			sibling.MoveLastToFrontOf(leaf)
			parent.SetKeyAt(index, leaf.KeyAt(0))
		}
		t.bp.UnpinPage(sibID, true)
		t.bp.UnpinPage(leaf.SelfPageID(), true)
		return t.coalesceOrRedistributeInternal(parentFrame)
	}

	if index == 0 {
		// sibling is leaf's right neighbor: merge it into leaf.
		sibling.MoveAllTo(leaf)
		t.bp.UnpinPage(sibID, true)
		parent.Remove(sibIndex)
		t.bp.DeletePage(sibID)
		t.bp.UnpinPage(leaf.SelfPageID(), true)
	} else {
		// sibling is leaf's left neighbor: merge leaf into it.
		leaf.MoveAllTo(sibling)
		t.bp.UnpinPage(leaf.SelfPageID(), true)
		parent.Remove(index)
		t.bp.DeletePage(leaf.SelfPageID())
		t.bp.UnpinPage(sibID, true)
	}
	return t.coalesceOrRedistributeInternal(parentFrame)
}

func (t *Tree) coalesceOrRedistributeInternal(f *page.Frame) error {
	internal := wrapInternal(f.Data)
	if internal.IsRoot() {
		return t.adjustRoot(f)
	}
	if internal.Size() >= internal.MinSize() {
		return t.bp.UnpinPage(internal.SelfPageID(), true)
	}

	// same reasoning as coalesceOrRedistributeLeaf: internal's parent
	// pointer and sibling slot are structural invariants here, so a
	// fetch failure is fatal rather than recoverable.
	parentFrame := mustFetchPage(t.bp, internal.ParentPageID(), "coalesce internal, fetch parent")
	parent := wrapInternal(parentFrame.Data)
	index := parent.ValueIndex(internal.SelfPageID())
	sibIndex := siblingIndexOf(index)
	sibID := parent.ValueAt(sibIndex)

	sibFrame := mustFetchPage(t.bp, sibID, "coalesce internal, fetch sibling")
	sibling := wrapInternal(sibFrame.Data)

	if sibling.Size()+internal.Size() > internal.MaxSize() {
		if index == 0 {
			middleKey := parent.KeyAt(sibIndex)
			if err := sibling.MoveFirstToEndOf(internal, middleKey, t.setParent); err != nil {
				return err
			}
			parent.SetKeyAt(sibIndex, sibling.KeyAt(0))
		} else {
			middleKey := parent.KeyAt(index)
			movedKey := append([]byte(nil), sibling.KeyAt(int(sibling.Size())-1)...)
			if err := sibling.MoveLastToFrontOf(internal, middleKey, t.setParent); err != nil {
				return err
			}
			parent.SetKeyAt(index, movedKey)
		}
		t.bp.UnpinPage(sibID, true)
		t.bp.UnpinPage(internal.SelfPageID(), true)
		return t.coalesceOrRedistributeInternal(parentFrame)
	}

	if index == 0 {
		middleKey := parent.KeyAt(sibIndex)
		if err := sibling.MoveAllTo(internal, middleKey, t.setParent); err != nil {
			return err
		}
		t.bp.UnpinPage(sibID, true)
		parent.Remove(sibIndex)
		t.bp.DeletePage(sibID)
		t.bp.UnpinPage(internal.SelfPageID(), true)
	} else {
		middleKey := parent.KeyAt(index)
		if err := internal.MoveAllTo(sibling, middleKey, t.setParent); err != nil {
			return err
		}
		t.bp.UnpinPage(internal.SelfPageID(), true)
		parent.Remove(index)
		t.bp.DeletePage(internal.SelfPageID())
		t.bp.UnpinPage(sibID, true)
	}
	return t.coalesceOrRedistributeInternal(parentFrame)
}
