package bplustree

import (
	"fmt"

	"nucleusdb/storage_engine/page"
)

// Iterator walks the tree's leaves left to right via their sibling
// chain, never climbing back up to an internal node. It holds a pin on
// its current leaf for its entire lifetime; callers must Close it.
type Iterator struct {
	tree    *Tree
	frame   *page.Frame
	index   int
	done    bool
}

// Begin starts an iterator at the first entry of the leftmost leaf.
func (t *Tree) Begin() (*Iterator, error) {
	if t.IsEmpty() {
		return &Iterator{tree: t, done: true}, nil
	}
	f, err := t.findLeafPage(nil, true)
	if err != nil {
		return nil, fmt.Errorf("bplustree: begin: %w", err)
	}
	it := &Iterator{tree: t, frame: f}
	if wrapLeaf(f.Data).Size() == 0 {
		it.done = true
	}
	return it, nil
}

// BeginAt starts an iterator at the first entry whose key is >= key.
func (t *Tree) BeginAt(key []byte) (*Iterator, error) {
	if t.IsEmpty() {
		return &Iterator{tree: t, done: true}, nil
	}
	f, err := t.findLeafPage(key, false)
	if err != nil {
		return nil, fmt.Errorf("bplustree: begin at: %w", err)
	}
	leaf := wrapLeaf(f.Data)
	idx := leaf.KeyIndex(key, t.cmp)
	it := &Iterator{tree: t, frame: f, index: idx}
	if idx == -1 {
		// key is greater than every key in this leaf, so the first key >=
		// key, if any, is the first entry of the next leaf.
		it.index = int(leaf.Size()) - 1
		if err := it.Next(); err != nil {
			return nil, fmt.Errorf("bplustree: begin at: %w", err)
		}
	}
	return it, nil
}

// Done reports whether the iterator has passed its last entry.
func (it *Iterator) Done() bool { return it.done }

// Key returns the current entry's key, or ErrIteratorExhausted once Done().
func (it *Iterator) Key() ([]byte, error) {
	if it.done {
		return nil, ErrIteratorExhausted
	}
	return wrapLeaf(it.frame.Data).KeyAt(it.index), nil
}

// Value returns the current entry's RID, or ErrIteratorExhausted once
// Done().
func (it *Iterator) Value() (RID, error) {
	if it.done {
		return RID{}, ErrIteratorExhausted
	}
	return wrapLeaf(it.frame.Data).ValueAt(it.index), nil
}

// Next advances the iterator, crossing into the next leaf via the
// sibling chain when the current leaf is exhausted.
func (it *Iterator) Next() error {
	if it.done {
		return ErrIteratorExhausted
	}
	leaf := wrapLeaf(it.frame.Data)
	if it.index+1 < int(leaf.Size()) {
		it.index++
		return nil
	}

	next := leaf.NextPageID()
	if err := it.tree.bp.UnpinPage(it.frame.ID, false); err != nil {
		return err
	}
	if next == page.Invalid {
		it.frame = nil
		it.done = true
		return nil
	}

	f, err := it.tree.bp.FetchPage(next)
	if err != nil {
		return fmt.Errorf("bplustree: iterator advance: %w", err)
	}
	it.frame = f
	it.index = 0
	if wrapLeaf(f.Data).Size() == 0 {
		it.done = true
	}
	return nil
}

// Close releases the pin the iterator holds on its current leaf, if any.
// Safe to call multiple times.
func (it *Iterator) Close() error {
	if it.frame == nil {
		return nil
	}
	err := it.tree.bp.UnpinPage(it.frame.ID, false)
	it.frame = nil
	it.done = true
	return err
}
