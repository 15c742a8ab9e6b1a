// Package header implements the reserved page-0 header page: a small
// directory mapping index names to their current root page id, persisted
// through the buffer pool like any other page rather than through a side
// channel.
package header

import (
	"encoding/binary"
	"fmt"

	"nucleusdb/storage_engine/bufferpool"
	"nucleusdb/storage_engine/page"
)

// PageID is the reserved location of the header page.
const PageID page.ID = 0

const (
	countOffset  = 0
	entriesStart = 4
	nameMaxLen   = 64
	entrySize    = 2 + nameMaxLen + 4 // name length + name bytes + root page id
)

// Page is an in-memory view of page 0's bytes: index name -> root page id.
// Callers mutate it through InsertRecord/UpdateRecord/DeleteRecord and
// must Flush it back through the pool themselves (it holds no pin of its
// own beyond the call that loaded it).
type Page struct {
	data []byte
}

// Load fetches page 0 from bp, decodes it, and unpins it (clean — the
// caller's mutations go back to disk explicitly via Flush).
func Load(bp *bufferpool.BufferPool) (*Page, error) {
	f, err := bp.FetchPage(PageID)
	if err != nil {
		return nil, fmt.Errorf("header: load: %w", err)
	}
	f.RLock()
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	f.RUnlock()
	if err := bp.UnpinPage(PageID, false); err != nil {
		return nil, fmt.Errorf("header: load: %w", err)
	}
	return &Page{data: data}, nil
}

// Flush writes the header's current contents back through the pool.
func (h *Page) Flush(bp *bufferpool.BufferPool) error {
	f, err := bp.FetchPage(PageID)
	if err != nil {
		return fmt.Errorf("header: flush: %w", err)
	}
	f.Lock()
	copy(f.Data, h.data)
	f.Unlock()
	return bp.UnpinPage(PageID, true)
}

func (h *Page) count() int {
	return int(binary.LittleEndian.Uint32(h.data[countOffset:]))
}

func (h *Page) setCount(n int) {
	binary.LittleEndian.PutUint32(h.data[countOffset:], uint32(n))
}

func (h *Page) entryAt(i int) (name string, root page.ID) {
	off := entriesStart + i*entrySize
	nameLen := binary.LittleEndian.Uint16(h.data[off:])
	name = string(h.data[off+2 : off+2+int(nameLen)])
	root = page.ID(int32(binary.LittleEndian.Uint32(h.data[off+2+nameMaxLen:])))
	return name, root
}

func (h *Page) setEntryAt(i int, name string, root page.ID) error {
	if len(name) > nameMaxLen {
		return fmt.Errorf("header: index name %q exceeds %d bytes", name, nameMaxLen)
	}
	off := entriesStart + i*entrySize
	binary.LittleEndian.PutUint16(h.data[off:], uint16(len(name)))
	copy(h.data[off+2:off+2+nameMaxLen], make([]byte, nameMaxLen))
	copy(h.data[off+2:], name)
	binary.LittleEndian.PutUint32(h.data[off+2+nameMaxLen:], uint32(int32(root)))
	return nil
}

func (h *Page) find(indexName string) (idx int, ok bool) {
	for i := 0; i < h.count(); i++ {
		name, _ := h.entryAt(i)
		if name == indexName {
			return i, true
		}
	}
	return -1, false
}

// GetRootID returns the root page id recorded for indexName.
func (h *Page) GetRootID(indexName string) (page.ID, bool) {
	i, ok := h.find(indexName)
	if !ok {
		return page.Invalid, false
	}
	_, root := h.entryAt(i)
	return root, true
}

// InsertRecord adds a new indexName -> rootID record. It reports false
// without modifying anything if indexName already has a record — callers
// that want to overwrite an existing entry must use UpdateRecord, mirroring
// the original driver's own InsertRecord-vs-UpdateRecord split.
func (h *Page) InsertRecord(indexName string, rootID page.ID) bool {
	if _, exists := h.find(indexName); exists {
		return false
	}
	n := h.count()
	if entriesStart+(n+1)*entrySize > len(h.data) {
		return false
	}
	if err := h.setEntryAt(n, indexName, rootID); err != nil {
		return false
	}
	h.setCount(n + 1)
	return true
}

// UpdateRecord overwrites the root id for an existing indexName. It
// reports false if no record for indexName exists yet.
func (h *Page) UpdateRecord(indexName string, rootID page.ID) bool {
	i, ok := h.find(indexName)
	if !ok {
		return false
	}
	return h.setEntryAt(i, indexName, rootID) == nil
}

// DeleteRecord removes indexName's record, reporting whether it existed.
func (h *Page) DeleteRecord(indexName string) bool {
	i, ok := h.find(indexName)
	if !ok {
		return false
	}
	n := h.count()
	last := n - 1
	if i != last {
		name, root := h.entryAt(last)
		h.setEntryAt(i, name, root)
	}
	h.setCount(last)
	return true
}
